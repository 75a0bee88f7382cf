package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"helpdesk/internal/bootstrap"
	"helpdesk/internal/bootstrap/logging"
	domainhelpdesk "helpdesk/internal/domain/helpdesk"
	"helpdesk/internal/errs"
	"helpdesk/internal/ports"
	"helpdesk/internal/usecase/helpdesk"
)

var kbCmd = &cobra.Command{
	Use:     "kb",
	Aliases: []string{"articles"},
	Short:   "Manage knowledge base articles",
}

func writeArticles(cmd *cobra.Command, what string, items []domainhelpdesk.KnowledgeBase) error {
	if len(items) == 0 {
		return writeOut(cmd, what, "no articles\n")
	}
	for _, item := range items {
		if err := writeOut(cmd, what, "%s category=%s title=%s\n", item.DocumentID, firstNonEmpty(item.Category, "-"), item.Title); err != nil {
			return err
		}
	}
	return nil
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List articles, optionally filtered locally",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		if err := svc.LoadArticles(ctx); err != nil {
			logging.Error(ctx, "load articles failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "load articles")
		}
		query, _ := cmd.Flags().GetString("query")
		return writeArticles(cmd, "kb list", svc.FilterArticles(query))
	}),
}

var kbSearchCmd = &cobra.Command{
	Use:   "search TEXT",
	Short: "Search articles on the backend",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		items, err := svc.SearchArticles(ctx, cmd.Flags().Arg(0))
		if err != nil {
			logging.Error(ctx, "search articles failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "search articles")
		}
		return writeArticles(cmd, "kb search", items)
	}),
}

var kbShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Print one article",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		article, err := svc.Articles().Fetch(ctx, cmd.Flags().Arg(0), ports.Query{})
		if err != nil {
			logging.Error(ctx, "fetch article failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "fetch article")
		}
		return writeOut(
			cmd,
			"kb show",
			"Article: %s\nTitle: %s\nCategory: %s\nUpdatedAt: %s\n\n%s\n",
			article.DocumentID,
			article.Title,
			firstNonEmpty(article.Category, "-"),
			formatTime(article.UpdatedAt),
			article.Content,
		)
	}),
}

var kbCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an article",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		draft := helpdesk.ArticleDraft{}
		draft.Title, _ = cmd.Flags().GetString("title")
		draft.Category, _ = cmd.Flags().GetString("category")
		content, err := resolveBody(cmd, true)
		if err != nil {
			return err
		}
		draft.Content = content

		article, err := svc.CreateArticle(ctx, draft)
		if err != nil {
			logging.Error(ctx, "create article failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "create article")
		}
		return writeOut(cmd, "kb create", "created article: %s\n", article.DocumentID)
	}),
}

var kbUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Update an article",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		patch := helpdesk.ArticlePatch{
			Title:    optionalString(cmd, "title"),
			Content:  optionalString(cmd, "body"),
			Category: optionalString(cmd, "category"),
		}
		article, err := svc.UpdateArticle(ctx, cmd.Flags().Arg(0), patch)
		if err != nil {
			logging.Error(ctx, "update article failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "update article")
		}
		return writeOut(cmd, "kb update", "updated article: %s\n", article.DocumentID)
	}),
}

var kbDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete an article",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		id := cmd.Flags().Arg(0)
		if err := svc.DeleteArticle(ctx, id); err != nil {
			logging.Error(ctx, "delete article failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "delete article")
		}
		return writeOut(cmd, "kb delete", "deleted article: %s\n", id)
	}),
}

func init() {
	rootCmd.AddCommand(kbCmd)
	kbCmd.AddCommand(kbListCmd, kbSearchCmd, kbShowCmd, kbCreateCmd, kbUpdateCmd, kbDeleteCmd)

	kbListCmd.Flags().String("query", "", "Case-insensitive filter over the loaded articles")

	kbCreateCmd.Flags().String("title", "", "Article title")
	kbCreateCmd.Flags().String("category", "", "Article category")
	kbCreateCmd.Flags().String("body", "", "Article content")
	kbCreateCmd.Flags().String("body-file", "", "Read the content from a file")
	_ = kbCreateCmd.MarkFlagRequired("title")

	kbUpdateCmd.Flags().String("title", "", "New title")
	kbUpdateCmd.Flags().String("category", "", "New category")
	kbUpdateCmd.Flags().String("body", "", "New content")
}
