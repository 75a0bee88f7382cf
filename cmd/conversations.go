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

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"inbox"},
	Short:   "Read and send conversation messages",
}

func writeConversations(cmd *cobra.Command, what string, userID string, items []domainhelpdesk.Conversation) error {
	if len(items) == 0 {
		return writeOut(cmd, what, "no conversations\n")
	}
	for _, item := range items {
		last := "-"
		if msg, ok := item.LastMessage(); ok {
			last = firstNonEmpty(msg.SenderName, msg.SenderID) + ": " + msg.Body
		}
		if err := writeOut(
			cmd,
			what,
			"%s unread=%d subject=%s last=%s\n",
			item.DocumentID,
			item.UnreadFor(userID),
			firstNonEmpty(item.Subject, "-"),
			last,
		); err != nil {
			return err
		}
	}
	return nil
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the session user's conversations",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		if err := svc.LoadConversations(ctx); err != nil {
			logging.Error(ctx, "load conversations failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "load conversations")
		}
		return writeConversations(cmd, "conversations list", app.Session.UserID(), svc.Conversations().Items())
	}),
}

var conversationsSearchCmd = &cobra.Command{
	Use:   "search TEXT",
	Short: "Search conversations by subject, participant or message",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		items, err := svc.SearchConversations(ctx, cmd.Flags().Arg(0))
		if err != nil {
			logging.Error(ctx, "search conversations failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "search conversations")
		}
		return writeConversations(cmd, "conversations search", app.Session.UserID(), items)
	}),
}

var conversationsShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Print a conversation's messages",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		conversation, err := svc.Conversations().Fetch(ctx, cmd.Flags().Arg(0), ports.Query{Populate: []string{"participants"}})
		if err != nil {
			logging.Error(ctx, "fetch conversation failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "fetch conversation")
		}
		if err := writeOut(cmd, "conversations show", "Conversation: %s\nSubject: %s\n\n", conversation.DocumentID, firstNonEmpty(conversation.Subject, "-")); err != nil {
			return err
		}
		for _, msg := range conversation.Messages {
			marker := " "
			if !msg.Read && msg.SenderID != app.Session.UserID() {
				marker = "*"
			}
			if err := writeOut(cmd, "conversations show", "%s [%s] %s: %s\n", marker, formatTime(msg.SentAt), firstNonEmpty(msg.SenderName, msg.SenderID), msg.Body); err != nil {
				return err
			}
		}
		return nil
	}),
}

var conversationsStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a conversation with other users",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		participants, _ := cmd.Flags().GetStringSlice("with")
		subject, _ := cmd.Flags().GetString("subject")
		body, err := resolveBody(cmd, true)
		if err != nil {
			return err
		}
		conversation, err := svc.StartConversation(ctx, participants, subject, body)
		if err != nil {
			logging.Error(ctx, "start conversation failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start conversation")
		}
		return writeOut(cmd, "conversations start", "started conversation: %s\n", conversation.DocumentID)
	}),
}

var conversationsSendCmd = &cobra.Command{
	Use:   "send ID",
	Short: "Append a message to a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		body, err := resolveBody(cmd, true)
		if err != nil {
			return err
		}
		conversation, err := svc.SendMessage(ctx, cmd.Flags().Arg(0), body)
		if err != nil {
			logging.Error(ctx, "send message failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "send message")
		}
		return writeOut(cmd, "conversations send", "sent message: %s messages=%d\n", conversation.DocumentID, len(conversation.Messages))
	}),
}

var conversationsReadCmd = &cobra.Command{
	Use:   "read ID",
	Short: "Mark a conversation's messages as read",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		conversation, err := svc.MarkConversationRead(ctx, cmd.Flags().Arg(0))
		if err != nil {
			logging.Error(ctx, "mark conversation read failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "mark conversation read")
		}
		return writeOut(cmd, "conversations read", "conversation %s unread=%d\n", conversation.DocumentID, conversation.UnreadFor(app.Session.UserID()))
	}),
}

func init() {
	rootCmd.AddCommand(conversationsCmd)
	conversationsCmd.AddCommand(
		conversationsListCmd,
		conversationsSearchCmd,
		conversationsShowCmd,
		conversationsStartCmd,
		conversationsSendCmd,
		conversationsReadCmd,
	)

	conversationsStartCmd.Flags().StringSlice("with", nil, "Participant user ids (repeatable)")
	conversationsStartCmd.Flags().String("subject", "", "Conversation subject")
	conversationsStartCmd.Flags().String("body", "", "First message")
	conversationsStartCmd.Flags().String("body-file", "", "Read the first message from a file")
	_ = conversationsStartCmd.MarkFlagRequired("with")

	conversationsSendCmd.Flags().String("body", "", "Message body")
	conversationsSendCmd.Flags().String("body-file", "", "Read the message from a file")
}
