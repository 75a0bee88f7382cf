package cmd

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"helpdesk/internal/bootstrap"
	"helpdesk/internal/bootstrap/logging"
	domainhelpdesk "helpdesk/internal/domain/helpdesk"
	"helpdesk/internal/errs"
	"helpdesk/internal/usecase/helpdesk"
)

var ticketsCmd = &cobra.Command{
	Use:     "tickets",
	Aliases: []string{"ticket"},
	Short:   "Manage helpdesk tickets",
}

var ticketsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tickets visible to the session user",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		priority, _ := cmd.Flags().GetString("priority")
		assignee, _ := cmd.Flags().GetString("assignee")
		query, _ := cmd.Flags().GetString("query")

		filter := domainhelpdesk.TicketFilter{AssigneeID: assignee, Query: query}
		var err error
		if filter.Status, err = domainhelpdesk.NormalizeStatus(status); err != nil {
			return errs.Wrap(err, "status flag")
		}
		if filter.Priority, err = domainhelpdesk.NormalizePriority(priority); err != nil {
			return errs.Wrap(err, "priority flag")
		}

		if err := svc.LoadTickets(ctx); err != nil {
			logging.Error(ctx, "load tickets failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "load tickets")
		}
		items := svc.FilterTickets(filter)
		if len(items) == 0 {
			return writeOut(cmd, "tickets list", "no tickets\n")
		}
		for _, item := range items {
			if err := writeOut(cmd, "tickets list", "%s", ticketLine(item)); err != nil {
				return err
			}
		}
		return nil
	}),
}

var ticketsSearchCmd = &cobra.Command{
	Use:   "search TEXT",
	Short: "Search tickets on the backend",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		items, err := svc.SearchTickets(ctx, cmd.Flags().Arg(0))
		if err != nil {
			logging.Error(ctx, "search tickets failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "search tickets")
		}
		if len(items) == 0 {
			return writeOut(cmd, "tickets search", "no tickets\n")
		}
		for _, item := range items {
			if err := writeOut(cmd, "tickets search", "%s", ticketLine(item)); err != nil {
				return err
			}
		}
		return nil
	}),
}

var ticketsShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one ticket with its comments",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		ticket, err := svc.GetTicket(ctx, cmd.Flags().Arg(0))
		if err != nil {
			logging.Error(ctx, "get ticket failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "get ticket")
		}
		comments, err := svc.ListComments(ctx, ticket.DocumentID)
		if err != nil {
			return errs.Wrap(err, "list comments")
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Ticket: %s\n", ticket.DocumentID)
		fmt.Fprintf(&b, "Title: %s\n", ticket.Title)
		fmt.Fprintf(&b, "Status: %s\n", ticket.Status)
		fmt.Fprintf(&b, "Priority: %s\n", ticket.Priority)
		fmt.Fprintf(&b, "Type: %s\n", firstNonEmpty(ticket.Type, "-"))
		if ticket.Assignee != nil {
			fmt.Fprintf(&b, "Assignee: %s\n", firstNonEmpty(ticket.Assignee.Name, ticket.Assignee.DocumentID))
		} else {
			b.WriteString("Assignee: none\n")
		}
		if ticket.Client != nil {
			fmt.Fprintf(&b, "Client: %s\n", firstNonEmpty(ticket.Client.Username, ticket.Client.DocumentID))
		}
		if ticket.Organisation != nil {
			fmt.Fprintf(&b, "Organisation: %s\n", firstNonEmpty(ticket.Organisation.Name, ticket.Organisation.DocumentID))
		}
		fmt.Fprintf(&b, "CreatedAt: %s\n", formatTime(ticket.CreatedAt))
		fmt.Fprintf(&b, "UpdatedAt: %s\n", formatTime(ticket.UpdatedAt))
		fmt.Fprintf(&b, "\nDescription:\n%s\n", ticket.Description)
		if len(comments) == 0 {
			b.WriteString("\nComments: none\n")
		} else {
			b.WriteString("\nComments:\n")
			for _, comment := range comments {
				author := "-"
				if comment.Author != nil {
					author = firstNonEmpty(comment.Author.Username, comment.Author.DocumentID)
				}
				fmt.Fprintf(&b, "- [%s] %s: %s\n", formatTime(comment.CreatedAt), author, comment.Body)
			}
		}
		return writeOut(cmd, "tickets show", "%s", b.String())
	}),
}

var ticketsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a ticket",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		draft := domainhelpdesk.TicketDraft{}
		draft.Title, _ = cmd.Flags().GetString("title")
		draft.Priority, _ = cmd.Flags().GetString("priority")
		draft.Type, _ = cmd.Flags().GetString("type")
		draft.AssigneeID, _ = cmd.Flags().GetString("assignee")
		draft.ClientID, _ = cmd.Flags().GetString("client")
		draft.OrganisationID, _ = cmd.Flags().GetString("organisation")
		description, err := resolveBody(cmd, true)
		if err != nil {
			return err
		}
		draft.Description = description

		ticket, err := svc.CreateTicket(ctx, draft)
		if err != nil {
			logging.Error(ctx, "create ticket failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "create ticket")
		}
		return writeOut(cmd, "tickets create", "created ticket: %s\n", ticket.DocumentID)
	}),
}

var ticketsUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Update ticket fields",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		patch := helpdesk.TicketPatch{
			Title:       optionalString(cmd, "title"),
			Description: optionalString(cmd, "body"),
			Priority:    optionalString(cmd, "priority"),
			Status:      optionalString(cmd, "status"),
			Type:        optionalString(cmd, "type"),
		}
		ticket, err := svc.UpdateTicket(ctx, cmd.Flags().Arg(0), patch)
		if err != nil {
			logging.Error(ctx, "update ticket failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "update ticket")
		}
		return writeOut(cmd, "tickets update", "updated ticket: %s", ticketLine(ticket))
	}),
}

var ticketsStatusCmd = &cobra.Command{
	Use:   "status ID STATUS",
	Short: "Move a ticket to another status",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		ticket, err := svc.SetTicketStatus(ctx, cmd.Flags().Arg(0), cmd.Flags().Arg(1))
		if err != nil {
			logging.Error(ctx, "set ticket status failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "set ticket status")
		}
		return writeOut(cmd, "tickets status", "ticket %s status=%s\n", ticket.DocumentID, ticket.Status)
	}),
}

var ticketsAssignCmd = &cobra.Command{
	Use:   "assign ID AGENT_ID",
	Short: "Assign a ticket to an agent",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		ticket, err := svc.AssignTicket(ctx, cmd.Flags().Arg(0), cmd.Flags().Arg(1))
		if err != nil {
			logging.Error(ctx, "assign ticket failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "assign ticket")
		}
		return writeOut(cmd, "tickets assign", "assigned ticket: %s", ticketLine(ticket))
	}),
}

var ticketsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a ticket",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		id := cmd.Flags().Arg(0)
		if err := svc.DeleteTicket(ctx, id); err != nil {
			logging.Error(ctx, "delete ticket failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "delete ticket")
		}
		return writeOut(cmd, "tickets delete", "deleted ticket: %s\n", id)
	}),
}

var ticketsCommentCmd = &cobra.Command{
	Use:   "comment ID",
	Short: "Add a comment to a ticket",
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
		comment, err := svc.AddComment(ctx, cmd.Flags().Arg(0), body)
		if err != nil {
			logging.Error(ctx, "add comment failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "add comment")
		}
		return writeOut(cmd, "tickets comment", "added comment: %s\n", comment.DocumentID)
	}),
}

var ticketsActivityCmd = &cobra.Command{
	Use:   "activity ID",
	Short: "Show the activity trail of a ticket",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		items, err := svc.ListActivities(ctx, cmd.Flags().Arg(0))
		if err != nil {
			logging.Error(ctx, "list activities failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list activities")
		}
		if len(items) == 0 {
			return writeOut(cmd, "tickets activity", "no activity\n")
		}
		for _, item := range items {
			if err := writeOut(cmd, "tickets activity", "[%s] %s %s\n", formatTime(item.CreatedAt), item.Action, item.Detail); err != nil {
				return err
			}
		}
		return nil
	}),
}

var ticketsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ticket dashboard counters",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}
		if err := svc.LoadTickets(ctx); err != nil {
			return errs.Wrap(err, "load tickets")
		}

		stats := svc.TicketStats()
		var b strings.Builder
		fmt.Fprintf(&b, "total=%d active=%d resolved=%d unassigned=%d\n", stats.Total, stats.Active, stats.Resolved, stats.Unassigned)
		statuses := make([]string, 0, len(stats.ByStatus))
		for status := range stats.ByStatus {
			statuses = append(statuses, string(status))
		}
		sort.Strings(statuses)
		for _, status := range statuses {
			fmt.Fprintf(&b, "status %s=%d\n", status, stats.ByStatus[domainhelpdesk.Status(status)])
		}
		priorities := make([]string, 0, len(stats.ByPriority))
		for priority := range stats.ByPriority {
			priorities = append(priorities, string(priority))
		}
		sort.Strings(priorities)
		for _, priority := range priorities {
			fmt.Fprintf(&b, "priority %s=%d\n", priority, stats.ByPriority[domainhelpdesk.Priority(priority)])
		}
		return writeOut(cmd, "tickets stats", "%s", b.String())
	}),
}

func init() {
	rootCmd.AddCommand(ticketsCmd)
	ticketsCmd.AddCommand(
		ticketsListCmd,
		ticketsSearchCmd,
		ticketsShowCmd,
		ticketsCreateCmd,
		ticketsUpdateCmd,
		ticketsStatusCmd,
		ticketsAssignCmd,
		ticketsDeleteCmd,
		ticketsCommentCmd,
		ticketsActivityCmd,
		ticketsStatsCmd,
	)

	ticketsListCmd.Flags().String("status", "", "Filter by status (open|in-progress|pending|resolved|closed)")
	ticketsListCmd.Flags().String("priority", "", "Filter by priority (low|medium|high|urgent)")
	ticketsListCmd.Flags().String("assignee", "", "Filter by agent id, or - for unassigned")
	ticketsListCmd.Flags().String("query", "", "Case-insensitive text filter")

	ticketsCreateCmd.Flags().String("title", "", "Ticket title")
	ticketsCreateCmd.Flags().String("body", "", "Ticket description")
	ticketsCreateCmd.Flags().String("body-file", "", "Read the description from a file")
	ticketsCreateCmd.Flags().String("priority", "", "Priority, medium when empty")
	ticketsCreateCmd.Flags().String("type", "", "Ticket type")
	ticketsCreateCmd.Flags().String("assignee", "", "Agent id")
	ticketsCreateCmd.Flags().String("client", "", "Client user id, the session user when empty")
	ticketsCreateCmd.Flags().String("organisation", "", "Organisation id")
	_ = ticketsCreateCmd.MarkFlagRequired("title")

	ticketsUpdateCmd.Flags().String("title", "", "New title")
	ticketsUpdateCmd.Flags().String("body", "", "New description")
	ticketsUpdateCmd.Flags().String("priority", "", "New priority")
	ticketsUpdateCmd.Flags().String("status", "", "New status")
	ticketsUpdateCmd.Flags().String("type", "", "New type")

	ticketsCommentCmd.Flags().String("body", "", "Comment body")
	ticketsCommentCmd.Flags().String("body-file", "", "Read the comment from a file")
}
