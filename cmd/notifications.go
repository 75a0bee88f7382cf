package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"helpdesk/internal/bootstrap"
	"helpdesk/internal/bootstrap/logging"
	"helpdesk/internal/errs"
	"helpdesk/internal/usecase/helpdesk"
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notices"},
	Short:   "Read the session user's notifications",
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		if err := svc.LoadNotifications(ctx); err != nil {
			logging.Error(ctx, "load notifications failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "load notifications")
		}
		unreadOnly, _ := cmd.Flags().GetBool("unread")
		items := svc.Notifications().Items()
		if err := writeOut(cmd, "notifications list", "unread=%d total=%d\n", svc.UnreadCount(), len(items)); err != nil {
			return err
		}
		for _, item := range items {
			if unreadOnly && item.Read {
				continue
			}
			marker := " "
			if !item.Read {
				marker = "*"
			}
			if err := writeOut(cmd, "notifications list", "%s %s [%s] %s: %s\n", marker, item.DocumentID, formatTime(item.CreatedAt), item.Title, item.Message); err != nil {
				return err
			}
		}
		return nil
	}),
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read ID",
	Short: "Mark one notification as read",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		item, err := svc.MarkNotificationRead(ctx, cmd.Flags().Arg(0))
		if err != nil {
			logging.Error(ctx, "mark notification read failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "mark notification read")
		}
		return writeOut(cmd, "notifications read", "notification %s read=%t\n", item.DocumentID, item.Read)
	}),
}

var notificationsReadAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every unread notification as read",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		if err := svc.LoadNotifications(ctx); err != nil {
			return errs.Wrap(err, "load notifications")
		}
		marked, err := svc.MarkAllNotificationsRead(ctx)
		if writeErr := writeOut(cmd, "notifications read-all", "marked %d notifications read\n", marked); writeErr != nil {
			return writeErr
		}
		if err != nil {
			logging.Error(ctx, "mark notifications read failed", slog.Any("err", errs.Loggable(err)), slog.Int("marked", marked))
			return errs.Wrap(err, "mark notifications read")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(notificationsCmd)
	notificationsCmd.AddCommand(notificationsListCmd, notificationsReadCmd, notificationsReadAllCmd)

	notificationsListCmd.Flags().Bool("unread", false, "Only show unread notifications")
}
