package cmd

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"helpdesk/internal/bootstrap"
	"helpdesk/internal/bootstrap/logging"
	"helpdesk/internal/errs"
	"helpdesk/internal/ports"
	"helpdesk/internal/usecase/console"
	"helpdesk/internal/usecase/helpdesk"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start the interactive ticket and inbox console",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")
		if refreshInterval <= 0 {
			refreshInterval = 30 * time.Second
		}

		// Notices are dropped while the console is busy rendering.
		notices := make(chan ports.Notice, 16)
		unsubscribe := app.Notices.Subscribe(func(notice ports.Notice) {
			select {
			case notices <- notice:
			default:
			}
		})
		defer unsubscribe()

		model := console.NewModel(ctx, svc, console.Options{
			UserID:          app.Session.UserID(),
			StatusFilter:    status,
			RefreshInterval: refreshInterval,
			Notices:         notices,
		})

		program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run console")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(consoleCmd)

	consoleCmd.Flags().String("status", "", "Initial status filter")
	consoleCmd.Flags().Duration("refresh-interval", 30*time.Second, "Reload interval")
}
