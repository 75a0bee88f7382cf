package cmd

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"helpdesk/internal/bootstrap"
	"helpdesk/internal/bootstrap/logging"
	"helpdesk/internal/errs"
	"helpdesk/internal/usecase/helpdesk"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate against the backend and store the session",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, _ *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		identifier, _ := cmd.Flags().GetString("identifier")
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			return errors.New("password is required (set --password)")
		}

		sess, err := app.Session.Login(ctx, identifier, password)
		if err != nil {
			logging.Error(ctx, "login failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "login")
		}
		return writeOut(cmd, "login", "logged in: %s role=%s\n", sess.User.Username, firstNonEmpty(sess.Role, "-"))
	}),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, _ *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		if err := app.Session.Clear(ctx); err != nil {
			logging.Error(ctx, "clear session failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "clear session")
		}
		return writeOut(cmd, "logout", "logged out\n")
	}),
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the stored session",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, _ *helpdesk.Service) error {
		sess := app.Session.Current()
		if sess.IsZero() {
			return writeOut(cmd, "whoami", "not logged in\n")
		}
		return writeOut(
			cmd,
			"whoami",
			"user: %s id=%s role=%s email=%s saved=%s\n",
			sess.User.Username,
			sess.User.DocumentID,
			firstNonEmpty(sess.Role, "-"),
			firstNonEmpty(strings.TrimSpace(sess.User.Email), "-"),
			formatTime(sess.SavedAt),
		)
	}),
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)

	loginCmd.Flags().StringP("identifier", "u", "", "Username or email")
	loginCmd.Flags().StringP("password", "p", "", "Password")
	_ = loginCmd.MarkFlagRequired("identifier")
}
