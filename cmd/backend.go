package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"helpdesk/internal/bootstrap"
	"helpdesk/internal/bootstrap/config"
	"helpdesk/internal/bootstrap/logging"
	"helpdesk/internal/errs"
	"helpdesk/internal/infrastructure/devbackend"
)

var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Run the local Strapi-compatible dev backend",
}

// withDevBackend loads the config and opens the dev backend store. It does
// not touch the client session.
func withDevBackend(run func(cmd *cobra.Command, args []string, cfg config.Config, backend *bootstrap.DevBackend) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)

		cfg, err := config.Load(ctx, cfgFile)
		if err != nil {
			return errs.Wrap(err, "load config")
		}
		ctx = logging.WithLogger(ctx, logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format))
		cmd.SetContext(ctx)

		backend, err := bootstrap.OpenDevBackend(ctx, cfg)
		if err != nil {
			logging.Error(ctx, "open dev backend failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "open dev backend")
		}
		defer func() {
			if err := backend.Close(); err != nil {
				logging.Error(ctx, "close dev backend failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		return run(cmd, args, cfg, backend)
	}
}

func applySeedFile(ctx context.Context, backend *bootstrap.DevBackend, path string) (int, error) {
	seed, err := devbackend.LoadSeedFile(path)
	if err != nil {
		return 0, err
	}
	created, err := backend.Server.ApplySeed(ctx, seed)
	if err != nil {
		return created, errs.Wrapf(err, "apply seed %s", path)
	}
	return created, nil
}

var backendServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dev backend until interrupted",
	RunE: withDevBackend(func(cmd *cobra.Command, _ []string, cfg config.Config, backend *bootstrap.DevBackend) error {
		ctx := cmd.Context()

		addr, _ := cmd.Flags().GetString("addr")
		if strings.TrimSpace(addr) == "" {
			addr = cfg.DevBackend.Addr
		}
		seedFile, _ := cmd.Flags().GetString("seed")
		if !cmd.Flags().Changed("seed") {
			seedFile = cfg.DevBackend.SeedFile
		}
		if strings.TrimSpace(seedFile) != "" {
			if _, err := applySeedFile(ctx, backend, seedFile); err != nil {
				logging.Error(ctx, "seed dev backend failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "seed dev backend")
			}
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := writeOut(cmd, "backend serve", "dev backend listening on %s\n", addr); err != nil {
			return err
		}
		return backend.Server.ListenAndServe(ctx, addr)
	}),
}

var backendSeedCmd = &cobra.Command{
	Use:   "seed FILE",
	Short: "Load users and records from a YAML or TOML seed file",
	Args:  cobra.ExactArgs(1),
	RunE: withDevBackend(func(cmd *cobra.Command, args []string, _ config.Config, backend *bootstrap.DevBackend) error {
		ctx := cmd.Context()

		created, err := applySeedFile(ctx, backend, args[0])
		if err != nil {
			logging.Error(ctx, "seed dev backend failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "seed dev backend")
		}
		return writeOut(cmd, "backend seed", "seeded %d records from %s\n", created, args[0])
	}),
}

var backendAddUserCmd = &cobra.Command{
	Use:   "add-user",
	Short: "Register a dev backend user",
	RunE: withDevBackend(func(cmd *cobra.Command, _ []string, _ config.Config, backend *bootstrap.DevBackend) error {
		ctx := cmd.Context()

		username, _ := cmd.Flags().GetString("username")
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		role, _ := cmd.Flags().GetString("role")

		created, err := backend.Server.ApplySeed(ctx, devbackend.Seed{
			Users: []devbackend.SeedUser{{Username: username, Email: email, Password: password, Role: role}},
		})
		if err != nil {
			logging.Error(ctx, "add dev backend user failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "add user")
		}
		if created == 0 {
			return writeOut(cmd, "backend add-user", "user already exists: %s\n", username)
		}
		return writeOut(cmd, "backend add-user", "added user: %s\n", username)
	}),
}

func init() {
	rootCmd.AddCommand(backendCmd)
	backendCmd.AddCommand(backendServeCmd, backendSeedCmd, backendAddUserCmd)

	backendServeCmd.Flags().String("addr", "", "Listen address, devbackend.addr when empty")
	backendServeCmd.Flags().String("seed", "", "Seed file applied before serving, devbackend.seed_file when unset")

	backendAddUserCmd.Flags().String("username", "", "Username")
	backendAddUserCmd.Flags().String("email", "", "Email")
	backendAddUserCmd.Flags().String("password", "", "Password")
	backendAddUserCmd.Flags().String("role", "Authenticated", "Role name")
	_ = backendAddUserCmd.MarkFlagRequired("username")
	_ = backendAddUserCmd.MarkFlagRequired("password")
}
