package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"helpdesk/internal/bootstrap"
	"helpdesk/internal/bootstrap/logging"
	"helpdesk/internal/errs"
	"helpdesk/internal/usecase/helpdesk"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List support agents",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		agents, err := svc.ListAgents(ctx)
		if err != nil {
			logging.Error(ctx, "list agents failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list agents")
		}
		if len(agents) == 0 {
			return writeOut(cmd, "agents", "no agents\n")
		}
		for _, agent := range agents {
			org := "-"
			if agent.Organisation != nil {
				org = firstNonEmpty(agent.Organisation.Name, agent.Organisation.DocumentID)
			}
			if err := writeOut(cmd, "agents", "%s active=%t organisation=%s name=%s\n", agent.DocumentID, agent.Active, org, agent.Name); err != nil {
				return err
			}
		}
		return nil
	}),
}

var organisationsCmd = &cobra.Command{
	Use:     "organisations",
	Aliases: []string{"orgs"},
	Short:   "List organisations",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *helpdesk.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := requireLogin(app); err != nil {
			return err
		}

		orgs, err := svc.ListOrganisations(ctx)
		if err != nil {
			logging.Error(ctx, "list organisations failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list organisations")
		}
		if len(orgs) == 0 {
			return writeOut(cmd, "organisations", "no organisations\n")
		}
		for _, org := range orgs {
			if err := writeOut(cmd, "organisations", "%s name=%s\n", org.DocumentID, org.Name); err != nil {
				return err
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(organisationsCmd)
}
