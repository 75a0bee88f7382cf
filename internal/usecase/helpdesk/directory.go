package helpdesk

import (
	"context"

	domainhelpdesk "helpdesk/internal/domain/helpdesk"
	"helpdesk/internal/errs"
	"helpdesk/internal/ports"
)

func (s *Service) ListAgents(ctx context.Context) ([]domainhelpdesk.Agent, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	agents, err := s.handlers.Agents.FindAll(ctx, ports.Query{
		Sort:     []string{"name:asc"},
		Populate: []string{"organisation"},
	})
	if err != nil {
		s.notify(ctx, ports.NoticeError, "could not load agents")
		return nil, errs.Wrap(err, "list agents")
	}
	return agents, nil
}

func (s *Service) ListOrganisations(ctx context.Context) ([]domainhelpdesk.Organisation, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	orgs, err := s.handlers.Organisations.FindAll(ctx, ports.Query{Sort: []string{"name:asc"}})
	if err != nil {
		s.notify(ctx, ports.NoticeError, "could not load organisations")
		return nil, errs.Wrap(err, "list organisations")
	}
	return orgs, nil
}
