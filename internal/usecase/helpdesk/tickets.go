package helpdesk

import (
	"context"
	"log/slog"
	"strings"

	"helpdesk/internal/bootstrap/logging"
	domainhelpdesk "helpdesk/internal/domain/helpdesk"
	"helpdesk/internal/errs"
	"helpdesk/internal/ports"
	"helpdesk/internal/usecase/rescache"
)

var ticketPopulate = []string{"assignee", "client", "organisation"}

func ticketOptions(userID func() string, notifier ports.Notifier) rescache.Options[domainhelpdesk.Ticket] {
	return rescache.Options[domainhelpdesk.Ticket]{
		Name:   "tickets",
		Noun:   "ticket",
		Insert: rescache.Prepend,
		Search: rescache.SearchRemote,
		Text:   domainhelpdesk.TicketText,
		Scope: func(uid string) ports.Query {
			return ports.Query{
				Sort:     []string{"updatedAt:desc"},
				Populate: ticketPopulate,
			}.WithAnyOf(
				ports.Eq("client.documentId", uid),
				ports.Eq("assignee.user.documentId", uid),
			)
		},
		SearchQuery: func(base ports.Query, text string) ports.Query {
			return base.WithAnyOf(
				ports.Containsi("title", text),
				ports.Containsi("description", text),
			)
		},
		Populate: ticketPopulate,
		UserID:   userID,
		Notifier: notifier,
	}
}

// TicketPatch holds optional ticket changes; nil fields are left alone.
type TicketPatch struct {
	Title       *string
	Description *string
	Priority    *string
	Status      *string
	Type        *string
}

func (p TicketPatch) toPayload() (map[string]any, error) {
	payload := map[string]any{}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return nil, validation(domainhelpdesk.ErrTitleRequired)
		}
		payload["title"] = title
	}
	if p.Description != nil {
		description := strings.TrimSpace(*p.Description)
		if description == "" {
			return nil, validation(domainhelpdesk.ErrDescriptionRequired)
		}
		payload["description"] = description
	}
	if p.Priority != nil {
		priority, err := domainhelpdesk.NormalizePriority(*p.Priority)
		if err != nil || priority == "" {
			return nil, validation(errs.Wrap(orInvalid(err, domainhelpdesk.ErrInvalidPriority), "priority"))
		}
		payload["priority"] = priority
	}
	if p.Status != nil {
		status, err := domainhelpdesk.NormalizeStatus(*p.Status)
		if err != nil || status == "" {
			return nil, validation(errs.Wrap(orInvalid(err, domainhelpdesk.ErrInvalidStatus), "status"))
		}
		payload["status"] = status
	}
	if p.Type != nil {
		payload["type"] = strings.TrimSpace(*p.Type)
	}
	return payload, nil
}

func orInvalid(err error, fallback error) error {
	if err != nil {
		return err
	}
	return fallback
}

func (s *Service) LoadTickets(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.tickets.Load(ctx)
}

func (s *Service) SearchTickets(ctx context.Context, text string) ([]domainhelpdesk.Ticket, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return s.tickets.Search(ctx, text)
}

// FilterTickets applies the ticket list filter to the loaded tickets.
func (s *Service) FilterTickets(filter domainhelpdesk.TicketFilter) []domainhelpdesk.Ticket {
	return domainhelpdesk.FilterTickets(s.tickets.Items(), filter)
}

func (s *Service) TicketStats() domainhelpdesk.TicketStats {
	return domainhelpdesk.ComputeTicketStats(s.tickets.Items())
}

// CreateTicket validates the draft and creates an open ticket owned by the
// session user unless the draft names another client.
func (s *Service) CreateTicket(ctx context.Context, draft domainhelpdesk.TicketDraft) (domainhelpdesk.Ticket, error) {
	if err := s.check(ctx); err != nil {
		return domainhelpdesk.Ticket{}, err
	}
	userID, err := s.requireUser()
	if err != nil {
		return domainhelpdesk.Ticket{}, err
	}
	priority, err := draft.Validate()
	if err != nil {
		return domainhelpdesk.Ticket{}, validation(err)
	}

	clientID := strings.TrimSpace(draft.ClientID)
	if clientID == "" {
		clientID = userID
	}
	input := map[string]any{
		"title":       strings.TrimSpace(draft.Title),
		"description": strings.TrimSpace(draft.Description),
		"priority":    priority,
		"status":      domainhelpdesk.StatusOpen,
		"client":      ref(clientID),
	}
	if t := strings.TrimSpace(draft.Type); t != "" {
		input["type"] = t
	}
	if assignee := strings.TrimSpace(draft.AssigneeID); assignee != "" {
		input["assignee"] = ref(assignee)
	}
	if org := strings.TrimSpace(draft.OrganisationID); org != "" {
		input["organisation"] = ref(org)
	}

	created, err := s.tickets.Create(ctx, input)
	if err != nil {
		return domainhelpdesk.Ticket{}, err
	}
	s.recordActivityBestEffort(ctx, created.DocumentID, "created", created.Title)
	s.notify(ctx, ports.NoticeInfo, "ticket created")
	return created, nil
}

func (s *Service) UpdateTicket(ctx context.Context, id string, patch TicketPatch) (domainhelpdesk.Ticket, error) {
	if err := s.check(ctx); err != nil {
		return domainhelpdesk.Ticket{}, err
	}
	ticketID, err := parseID(id)
	if err != nil {
		return domainhelpdesk.Ticket{}, err
	}
	payload, err := patch.toPayload()
	if err != nil {
		return domainhelpdesk.Ticket{}, err
	}
	if len(payload) == 0 {
		return domainhelpdesk.Ticket{}, validation(errNothingToUpdate)
	}

	updated, err := s.tickets.Update(ctx, ticketID, payload)
	if err != nil {
		return domainhelpdesk.Ticket{}, err
	}
	s.recordActivityBestEffort(ctx, ticketID, "updated", strings.Join(sortedKeys(payload), ","))
	return updated, nil
}

func (s *Service) SetTicketStatus(ctx context.Context, id string, status string) (domainhelpdesk.Ticket, error) {
	if strings.TrimSpace(status) == "" {
		return domainhelpdesk.Ticket{}, validation(domainhelpdesk.ErrInvalidStatus)
	}
	return s.UpdateTicket(ctx, id, TicketPatch{Status: &status})
}

// AssignTicket sets the assignee after checking the agent exists. An empty
// agentID unassigns the ticket.
func (s *Service) AssignTicket(ctx context.Context, id string, agentID string) (domainhelpdesk.Ticket, error) {
	if err := s.check(ctx); err != nil {
		return domainhelpdesk.Ticket{}, err
	}
	ticketID, err := parseID(id)
	if err != nil {
		return domainhelpdesk.Ticket{}, err
	}

	payload := map[string]any{"assignee": nil}
	detail := "unassigned"
	if agentID = strings.TrimSpace(agentID); agentID != "" {
		agent, err := s.handlers.Agents.FindByID(ctx, agentID, ports.Query{})
		if err != nil {
			if errs.IsNotFound(err) {
				return domainhelpdesk.Ticket{}, validation(errs.Wrapf(err, "agent %s", agentID))
			}
			return domainhelpdesk.Ticket{}, errs.Wrap(err, "look up agent")
		}
		payload["assignee"] = ref(agent.DocumentID)
		detail = agent.Name
	}

	updated, err := s.tickets.Update(ctx, ticketID, payload)
	if err != nil {
		return domainhelpdesk.Ticket{}, err
	}
	s.recordActivityBestEffort(ctx, ticketID, "assigned", detail)
	return updated, nil
}

func (s *Service) DeleteTicket(ctx context.Context, id string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	ticketID, err := parseID(id)
	if err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return err
	}
	s.recordActivityBestEffort(ctx, ticketID, "deleted", "")
	return nil
}

// GetTicket returns the cached ticket, fetching it when not loaded.
func (s *Service) GetTicket(ctx context.Context, id string) (domainhelpdesk.Ticket, error) {
	if err := s.check(ctx); err != nil {
		return domainhelpdesk.Ticket{}, err
	}
	ticketID, err := parseID(id)
	if err != nil {
		return domainhelpdesk.Ticket{}, err
	}
	if ticket, ok := s.tickets.Get(ticketID); ok {
		return ticket, nil
	}
	return s.tickets.Fetch(ctx, ticketID, ports.Query{Populate: ticketPopulate})
}

// SelectTicket marks a loaded ticket as the one detail views show. It
// reports false when the ticket is not in the list.
func (s *Service) SelectTicket(id string) bool {
	return s.tickets.Select(strings.TrimSpace(id))
}

// SelectedTicket resolves the selection against the current list, so it
// reflects the latest server response and disappears on delete.
func (s *Service) SelectedTicket() (domainhelpdesk.Ticket, bool) {
	return s.tickets.Selected()
}

func (s *Service) ClearTicketSelection() {
	s.tickets.ClearSelection()
}

func (s *Service) ListComments(ctx context.Context, ticketID string) ([]domainhelpdesk.Comment, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	id, err := parseID(ticketID)
	if err != nil {
		return nil, err
	}
	comments, err := s.handlers.Comments.FindAll(ctx, ports.Query{
		Filters:  []ports.Filter{ports.Eq("ticket.documentId", id)},
		Sort:     []string{"createdAt:asc"},
		Populate: []string{"author"},
	})
	if err != nil {
		logging.Error(s.logCtx(ctx, slog.String("ticket_id", id)), "list comments failed", slog.Any("err", errs.Loggable(err)))
		s.notify(ctx, ports.NoticeError, "could not load comments")
		return nil, errs.Wrap(err, "list comments")
	}
	return comments, nil
}

func (s *Service) AddComment(ctx context.Context, ticketID string, body string) (domainhelpdesk.Comment, error) {
	if err := s.check(ctx); err != nil {
		return domainhelpdesk.Comment{}, err
	}
	id, err := parseID(ticketID)
	if err != nil {
		return domainhelpdesk.Comment{}, err
	}
	userID, err := s.requireUser()
	if err != nil {
		return domainhelpdesk.Comment{}, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return domainhelpdesk.Comment{}, validation(domainhelpdesk.ErrBodyRequired)
	}

	comment, err := s.handlers.Comments.Create(ctx, map[string]any{
		"body":   body,
		"ticket": ref(id),
		"author": ref(userID),
	}, ports.Query{Populate: []string{"author"}})
	if err != nil {
		logging.Error(s.logCtx(ctx, slog.String("ticket_id", id)), "add comment failed", slog.Any("err", errs.Loggable(err)))
		s.notify(ctx, ports.NoticeError, "could not add comment")
		return domainhelpdesk.Comment{}, errs.Wrap(err, "add comment")
	}
	s.recordActivityBestEffort(ctx, id, "commented", "")
	return comment, nil
}

func (s *Service) ListActivities(ctx context.Context, ticketID string) ([]domainhelpdesk.Activity, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	id, err := parseID(ticketID)
	if err != nil {
		return nil, err
	}
	activities, err := s.handlers.Activities.FindAll(ctx, ports.Query{
		Filters: []ports.Filter{ports.Eq("ticket.documentId", id)},
		Sort:    []string{"createdAt:asc"},
	})
	if err != nil {
		return nil, errs.Wrap(err, "list activities")
	}
	return activities, nil
}

// recordActivityBestEffort appends to the ticket's activity log. Failures
// are logged and never fail the mutation that triggered them.
func (s *Service) recordActivityBestEffort(ctx context.Context, ticketID string, action string, detail string) {
	input := map[string]any{
		"action": action,
		"ticket": ref(ticketID),
	}
	if detail != "" {
		input["detail"] = detail
	}
	if userID := strings.TrimSpace(s.principal.UserID()); userID != "" {
		input["actor"] = ref(userID)
	}
	if _, err := s.handlers.Activities.Create(ctx, input, ports.Query{}); err != nil {
		logging.Warn(s.logCtx(ctx, slog.String("ticket_id", ticketID), slog.String("action", action)),
			"record activity failed",
			slog.Any("err", errs.Loggable(err)),
		)
	}
}
