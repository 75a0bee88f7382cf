package helpdesk

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"helpdesk/internal/bootstrap/logging"
	domainhelpdesk "helpdesk/internal/domain/helpdesk"
	"helpdesk/internal/errs"
	"helpdesk/internal/ports"
	"helpdesk/internal/usecase/rescache"
)

var (
	errPrincipalRequired = errors.New("principal is required")
	errHandlerMissing    = errors.New("remote handler is missing")
	errNothingToUpdate   = errors.New("nothing to update")
)

// Handlers are the backend collections the service talks to.
type Handlers struct {
	Tickets        ports.RemoteHandler[domainhelpdesk.Ticket]
	Conversations  ports.RemoteHandler[domainhelpdesk.Conversation]
	KnowledgeBases ports.RemoteHandler[domainhelpdesk.KnowledgeBase]
	Notifications  ports.RemoteHandler[domainhelpdesk.Notification]
	Comments       ports.RemoteHandler[domainhelpdesk.Comment]
	Activities     ports.RemoteHandler[domainhelpdesk.Activity]
	Agents         ports.RemoteHandler[domainhelpdesk.Agent]
	Organisations  ports.RemoteHandler[domainhelpdesk.Organisation]
}

func (h Handlers) validate() error {
	if h.Tickets == nil || h.Conversations == nil || h.KnowledgeBases == nil || h.Notifications == nil ||
		h.Comments == nil || h.Activities == nil || h.Agents == nil || h.Organisations == nil {
		return errHandlerMissing
	}
	return nil
}

// Service owns one resource cache per entity type, scoped to the session
// user, plus the uncached directory and comment lookups.
type Service struct {
	principal ports.Principal
	handlers  Handlers
	notifier  ports.Notifier
	now       func() time.Time

	tickets       *rescache.Cache[domainhelpdesk.Ticket]
	conversations *rescache.Cache[domainhelpdesk.Conversation]
	articles      *rescache.Cache[domainhelpdesk.KnowledgeBase]
	notifications *rescache.Cache[domainhelpdesk.Notification]
}

// NewService wires the caches. notifier may be nil.
func NewService(principal ports.Principal, handlers Handlers, notifier ports.Notifier) (*Service, error) {
	if principal == nil {
		return nil, errPrincipalRequired
	}
	if err := handlers.validate(); err != nil {
		return nil, err
	}

	s := &Service{
		principal: principal,
		handlers:  handlers,
		notifier:  notifier,
		now:       time.Now,
	}

	var err error
	if s.tickets, err = rescache.New(handlers.Tickets, ticketOptions(principal.UserID, notifier)); err != nil {
		return nil, errs.Wrap(err, "init ticket cache")
	}
	if s.conversations, err = rescache.New(handlers.Conversations, conversationOptions(principal.UserID, notifier)); err != nil {
		return nil, errs.Wrap(err, "init conversation cache")
	}
	if s.articles, err = rescache.New(handlers.KnowledgeBases, articleOptions(principal.UserID, notifier)); err != nil {
		return nil, errs.Wrap(err, "init knowledge base cache")
	}
	if s.notifications, err = rescache.New(handlers.Notifications, notificationOptions(principal.UserID, notifier)); err != nil {
		return nil, errs.Wrap(err, "init notification cache")
	}
	return s, nil
}

func (s *Service) Tickets() *rescache.Cache[domainhelpdesk.Ticket] { return s.tickets }

func (s *Service) Conversations() *rescache.Cache[domainhelpdesk.Conversation] {
	return s.conversations
}

func (s *Service) Articles() *rescache.Cache[domainhelpdesk.KnowledgeBase] { return s.articles }

func (s *Service) Notifications() *rescache.Cache[domainhelpdesk.Notification] {
	return s.notifications
}

// LoadAll loads every cache and joins the failures.
func (s *Service) LoadAll(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return errors.Join(
		ignoreStale(s.tickets.Load(ctx)),
		ignoreStale(s.conversations.Load(ctx)),
		ignoreStale(s.articles.Load(ctx)),
		ignoreStale(s.notifications.Load(ctx)),
	)
}

// Reset drops all cached state and cancels in-flight loads. A running
// console calls it once the backend rejects the session.
func (s *Service) Reset() {
	s.tickets.Reset()
	s.conversations.Reset()
	s.articles.Reset()
	s.notifications.Reset()
}

func (s *Service) check(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	return nil
}

// requireUser returns the session user id or rescache.ErrUserRequired.
func (s *Service) requireUser() (string, error) {
	userID := strings.TrimSpace(s.principal.UserID())
	if userID == "" {
		return "", errs.WithKind(rescache.ErrUserRequired, errs.KindUnauthorized)
	}
	return userID, nil
}

func (s *Service) notify(ctx context.Context, level ports.NoticeLevel, message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, ports.Notice{Level: level, Message: message})
}

func (s *Service) logCtx(ctx context.Context, attrs ...slog.Attr) context.Context {
	ctx = logging.WithComponent(ctx, "helpdesk")
	if len(attrs) > 0 {
		ctx = logging.WithAttrs(ctx, attrs...)
	}
	return ctx
}

func ref(documentID string) map[string]string {
	return map[string]string{"documentId": documentID}
}

func refs(documentIDs []string) []map[string]string {
	out := make([]map[string]string, 0, len(documentIDs))
	for _, id := range documentIDs {
		out = append(out, ref(id))
	}
	return out
}

func validation(err error) error {
	return errs.WithKind(err, errs.KindValidation)
}

func ignoreStale(err error) error {
	if errors.Is(err, rescache.ErrStale) {
		return nil
	}
	return err
}

func parseID(id string) (string, error) {
	parsed, err := domainhelpdesk.ParseDocumentID(id)
	if err != nil {
		return "", validation(err)
	}
	return parsed, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
