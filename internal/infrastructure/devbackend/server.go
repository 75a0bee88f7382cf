package devbackend

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"helpdesk/internal/bootstrap/logging"
	"helpdesk/internal/errs"
	"helpdesk/internal/infrastructure/strapi"
	"helpdesk/internal/ports"
)

// Internal collections never exposed over HTTP.
const (
	collectionCredentials = "_credentials"
	collectionSessions    = "_sessions"
)

var errRepositoryRequired = errors.New("document repository is required")

// publicCollections are the REST collections served under /api.
var publicCollections = map[string]struct{}{
	strapi.PathTickets:        {},
	strapi.PathConversations:  {},
	strapi.PathKnowledgeBases: {},
	strapi.PathNotifications:  {},
	strapi.PathComments:       {},
	strapi.PathAgents:         {},
	strapi.PathOrganisations:  {},
	strapi.PathUsers:          {},
	strapi.PathActivities:     {},
	strapi.PathOtps:           {},
	strapi.PathSms:            {},
}

// relationTargets maps relation fields to the collection they point at.
var relationTargets = map[string]string{
	"assignee":     strapi.PathAgents,
	"client":       strapi.PathUsers,
	"organisation": strapi.PathOrganisations,
	"participants": strapi.PathUsers,
	"recipient":    strapi.PathUsers,
	"author":       strapi.PathUsers,
	"actor":        strapi.PathUsers,
	"user":         strapi.PathUsers,
	"ticket":       strapi.PathTickets,
}

// Server is a local stand-in for the Strapi backend. Records are JSON
// documents in one table; filters, sorting and population run in process.
type Server struct {
	repo  ports.DocumentRepository
	uow   ports.UnitOfWork
	now   func() time.Time
	newID func() string
}

// NewServer builds a server. uow may be nil.
func NewServer(repo ports.DocumentRepository, uow ports.UnitOfWork) (*Server, error) {
	if repo == nil {
		return nil, errRepositoryRequired
	}
	return &Server{
		repo:  repo,
		uow:   uow,
		now:   time.Now,
		newID: newDocumentID,
	}, nil
}

// newDocumentID mimics Strapi's 24 character lowercase document ids.
func newDocumentID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/local", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)
			r.Get("/users/me", s.handleMe)
			r.Route("/{collection}", func(r chi.Router) {
				r.Use(s.requireCollection)
				r.Get("/", s.handleList)
				r.Post("/", s.handleCreate)
				r.Get("/{documentID}", s.handleGet)
				r.Put("/{documentID}", s.handleUpdate)
				r.Delete("/{documentID}", s.handleDelete)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NotFoundError", "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowedError", "Method Not Allowed")
	})
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ctx = logging.WithComponent(ctx, "devbackend")
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	logging.Info(ctx, "dev backend started", slog.String("addr", addr))

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(ctx, "dev backend failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "serve dev backend")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errs.Wrap(err, "shutdown dev backend")
	}
	logging.Info(ctx, "dev backend stopped")
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Debug(logging.WithComponent(r.Context(), "devbackend"), "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(startedAt)),
		)
	})
}

func (s *Server) requireCollection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := publicCollections[chi.URLParam(r, "collection")]; !ok {
			writeError(w, http.StatusNotFound, "NotFoundError", "Not Found")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withTx runs fn in a unit of work when one is configured.
func (s *Server) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.uow == nil {
		return fn(ctx)
	}
	return s.uow.WithTx(ctx, fn)
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format("2006-01-02T15:04:05.000Z")
}
