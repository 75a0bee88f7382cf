package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"helpdesk/internal/bootstrap/logging"
	"helpdesk/internal/domain/helpdesk"
	"helpdesk/internal/errs"
	"helpdesk/internal/ports"
)

const (
	KeyToken   = "session:token"
	KeyUser    = "session:user"
	KeyRole    = "session:role"
	KeySavedAt = "session:saved_at"
)

var (
	ErrNotLoggedIn        = errors.New("not logged in")
	errIdentifierRequired = errors.New("identifier is required")
	errPasswordRequired   = errors.New("password is required")
	errStoreRequired      = errors.New("session store is required")
	errAuthRequired       = errors.New("authenticator is required")
)

// Session is the authenticated identity persisted between runs.
type Session struct {
	Token   string
	User    helpdesk.User
	Role    string
	SavedAt time.Time
}

func (s Session) IsZero() bool {
	return s.Token == "" && s.User.DocumentID == ""
}

// Authenticator performs the backend login exchange.
type Authenticator interface {
	Login(ctx context.Context, identifier string, password string) (string, helpdesk.User, error)
	Me(ctx context.Context, token string) (helpdesk.User, error)
}

// Service owns the current session. It satisfies ports.Principal so the REST
// client and caches read the token and user id from it.
type Service struct {
	store ports.Cache
	auth  Authenticator
	now   func() time.Time

	mu      sync.RWMutex
	current Session
}

var _ ports.Principal = (*Service)(nil)

func NewService(store ports.Cache, auth Authenticator) *Service {
	return &Service{
		store: store,
		auth:  auth,
		now:   time.Now,
	}
}

func (s *Service) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}

func (s *Service) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.User.DocumentID
}

func (s *Service) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.User.Username
}

func (s *Service) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Require returns the current session or ErrNotLoggedIn.
func (s *Service) Require() (Session, error) {
	current := s.Current()
	if current.Token == "" || current.User.DocumentID == "" {
		return Session{}, errs.WithKind(ErrNotLoggedIn, errs.KindUnauthorized)
	}
	return current, nil
}

// Load rehydrates the session from the store. Missing keys leave the
// corresponding fields empty.
func (s *Service) Load(ctx context.Context) (Session, error) {
	if err := s.check(ctx); err != nil {
		return Session{}, err
	}

	var loaded Session
	token, _, err := s.store.Get(ctx, KeyToken)
	if err != nil {
		return Session{}, errs.Wrap(err, "read session token")
	}
	loaded.Token = token

	rawUser, found, err := s.store.Get(ctx, KeyUser)
	if err != nil {
		return Session{}, errs.Wrap(err, "read session user")
	}
	if found && strings.TrimSpace(rawUser) != "" {
		if err := json.Unmarshal([]byte(rawUser), &loaded.User); err != nil {
			logging.Warn(ctx, "discarding unreadable session user", slog.Any("err", errs.Loggable(err)))
			loaded.User = helpdesk.User{}
		}
	}

	role, _, err := s.store.Get(ctx, KeyRole)
	if err != nil {
		return Session{}, errs.Wrap(err, "read session role")
	}
	loaded.Role = role

	rawSavedAt, found, err := s.store.Get(ctx, KeySavedAt)
	if err != nil {
		return Session{}, errs.Wrap(err, "read session saved_at")
	}
	if found {
		if savedAt, parseErr := time.Parse(time.RFC3339Nano, rawSavedAt); parseErr == nil {
			loaded.SavedAt = savedAt
		}
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()
	return loaded, nil
}

func (s *Service) Save(ctx context.Context, session Session) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if session.SavedAt.IsZero() {
		session.SavedAt = s.now().UTC()
	}
	if session.Role == "" {
		session.Role = session.User.RoleName()
	}

	rawUser, err := json.Marshal(session.User)
	if err != nil {
		return errs.Wrap(err, "encode session user")
	}
	values := []struct {
		key   string
		value string
	}{
		{KeyToken, session.Token},
		{KeyUser, string(rawUser)},
		{KeyRole, session.Role},
		{KeySavedAt, session.SavedAt.Format(time.RFC3339Nano)},
	}
	for _, kv := range values {
		if err := s.store.Set(ctx, kv.key, kv.value, 0); err != nil {
			return errs.Wrapf(err, "write %s", kv.key)
		}
	}

	s.mu.Lock()
	s.current = session
	s.mu.Unlock()
	return nil
}

func (s *Service) Clear(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	for _, key := range []string{KeyToken, KeyUser, KeyRole, KeySavedAt} {
		if err := s.store.Delete(ctx, key); err != nil {
			return errs.Wrapf(err, "delete %s", key)
		}
	}
	s.mu.Lock()
	s.current = Session{}
	s.mu.Unlock()
	return nil
}

// Login authenticates, loads the user with its role and persists the result.
func (s *Service) Login(ctx context.Context, identifier string, password string) (Session, error) {
	if err := s.check(ctx); err != nil {
		return Session{}, err
	}
	if s.auth == nil {
		return Session{}, errAuthRequired
	}
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return Session{}, errs.WithKind(errIdentifierRequired, errs.KindValidation)
	}
	if password == "" {
		return Session{}, errs.WithKind(errPasswordRequired, errs.KindValidation)
	}

	ctx = logging.WithAttrs(ctx, slog.String("identifier", identifier))
	token, user, err := s.auth.Login(ctx, identifier, password)
	if err != nil {
		logging.Warn(ctx, "login failed", slog.Any("err", errs.Loggable(err)))
		return Session{}, errs.Wrap(err, "login")
	}

	me, err := s.auth.Me(ctx, token)
	if err != nil {
		logging.Warn(ctx, "load current user failed; using login payload", slog.Any("err", errs.Loggable(err)))
		me = user
	}

	session := Session{Token: token, User: me, Role: me.RoleName()}
	if err := s.Save(ctx, session); err != nil {
		return Session{}, err
	}
	logging.Info(ctx, "logged in", slog.String("user_id", me.DocumentID), slog.String("role", session.Role))
	return s.Current(), nil
}

func (s *Service) check(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.store == nil {
		return errStoreRequired
	}
	return nil
}
