package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"helpdesk/internal/domain/helpdesk"
	"helpdesk/internal/errs"
	"helpdesk/internal/infrastructure/cache"
	"helpdesk/internal/infrastructure/persistence/sqlite/model"
	"helpdesk/internal/ports"
)

type fakeAuth struct {
	token   string
	user    helpdesk.User
	me      helpdesk.User
	loginFn func() error
	meErr   error
	gotMe   string
}

func (f *fakeAuth) Login(_ context.Context, _ string, _ string) (string, helpdesk.User, error) {
	if f.loginFn != nil {
		if err := f.loginFn(); err != nil {
			return "", helpdesk.User{}, err
		}
	}
	return f.token, f.user, nil
}

func (f *fakeAuth) Me(_ context.Context, token string) (helpdesk.User, error) {
	f.gotMe = token
	if f.meErr != nil {
		return helpdesk.User{}, f.meErr
	}
	return f.me, nil
}

func newStore(t *testing.T) *cache.SQLiteCache {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "state.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.KV{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return cache.NewSQLiteCache(db)
}

func TestLoginSavesSessionAndExposesPrincipal(t *testing.T) {
	store := newStore(t)
	auth := &fakeAuth{
		token: "jwt-1",
		user:  helpdesk.User{DocumentID: "u1", Username: "alice"},
		me:    helpdesk.User{DocumentID: "u1", Username: "alice", Role: &helpdesk.Role{Name: "Agent", Type: "agent"}},
	}
	svc := NewService(store, auth)
	ctx := context.Background()

	got, err := svc.Login(ctx, " alice ", "secret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if got.Role != "agent" || svc.Token() != "jwt-1" || svc.UserID() != "u1" {
		t.Fatalf("Login() session = %+v", got)
	}
	if auth.gotMe != "jwt-1" {
		t.Fatalf("Me() token = %q, want jwt-1", auth.gotMe)
	}

	reloaded := NewService(store, nil)
	loaded, err := reloaded.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Token != "jwt-1" || loaded.User.Username != "alice" || loaded.Role != "agent" {
		t.Fatalf("Load() = %+v", loaded)
	}
	if loaded.SavedAt.IsZero() {
		t.Fatalf("Load() SavedAt is zero")
	}
}

func TestLoadToleratesAbsence(t *testing.T) {
	svc := NewService(newStore(t), nil)

	loaded, err := svc.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !loaded.IsZero() {
		t.Fatalf("Load() = %+v, want zero session", loaded)
	}
	if _, err := svc.Require(); !errors.Is(err, ErrNotLoggedIn) || !errs.IsUnauthorized(err) {
		t.Fatalf("Require() error = %v", err)
	}
}

// keyFailingStore fails reads of one key and delegates everything else.
type keyFailingStore struct {
	ports.Cache
	key string
	err error
}

func (s keyFailingStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == s.key {
		return "", false, s.err
	}
	return s.Cache.Get(ctx, key)
}

func TestLoadFailsOnStoreError(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	auth := &fakeAuth{token: "jwt-1", user: helpdesk.User{DocumentID: "u1", Username: "alice"}, meErr: errors.New("offline")}
	if _, err := NewService(store, auth).Login(ctx, "alice", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	boom := errors.New("disk I/O error")
	for _, key := range []string{KeyToken, KeyUser, KeyRole, KeySavedAt} {
		svc := NewService(keyFailingStore{Cache: store, key: key, err: boom}, nil)
		loaded, err := svc.Load(ctx)
		if !errors.Is(err, boom) {
			t.Fatalf("Load() with failing %s error = %v, want %v", key, err, boom)
		}
		if !loaded.IsZero() || !svc.Current().IsZero() {
			t.Fatalf("Load() with failing %s kept a partial session: %+v", key, svc.Current())
		}
	}
}

func TestLoadDiscardsCorruptUser(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	if err := store.Set(ctx, KeyToken, "jwt", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set(ctx, KeyUser, "{not json", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	loaded, err := NewService(store, nil).Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Token != "jwt" || loaded.User.DocumentID != "" {
		t.Fatalf("Load() = %+v", loaded)
	}
}

func TestClearRemovesPersistedSession(t *testing.T) {
	store := newStore(t)
	svc := NewService(store, nil)
	ctx := context.Background()

	saved := Session{Token: "t", User: helpdesk.User{DocumentID: "u1"}, SavedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	if err := svc.Save(ctx, saved); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := svc.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if svc.Token() != "" || svc.UserID() != "" {
		t.Fatalf("Clear() left principal %q/%q", svc.Token(), svc.UserID())
	}
	for _, key := range []string{KeyToken, KeyUser, KeyRole, KeySavedAt} {
		if _, found, err := store.Get(ctx, key); err != nil || found {
			t.Fatalf("Get(%s) found=%v err=%v after Clear()", key, found, err)
		}
	}
}

func TestLoginValidationAndFailure(t *testing.T) {
	auth := &fakeAuth{loginFn: func() error {
		return errs.WithKind(errors.New("invalid identifier or password"), errs.KindValidation)
	}}
	svc := NewService(newStore(t), auth)
	ctx := context.Background()

	if _, err := svc.Login(ctx, "", "x"); !errs.IsValidation(err) {
		t.Fatalf("Login(empty identifier) error = %v", err)
	}
	if _, err := svc.Login(ctx, "alice", ""); !errs.IsValidation(err) {
		t.Fatalf("Login(empty password) error = %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "wrong"); !errs.IsValidation(err) {
		t.Fatalf("Login(wrong password) error = %v", err)
	}
	if svc.Token() != "" {
		t.Fatalf("failed login must not set a token")
	}
}

func TestLoginFallsBackToLoginUser(t *testing.T) {
	auth := &fakeAuth{
		token: "jwt",
		user:  helpdesk.User{DocumentID: "u9", Username: "bob"},
		meErr: errors.New("forbidden"),
	}
	svc := NewService(newStore(t), auth)

	got, err := svc.Login(context.Background(), "bob", "pw")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if got.User.DocumentID != "u9" || got.Role != "" {
		t.Fatalf("Login() = %+v", got)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewService(newStore(t), nil).Load(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Load() error = %v, want context.Canceled", err)
	}
}
