package devbackend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"helpdesk/internal/domain/helpdesk"
	"helpdesk/internal/errs"
	"helpdesk/internal/infrastructure/persistence/sqlite/model"
	"helpdesk/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "helpdesk/internal/infrastructure/persistence/sqlite/uow"
	"helpdesk/internal/infrastructure/strapi"
	"helpdesk/internal/ports"
)

type tokenPrincipal string

func (p tokenPrincipal) Token() string    { return string(p) }
func (p tokenPrincipal) UserID() string   { return "" }
func (p tokenPrincipal) Username() string { return "" }

const fixtureSeed = `
users:
  - document_id: u-alice
    username: alice
    email: alice@example.com
    password: secret
    role: Agent
  - document_id: u-bob
    username: bob
    password: hunter2
    role: Client
collections:
  agents:
    - documentId: a-alice
      name: Alice Agent
      user: u-alice
  tickets:
    - documentId: t-1
      title: Printer jam
      description: Paper stuck again
      status: open
      priority: low
      client: u-bob
    - documentId: t-2
      title: VPN down
      description: cannot reach intranet
      status: pending
      priority: high
      assignee: a-alice
    - documentId: t-3
      title: New laptop
      description: onboarding
      status: resolved
      priority: medium
`

type testBackend struct {
	server *Server
	http   *httptest.Server
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "backend.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.Document{}))

	srv, err := NewServer(repository.NewDocumentRepository(db), sqliteuow.NewUnitOfWork(db))
	require.NoError(t, err)

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	srv.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	next := 0
	srv.newID = func() string {
		next++
		return fmt.Sprintf("doc-%d", next)
	}

	seedPath := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(fixtureSeed), 0o644))
	seed, err := LoadSeedFile(seedPath)
	require.NoError(t, err)
	_, err = srv.ApplySeed(context.Background(), seed)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testBackend{server: srv, http: ts}
}

func (b *testBackend) client(t *testing.T, token string) *strapi.Client {
	t.Helper()
	var opts []strapi.ClientOption
	if token != "" {
		opts = append(opts, strapi.WithPrincipal(tokenPrincipal(token)))
	}
	client, err := strapi.NewClient(b.http.URL, 5*time.Second, opts...)
	require.NoError(t, err)
	return client
}

func (b *testBackend) login(t *testing.T, identifier, password string) string {
	t.Helper()
	token, _, err := b.client(t, "").Login(context.Background(), identifier, password)
	require.NoError(t, err)
	return token
}

func (b *testBackend) get(t *testing.T, token, path string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.http.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func ticketIDs(tickets []helpdesk.Ticket) []string {
	out := make([]string, 0, len(tickets))
	for _, ticket := range tickets {
		out = append(out, ticket.DocumentID)
	}
	return out
}

func TestLoginAndMe(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	token, user, err := b.client(t, "").Login(ctx, "Alice@Example.com", "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "u-alice", user.DocumentID)

	me, err := b.client(t, "").Me(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, "agent", me.RoleName())
}

func TestLoginRejectsBadPassword(t *testing.T) {
	b := newTestBackend(t)

	_, _, err := b.client(t, "").Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
}

func TestCredentialsStoreBcryptHash(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	first, err := b.server.repo.GetDocument(ctx, collectionCredentials, "alice")
	require.NoError(t, err)
	hash := gjson.Get(first.Payload, "passwordHash").String()
	assert.NotContains(t, first.Payload, "secret")
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret")))

	byEmail, err := b.server.repo.GetDocument(ctx, collectionCredentials, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, hash, gjson.Get(byEmail.Payload, "passwordHash").String())

	_, err = b.server.RegisterUser(ctx, map[string]any{"documentId": "u-carol", "username": "carol"}, "same-secret")
	require.NoError(t, err)
	_, err = b.server.RegisterUser(ctx, map[string]any{"documentId": "u-dave", "username": "dave"}, "same-secret")
	require.NoError(t, err)
	carol, err := b.server.repo.GetDocument(ctx, collectionCredentials, "carol")
	require.NoError(t, err)
	dave, err := b.server.repo.GetDocument(ctx, collectionCredentials, "dave")
	require.NoError(t, err)
	assert.NotEqual(t, gjson.Get(carol.Payload, "passwordHash").String(), gjson.Get(dave.Payload, "passwordHash").String())

	token := b.login(t, "dave", "same-secret")
	assert.NotEmpty(t, token)
}

func TestCollectionsRequireToken(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	_, err := strapi.NewHandler[helpdesk.Ticket](b.client(t, ""), strapi.PathTickets).FindAll(ctx, ports.Query{})
	require.Error(t, err)
	assert.True(t, errs.IsUnauthorized(err))

	_, err = strapi.NewHandler[helpdesk.Ticket](b.client(t, "not-a-token"), strapi.PathTickets).FindAll(ctx, ports.Query{})
	require.Error(t, err)
	assert.True(t, errs.IsUnauthorized(err))
}

func TestTicketCRUD(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	tickets := strapi.NewHandler[helpdesk.Ticket](b.client(t, b.login(t, "bob", "hunter2")), strapi.PathTickets)

	created, err := tickets.Create(ctx, map[string]any{
		"title":       "Monitor flickers",
		"description": "since monday",
		"status":      "open",
		"priority":    "medium",
		"documentId":  "ignored",
		"client":      map[string]any{"documentId": "u-bob"},
	}, ports.Query{})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", created.DocumentID)
	assert.False(t, created.CreatedAt.IsZero())
	require.NotNil(t, created.Client)
	assert.Equal(t, "u-bob", created.Client.DocumentID)

	updated, err := tickets.Update(ctx, created.DocumentID, map[string]any{"status": "resolved"}, ports.Query{})
	require.NoError(t, err)
	assert.Equal(t, helpdesk.StatusResolved, updated.Status)
	assert.Equal(t, "Monitor flickers", updated.Title)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	got, err := tickets.FindByID(ctx, created.DocumentID, ports.Query{Populate: []string{"client"}})
	require.NoError(t, err)
	require.NotNil(t, got.Client)
	assert.Equal(t, "bob", got.Client.Username)

	require.NoError(t, tickets.Delete(ctx, created.DocumentID))
	_, err = tickets.FindByID(ctx, created.DocumentID, ports.Query{})
	assert.True(t, errs.IsNotFound(err))
	err = tickets.Delete(ctx, created.DocumentID)
	assert.True(t, errs.IsNotFound(err))
	_, err = tickets.Update(ctx, created.DocumentID, map[string]any{"status": "open"}, ports.Query{})
	assert.True(t, errs.IsNotFound(err))
}

func TestMutationResponsesArePopulated(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	tickets := strapi.NewHandler[helpdesk.Ticket](b.client(t, b.login(t, "bob", "hunter2")), strapi.PathTickets)
	populate := ports.Query{Populate: []string{"assignee", "client"}}

	created, err := tickets.Create(ctx, map[string]any{
		"title":  "Dock not charging",
		"status": "open",
		"client": "u-bob",
	}, populate)
	require.NoError(t, err)
	require.NotNil(t, created.Client)
	assert.Equal(t, "bob", created.Client.Username)

	assigned, err := tickets.Update(ctx, created.DocumentID, map[string]any{"assignee": "a-alice"}, populate)
	require.NoError(t, err)
	require.NotNil(t, assigned.Assignee)
	assert.Equal(t, "Alice Agent", assigned.Assignee.Name)
	require.NotNil(t, assigned.Client)
	assert.Equal(t, "bob", assigned.Client.Username)

	bare, err := tickets.Update(ctx, created.DocumentID, map[string]any{"priority": "high"}, ports.Query{})
	require.NoError(t, err)
	require.NotNil(t, bare.Assignee)
	assert.Equal(t, "a-alice", bare.Assignee.DocumentID)
	assert.Empty(t, bare.Assignee.Name)
}

func TestNumericIDsStayUniqueAfterDelete(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	tickets := strapi.NewHandler[helpdesk.Ticket](b.client(t, b.login(t, "alice", "secret")), strapi.PathTickets)

	require.NoError(t, tickets.Delete(ctx, "t-1"))
	created, err := tickets.Create(ctx, map[string]any{"title": "Badge reader", "status": "open"}, ports.Query{})
	require.NoError(t, err)

	all, err := tickets.FindAll(ctx, ports.Query{})
	require.NoError(t, err)
	seen := make(map[int]string, len(all))
	for _, ticket := range all {
		other, dup := seen[ticket.ID]
		require.False(t, dup, "id %d shared by %s and %s", ticket.ID, other, ticket.DocumentID)
		seen[ticket.ID] = ticket.DocumentID
	}
	assert.Equal(t, 4, created.ID)
}

func TestListFollowsRelationsInFilters(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	tickets := strapi.NewHandler[helpdesk.Ticket](b.client(t, b.login(t, "alice", "secret")), strapi.PathTickets)

	mine := func(uid string) ports.Query {
		return ports.Query{
			Sort:     []string{"title:asc"},
			Populate: []string{"assignee", "client"},
		}.WithAnyOf(
			ports.Eq("client.documentId", uid),
			ports.Eq("assignee.user.documentId", uid),
		)
	}

	got, err := tickets.FindAll(ctx, mine("u-alice"))
	require.NoError(t, err)
	assert.Equal(t, []string{"t-2"}, ticketIDs(got))
	require.NotNil(t, got[0].Assignee)
	assert.Equal(t, "Alice Agent", got[0].Assignee.Name)

	got, err = tickets.FindAll(ctx, mine("u-bob"))
	require.NoError(t, err)
	assert.Equal(t, []string{"t-1"}, ticketIDs(got))
	require.NotNil(t, got[0].Client)
	assert.Equal(t, "bob", got[0].Client.Username)
}

func TestListSearchGroupsAndOperators(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	tickets := strapi.NewHandler[helpdesk.Ticket](b.client(t, b.login(t, "alice", "secret")), strapi.PathTickets)

	got, err := tickets.FindAll(ctx, ports.Query{Sort: []string{"title:asc"}}.WithAnyOf(
		ports.Containsi("title", "VPN"),
		ports.Containsi("description", "PAPER"),
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"t-1", "t-2"}, ticketIDs(got))

	got, err = tickets.FindAll(ctx, ports.Query{Sort: []string{"title:desc"}}.With(
		ports.Filter{Field: "status", Op: ports.OpNe, Value: "resolved"},
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"t-2", "t-1"}, ticketIDs(got))

	_, err = tickets.FindAll(ctx, ports.Query{}.With(ports.Filter{Field: "title", Op: "$regex", Value: "x"}))
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
}

func TestListPagination(t *testing.T) {
	b := newTestBackend(t)
	token := b.login(t, "alice", "secret")

	status, body := b.get(t, token, "/api/tickets?sort[0]=title:asc&pagination[page]=2&pagination[pageSize]=2")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, `["t-2"]`, gjson.GetBytes(body, "data.#.documentId").Raw)
	assert.Equal(t, int64(3), gjson.GetBytes(body, "meta.pagination.total").Int())
	assert.Equal(t, int64(2), gjson.GetBytes(body, "meta.pagination.pageCount").Int())

	status, body = b.get(t, token, "/api/tickets")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, gjson.GetBytes(body, "data").Array(), 3)
	assert.Equal(t, int64(1), gjson.GetBytes(body, "meta.pagination.pageCount").Int())
}

func TestUnknownRoutesAnswerWithErrorEnvelope(t *testing.T) {
	b := newTestBackend(t)
	token := b.login(t, "alice", "secret")

	status, body := b.get(t, token, "/api/_credentials")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NotFoundError", gjson.GetBytes(body, "error.name").String())

	status, body = b.get(t, token, "/api/tickets?pagination[page]=0")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "ValidationError", gjson.GetBytes(body, "error.name").String())

	status, _ = b.get(t, "", "/healthz")
	assert.Equal(t, http.StatusOK, status)
}

func TestCreateRequiresDataEnvelope(t *testing.T) {
	b := newTestBackend(t)
	token := b.login(t, "alice", "secret")

	_, err := b.client(t, token).Do(context.Background(), http.MethodPost, strapi.PathTickets, nil, []byte(`{"title":"bare"}`))
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
}

func TestApplySeedIsIdempotent(t *testing.T) {
	b := newTestBackend(t)

	seedPath := filepath.Join(t.TempDir(), "seed.toml")
	require.NoError(t, os.WriteFile(seedPath, []byte(`
[[users]]
document_id = "u-alice"
username = "alice"
password = "secret"

[[users]]
document_id = "u-carol"
username = "carol"
password = "pw"

[[collections.knowledge-bases]]
documentId = "kb-1"
title = "Reset your password"
content = "Use the self service portal."

[[collections.tickets]]
documentId = "t-1"
title = "duplicate"
`), 0o644))

	seed, err := LoadSeedFile(seedPath)
	require.NoError(t, err)
	created, err := b.server.ApplySeed(context.Background(), seed)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = b.server.ApplySeed(context.Background(), seed)
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	token := b.login(t, "carol", "pw")
	articles, err := strapi.NewHandler[helpdesk.KnowledgeBase](b.client(t, token), strapi.PathKnowledgeBases).
		FindAll(context.Background(), ports.Query{})
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "Reset your password", articles[0].Title)

	ticket, err := strapi.NewHandler[helpdesk.Ticket](b.client(t, token), strapi.PathTickets).
		FindByID(context.Background(), "t-1", ports.Query{})
	require.NoError(t, err)
	assert.Equal(t, "Printer jam", ticket.Title)
}

func TestLoadSeedFileRejectsUnknownInput(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "seed.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{}`), 0o644))
	_, err := LoadSeedFile(bad)
	assert.Error(t, err)

	unknown := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("collections:\n  _sessions:\n    - documentId: x\n"), 0o644))
	_, err = LoadSeedFile(unknown)
	assert.Error(t, err)
}
