package rescache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"helpdesk/internal/bootstrap/logging"
	domainhelpdesk "helpdesk/internal/domain/helpdesk"
	"helpdesk/internal/errs"
	"helpdesk/internal/ports"
)

var (
	// ErrUserRequired is returned by Load and remote Search before a session
	// user is known.
	ErrUserRequired = errors.New("user id is required")
	// ErrStale reports that a newer Load or Search superseded the request.
	ErrStale = errors.New("superseded by a newer request")

	errContextRequired = errors.New("context is required")
	errHandlerRequired = errors.New("remote handler is required")
	errIDRequired      = errors.New("document id is required")
)

// Identifiable entities are keyed by their backend document id.
type Identifiable interface {
	GetDocumentID() string
}

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// LoadState is the list load status; Err is set only in StatusError.
type LoadState struct {
	Status Status
	Err    error
}

type InsertPolicy int

const (
	Prepend InsertPolicy = iota
	Append
)

type SearchMode int

const (
	// SearchLocal matches Options.Text over the loaded list.
	SearchLocal SearchMode = iota
	// SearchRemote asks the backend with Options.SearchQuery.
	SearchRemote
)

type Options[T any] struct {
	// Name is the plural noun used in logs and notices, e.g. "tickets".
	Name string
	// Noun is the singular form; defaults to Name.
	Noun   string
	Insert InsertPolicy
	Search SearchMode
	// Text returns the searchable fields of an item.
	Text func(T) []string
	// Scope builds the load query for a user.
	Scope func(userID string) ports.Query
	// SearchQuery narrows the scope query for remote search.
	SearchQuery func(base ports.Query, text string) ports.Query
	// Populate names the relations the backend fills in on mutation
	// responses, so updated entities keep what Load returned.
	Populate []string
	UserID   func() string
	Notifier ports.Notifier
}

// Cache is an ordered, id-unique local copy of one remote collection.
// Mutations go to the backend first; only canonical responses are applied.
type Cache[T Identifiable] struct {
	handler ports.RemoteHandler[T]
	opts    Options[T]

	mu       sync.RWMutex
	items    []T
	selected string
	state    LoadState
	seq      sequencer
}

func New[T Identifiable](handler ports.RemoteHandler[T], opts Options[T]) (*Cache[T], error) {
	if handler == nil {
		return nil, errHandlerRequired
	}
	if strings.TrimSpace(opts.Name) == "" {
		opts.Name = "items"
	}
	if opts.Noun == "" {
		opts.Noun = opts.Name
	}
	return &Cache[T]{
		handler: handler,
		opts:    opts,
	}, nil
}

func (c *Cache[T]) Name() string { return c.opts.Name }

// Load replaces the list with the user's scoped collection. A failed load
// keeps the previous list and records the error state.
func (c *Cache[T]) Load(ctx context.Context) error {
	if ctx == nil {
		return errContextRequired
	}
	userID := c.userID()
	if userID == "" {
		return ErrUserRequired
	}

	c.mu.Lock()
	reqCtx, seq, cancel := c.seq.begin(ctx)
	c.state = LoadState{Status: StatusLoading}
	c.mu.Unlock()

	items, err := c.handler.FindAll(reqCtx, c.scope(userID))
	return c.applyList(ctx, seq, cancel, "load", items, err)
}

// Search runs the cache's search strategy. Remote results replace the list
// like Load does; local search leaves it untouched. A blank query returns the
// current list.
func (c *Cache[T]) Search(ctx context.Context, text string) ([]T, error) {
	if ctx == nil {
		return nil, errContextRequired
	}
	text = strings.TrimSpace(text)
	if c.opts.Search == SearchLocal || text == "" {
		return c.Filter(text), nil
	}
	userID := c.userID()
	if userID == "" {
		return nil, ErrUserRequired
	}

	query := c.scope(userID)
	if c.opts.SearchQuery != nil {
		query = c.opts.SearchQuery(query, text)
	}

	c.mu.Lock()
	reqCtx, seq, cancel := c.seq.begin(ctx)
	c.state = LoadState{Status: StatusLoading}
	c.mu.Unlock()

	items, err := c.handler.FindAll(reqCtx, query)
	if err := c.applyList(ctx, seq, cancel, "search", items, err); err != nil {
		return nil, err
	}
	return c.Items(), nil
}

func (c *Cache[T]) applyList(ctx context.Context, seq uint64, cancel context.CancelFunc, op string, items []T, err error) error {
	c.mu.Lock()
	stale := !c.seq.isLatest(seq)
	if !stale {
		if err != nil {
			c.state = LoadState{Status: StatusError, Err: err}
		} else {
			c.items = dedupe(items)
			c.state = LoadState{Status: StatusReady}
		}
	}
	count := len(c.items)
	c.seq.finish(seq, cancel)
	c.mu.Unlock()

	if stale {
		logging.Debug(c.logCtx(ctx), "dropped stale result", slog.String("op", op), slog.Uint64("seq", seq))
		return ErrStale
	}
	if err != nil {
		c.fail(ctx, op, c.opts.Name, err)
		return errs.Wrapf(err, "%s %s", op, c.opts.Name)
	}
	logging.Debug(c.logCtx(ctx), "list applied", slog.String("op", op), slog.Int("count", count))
	return nil
}

// Create sends input to the backend and inserts the canonical entity.
// Callers validate required fields.
func (c *Cache[T]) Create(ctx context.Context, input any) (T, error) {
	var zero T
	if ctx == nil {
		return zero, errContextRequired
	}

	item, err := c.handler.Create(ctx, input, c.mutationQuery())
	if err != nil {
		c.fail(ctx, "create", c.opts.Noun, err)
		return zero, errs.Wrapf(err, "create %s", c.opts.Noun)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := c.indexOf(item.GetDocumentID()); idx >= 0 {
		c.items[idx] = item
		return item, nil
	}
	if c.opts.Insert == Append {
		c.items = append(c.items, item)
	} else {
		c.items = append([]T{item}, c.items...)
	}
	return item, nil
}

// Update sends patch to the backend and replaces the local entity with the
// server response. Entities no longer in the list are not re-added.
func (c *Cache[T]) Update(ctx context.Context, id string, patch any) (T, error) {
	var zero T
	if ctx == nil {
		return zero, errContextRequired
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return zero, errs.WithKind(errIDRequired, errs.KindValidation)
	}

	item, err := c.handler.Update(ctx, id, patch, c.mutationQuery())
	if err != nil {
		c.fail(ctx, "update", c.opts.Noun, err)
		return zero, errs.Wrapf(err, "update %s %s", c.opts.Noun, id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := c.indexOf(id); idx >= 0 {
		c.items[idx] = item
	}
	return item, nil
}

func (c *Cache[T]) Delete(ctx context.Context, id string) error {
	if ctx == nil {
		return errContextRequired
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return errs.WithKind(errIDRequired, errs.KindValidation)
	}

	if err := c.handler.Delete(ctx, id); err != nil {
		c.fail(ctx, "delete", c.opts.Noun, err)
		return errs.Wrapf(err, "delete %s %s", c.opts.Noun, id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := c.indexOf(id); idx >= 0 {
		c.items = append(c.items[:idx:idx], c.items[idx+1:]...)
	}
	if c.selected == id {
		c.selected = ""
	}
	return nil
}

// Fetch reads one entity from the backend and refreshes it in place.
func (c *Cache[T]) Fetch(ctx context.Context, id string, query ports.Query) (T, error) {
	var zero T
	if ctx == nil {
		return zero, errContextRequired
	}
	item, err := c.handler.FindByID(ctx, id, query)
	if err != nil {
		return zero, errs.Wrapf(err, "get %s %s", c.opts.Noun, id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := c.indexOf(id); idx >= 0 {
		c.items[idx] = item
	}
	return item, nil
}

// Filter is the local case-insensitive substring match over Options.Text.
func (c *Cache[T]) Filter(text string) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, 0, len(c.items))
	for _, item := range c.items {
		if domainhelpdesk.MatchesText(text, c.fields(item)...) {
			out = append(out, item)
		}
	}
	return out
}

func (c *Cache[T]) fields(item T) []string {
	if c.opts.Text == nil {
		return nil
	}
	return c.opts.Text(item)
}

// Select marks id as selected. It reports false when id is not loaded.
func (c *Cache[T]) Select(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexOf(id) < 0 {
		return false
	}
	c.selected = id
	return true
}

// Selected resolves the selection against the current list.
func (c *Cache[T]) Selected() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var zero T
	if c.selected == "" {
		return zero, false
	}
	idx := c.indexOf(c.selected)
	if idx < 0 {
		return zero, false
	}
	return c.items[idx], true
}

func (c *Cache[T]) ClearSelection() {
	c.mu.Lock()
	c.selected = ""
	c.mu.Unlock()
}

func (c *Cache[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]T(nil), c.items...)
}

func (c *Cache[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var zero T
	idx := c.indexOf(id)
	if idx < 0 {
		return zero, false
	}
	return c.items[idx], true
}

func (c *Cache[T]) State() LoadState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Reset drops local state and cancels any in-flight load, e.g. on logout.
func (c *Cache[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq.reset()
	c.items = nil
	c.selected = ""
	c.state = LoadState{}
}

func (c *Cache[T]) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, item := range c.items {
		if item.GetDocumentID() == id {
			return i
		}
	}
	return -1
}

func (c *Cache[T]) userID() string {
	if c.opts.UserID == nil {
		return ""
	}
	return strings.TrimSpace(c.opts.UserID())
}

func (c *Cache[T]) scope(userID string) ports.Query {
	if c.opts.Scope == nil {
		return ports.Query{}
	}
	return c.opts.Scope(userID)
}

func (c *Cache[T]) mutationQuery() ports.Query {
	return ports.Query{Populate: c.opts.Populate}
}

func (c *Cache[T]) logCtx(ctx context.Context) context.Context {
	ctx = logging.WithComponent(ctx, "rescache")
	return logging.WithAttrs(ctx, slog.String("cache", c.opts.Name))
}

func (c *Cache[T]) fail(ctx context.Context, op string, noun string, err error) {
	logging.Error(c.logCtx(ctx), "remote call failed",
		slog.String("op", op),
		slog.Any("err", errs.Loggable(err)),
	)
	if c.opts.Notifier != nil {
		c.opts.Notifier.Notify(ctx, ports.Notice{
			Level:   ports.NoticeError,
			Message: "could not " + op + " " + noun,
		})
	}
}

// dedupe keeps the first occurrence of each document id.
func dedupe[T Identifiable](items []T) []T {
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		id := item.GetDocumentID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, item)
	}
	return out
}
