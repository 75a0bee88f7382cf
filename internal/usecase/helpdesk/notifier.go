package helpdesk

import (
	"context"
	"log/slog"
	"sync"

	"helpdesk/internal/bootstrap/logging"
	"helpdesk/internal/ports"
)

// Broadcaster logs every notice and forwards it to subscribers such as the
// console status line.
type Broadcaster struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(ports.Notice)
}

var _ ports.Notifier = (*Broadcaster)(nil)

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]func(ports.Notice))}
}

func (b *Broadcaster) Notify(ctx context.Context, notice ports.Notice) {
	ctx = logging.WithComponent(ctx, "notice")
	if notice.Level == ports.NoticeError {
		logging.Warn(ctx, notice.Message, slog.String("level", string(notice.Level)))
	} else {
		logging.Info(ctx, notice.Message, slog.String("level", string(notice.Level)))
	}

	b.mu.RLock()
	subs := make([]func(ports.Notice), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(notice)
	}
}

// Subscribe registers fn and returns its cancel func.
func (b *Broadcaster) Subscribe(fn func(ports.Notice)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
