package rescache

import "context"

// sequencer orders list-replacing requests. Starting a request cancels the
// one in flight; only the latest sequence may apply its result. Callers hold
// Cache.mu.
type sequencer struct {
	current uint64
	cancel  context.CancelFunc
}

func (s *sequencer) begin(parent context.Context) (context.Context, uint64, context.CancelFunc) {
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.current++
	s.cancel = cancel
	return ctx, s.current, cancel
}

func (s *sequencer) isLatest(seq uint64) bool {
	return seq == s.current
}

// finish releases the request context; the latest request also drops its
// cancel func.
func (s *sequencer) finish(seq uint64, cancel context.CancelFunc) {
	if seq == s.current {
		s.cancel = nil
	}
	cancel()
}

// reset cancels whatever is in flight and invalidates its sequence.
func (s *sequencer) reset() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.current++
}
