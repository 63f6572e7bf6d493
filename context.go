package rxpromise

import (
	"sync"
	"time"
)

// ExecutionContext is the only capability the dispatcher requires of a
// scheduler: submit a thunk, have it run to completion exactly once,
// eventually, on some thread compatible with the context's own ordering
// policy. Handlers are never invoked synchronously on the caller's stack;
// they always pass through an ExecutionContext.
type ExecutionContext interface {
	Schedule(fn func())
}

// ConcurrentContext schedules every thunk onto its own goroutine. It is the
// package default: handlers registered via Then have no ordering guarantee
// relative to their siblings.
type ConcurrentContext struct{}

// Schedule implements ExecutionContext.
func (ConcurrentContext) Schedule(fn func()) { go fn() }

// DefaultContext is the execution context used by Promises that don't
// specify one explicitly.
var DefaultContext ExecutionContext = ConcurrentContext{}

// SerialContext runs scheduled thunks one at a time, in submission order,
// on a single worker goroutine. Use it via ThenOn when a group of handlers
// needs strict relative ordering, the way a dedicated dispatch queue would
// provide.
type SerialContext struct {
	mu      sync.Mutex
	queue   []func()
	running bool
}

// NewSerialContext constructs a ready-to-use SerialContext.
func NewSerialContext() *SerialContext {
	return &SerialContext{}
}

// Schedule implements ExecutionContext.
func (s *SerialContext) Schedule(fn func()) {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()
	go s.drain()
}

func (s *SerialContext) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		fn()
	}
}

// Timer abstracts one-shot delayed execution, the only timer capability
// SetTimeout needs. Schedule returns a cancel function that prevents fn
// from running if it hasn't fired yet; calling cancel after fn has already
// fired is a no-op.
type Timer interface {
	Schedule(d time.Duration, fn func()) (cancel func())
}

// realTimer is the default Timer, backed by time.AfterFunc.
type realTimer struct{}

// Schedule implements Timer.
func (realTimer) Schedule(d time.Duration, fn func()) (cancel func()) {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// DefaultTimer is the Timer used by SetTimeout when no Timer option is
// configured.
var DefaultTimer Timer = realTimer{}
