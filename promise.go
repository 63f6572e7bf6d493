package rxpromise

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rxpromise/rxpromise/internal/plog"
)

// nullType is the type of Null, the sentinel substituted for a nil
// fulfillment value inside All's result slice (containers in the source
// language don't allow absent entries; Go slices do allow nil elements,
// but Null is kept for literal fidelity to that contract).
type nullType struct{}

func (nullType) String() string { return "<null>" }

// Null substitutes for a nil fulfillment value in All's result slice.
var Null = nullType{}

var idCounter atomic.Uint64

func nextID() uint64 { return idCounter.Add(1) }

// Promise represents the eventual result of an asynchronous computation.
// The zero value is not usable; construct one with New, WithResult,
// WithTask, WithQueue, WithResolvers, or by registering a handler on an
// existing Promise.
type Promise struct {
	id uint64

	mu          sync.Mutex
	state       atomic.Int32
	value       any
	err         error
	handlers    []handlerEntry
	cancelHooks []func(error)
	boundTo     *Promise
	settled     chan struct{}
	handlerWG   sync.WaitGroup

	parent *Promise

	ctx                  ExecutionContext
	timer                Timer
	logger               *plog.Logger
	metrics              *Metrics
	onUnhandledRejection func(*Promise, error)

	createdAt     time.Time
	creationStack []uintptr
}

// newPromise constructs a root Promise (no parent) from resolved options.
func newPromise(parent *Promise, opts ...Option) *Promise {
	c := resolveOptions(opts)
	p := &Promise{
		id:                   nextID(),
		settled:              make(chan struct{}),
		parent:               parent,
		ctx:                  c.ctx,
		timer:                c.timer,
		logger:               c.logger,
		metrics:              c.metrics,
		onUnhandledRejection: c.onUnhandledRejection,
		createdAt:            time.Now(),
	}
	p.state.Store(int32(Pending))
	if c.debug {
		pcs := make([]uintptr, 32)
		n := runtime.Callers(2, pcs)
		if n > 0 {
			p.creationStack = pcs[:n]
		}
	}
	return p
}

// newChild constructs a Promise inheriting its parent's diagnostics
// configuration, used by Then/ThenOn/CatchOn.
func newChild(parent *Promise, ctx ExecutionContext) *Promise {
	p := &Promise{
		id:                   nextID(),
		settled:              make(chan struct{}),
		parent:               parent,
		ctx:                  ctx,
		timer:                parent.timer,
		logger:               parent.logger,
		metrics:              parent.metrics,
		onUnhandledRejection: parent.onUnhandledRejection,
		createdAt:            time.Now(),
	}
	p.state.Store(int32(Pending))
	if len(parent.creationStack) > 0 {
		pcs := make([]uintptr, 32)
		n := runtime.Callers(2, pcs)
		if n > 0 {
			p.creationStack = pcs[:n]
		}
	}
	return p
}

// State returns the Promise's current State. Safe for concurrent use.
func (p *Promise) State() State { return State(p.state.Load()) }

// IsPending reports whether the Promise has not yet settled.
func (p *Promise) IsPending() bool { return p.State() == Pending }

// IsFulfilled reports whether the Promise settled successfully.
func (p *Promise) IsFulfilled() bool { return p.State() == Fulfilled }

// IsRejected reports whether the Promise settled with a failure, which is
// true for both Rejected and Cancelled (Cancelled ⊂ Rejected).
func (p *Promise) IsRejected() bool { return p.State().IsRejected() }

// IsCancelled reports whether the Promise was specifically cancelled.
func (p *Promise) IsCancelled() bool { return p.State() == Cancelled }

// Parent returns the Promise this one was created from via Then/ThenOn/
// CatchOn, or nil for a root Promise.
func (p *Promise) Parent() *Promise { return p.parent }

// Root walks parent links to the ultimate ancestor.
func (p *Promise) Root() *Promise {
	cur := p
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// snapshot returns the settled value/error pair. Callers must only rely on
// this after observing p.settled closed (or State() != Pending, under the
// settlement lock ordering trySettle establishes).
func (p *Promise) snapshot() (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.err
}

// trySettle performs the single allowed Pending -> terminal transition. It
// returns the handler queue snapshot and true on success; false if the
// Promise had already settled, in which case the call is a no-op.
//
// handlerWG is incremented here, under p.mu and before settled is closed,
// for every handler queued prior to settlement. That ordering is what lets
// Wait (which blocks on settled, then on handlerWG) reliably block until
// those handlers finish: if the increment happened later, in dispatch, a
// Wait call racing the settling goroutine could observe settled closed but
// handlerWG still at zero, and return before the queued handlers ran.
func (p *Promise) trySettle(state State, value any, err error) ([]handlerEntry, bool) {
	p.mu.Lock()
	if State(p.state.Load()) != Pending {
		p.mu.Unlock()
		return nil, false
	}
	p.value = value
	p.err = err
	p.state.Store(int32(state))
	handlers := p.handlers
	p.handlers = nil
	p.handlerWG.Add(len(handlers))
	close(p.settled)
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.observe(state, time.Since(p.createdAt))
	}
	return handlers, true
}

// fulfill is the internal fulfillment path, used once a value is already
// known not to itself be a Promise (that case routes through Bind).
func (p *Promise) fulfill(value any) {
	handlers, ok := p.trySettle(Fulfilled, value, nil)
	if !ok {
		return
	}
	p.afterSettle(Fulfilled, handlers)
}

// Fulfill transitions the Promise to Fulfilled with value, if still
// Pending. If value is itself a *Promise, this instead binds to it (see
// Bind), matching the resolve dispatcher contract.
func (p *Promise) Fulfill(value any) {
	if pr, ok := value.(*Promise); ok {
		p.Bind(pr)
		return
	}
	p.fulfill(value)
}

// rejectErr is the internal rejection path for an already-typed error,
// used by handler dispatch and combinators to avoid double-wrapping.
func (p *Promise) rejectErr(err error) {
	handlers, ok := p.trySettle(Rejected, nil, err)
	if !ok {
		return
	}
	p.afterSettle(Rejected, handlers)
}

// Reject transitions the Promise to Rejected with reason, if still
// Pending. Non-error reasons are wrapped in a synthesized Error.
func (p *Promise) Reject(reason any) {
	p.rejectErr(wrapRejection(reason))
}

// Resolve is the resolve dispatcher: a *Promise value binds, an error
// value rejects, anything else fulfills.
func (p *Promise) Resolve(result any) {
	switch v := result.(type) {
	case *Promise:
		p.Bind(v)
	case error:
		p.rejectErr(v)
	default:
		p.fulfill(v)
	}
}

// Cancel transitions the Promise to Cancelled with reason if still
// Pending, then unconditionally propagates the cancellation to every
// registered child (via the global association table), every registered
// cancel hook (used by Sequence/Repeat to forward into the in-flight
// task), and the bound peer, if any. Cancelling an already-settled Promise
// does not change its state but still propagates, so a caller can cancel
// a subtree whose root has already fulfilled.
func (p *Promise) Cancel(reason any) {
	err := cancelReason(reason)
	handlers, ok := p.trySettle(Cancelled, nil, err)
	if ok {
		p.afterSettle(Cancelled, handlers)
	}

	globalRegistry.notify(p, err)

	p.mu.Lock()
	hooks := append([]func(error)(nil), p.cancelHooks...)
	bound := p.boundTo
	p.mu.Unlock()

	for _, hook := range hooks {
		hook(err)
	}
	if bound != nil {
		bound.Cancel(err)
	}
}

// CancelDefault cancels the Promise with the default reason, ErrCancelled.
func (p *Promise) CancelDefault() { p.Cancel(nil) }

// onCancel registers fn to run whenever Cancel is called on p, including
// when p is already settled. Used internally by Sequence/Repeat (forwarding
// into the running task); Then forwards into children through the global
// association table instead (see registry.go).
func (p *Promise) onCancel(fn func(error)) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	p.cancelHooks = append(p.cancelHooks, fn)
	p.mu.Unlock()
}

// afterSettle dispatches the handler queue snapshot taken at settlement
// (trySettle has already added it to handlerWG), and reports an unhandled
// rejection if the Promise settled Rejected with no handlers attached yet.
// Cancellation with no handlers is common and intentional, so it is not
// reported as unhandled.
func (p *Promise) afterSettle(state State, handlers []handlerEntry) {
	if state == Rejected && len(handlers) == 0 {
		p.reportUnhandledRejection()
	}
	for _, h := range handlers {
		p.dispatch(h)
	}
}

func (p *Promise) reportUnhandledRejection() {
	_, err := p.snapshot()
	if p.logger != nil {
		p.logger.WarnRateLimited("unhandled-rejection", fmt.Sprintf("promise #%d rejected with no handlers attached", p.id), err)
	}
	if p.onUnhandledRejection != nil {
		p.onUnhandledRejection(p, err)
	}
}

// Bind links self to other so that self adopts other's terminal state when
// other fulfills or rejects, and cancelling self forwards the cancellation
// to other. A Promise may be bound to at most one peer; binding twice is a
// programming error and is ignored rather than corrupting state. Adoption
// converges self's state to other's: if other was specifically cancelled,
// self becomes Cancelled too, rather than merely Rejected with the same
// reason.
func (p *Promise) Bind(other *Promise) {
	if other == nil || other == p {
		return
	}
	p.mu.Lock()
	if p.boundTo != nil {
		p.mu.Unlock()
		return
	}
	p.boundTo = other
	p.mu.Unlock()

	other.ThenOn(other.ctx, func(v any) any {
		p.fulfill(v)
		return nil
	}, func(e any) any {
		err := e.(error)
		if other.IsCancelled() {
			p.Cancel(err)
		} else {
			p.rejectErr(err)
		}
		return nil
	})
}

// Get blocks until the Promise settles and returns its value or error.
// Intended for debugging/tests; production code should use Then.
func (p *Promise) Get() (any, error) {
	<-p.settled
	return p.snapshot()
}

// GetWithTimeout is like Get, but returns a synthesized timeout error
// after d elapses without the Promise settling. It does not mutate the
// Promise's state.
func (p *Promise) GetWithTimeout(d time.Duration) (any, error) {
	select {
	case <-p.settled:
		return p.snapshot()
	case <-time.After(d):
		return nil, timeoutError()
	}
}

// Wait blocks until the Promise settles and every handler queued prior to
// the call has finished running.
func (p *Promise) Wait() {
	<-p.settled
	p.handlerWG.Wait()
}

// SetTimeout arms a timer that rejects the Promise with a synthesized
// timeout error after d, unless it settles first. Returns the receiver for
// chaining. Races with normal resolution are resolved by the single
// terminal-transition rule: whichever happens first wins.
func (p *Promise) SetTimeout(d time.Duration) *Promise {
	timer := p.timer
	if timer == nil {
		timer = DefaultTimer
	}
	cancel := timer.Schedule(d, func() {
		p.rejectErr(timeoutError())
	})
	go func() {
		<-p.settled
		cancel()
	}()
	return p
}

// DebugString renders the Promise's id and state, plus its creation stack
// trace when WithDebugMode was enabled at construction.
func (p *Promise) DebugString() string {
	s := fmt.Sprintf("Promise#%d{state=%s}", p.id, p.State())
	if len(p.creationStack) > 0 {
		s += "\n" + p.creationStackTrace()
	}
	return s
}

func (p *Promise) creationStackTrace() string {
	frames := runtime.CallersFrames(p.creationStack)
	var out string
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			if out != "" {
				out += "\n"
			}
			out += fmt.Sprintf("%s (%s:%d)", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return out
}
