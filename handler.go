package rxpromise

import "runtime/debug"

// Handler is a user-supplied reaction to a Promise's settlement. Its
// return value is resolved into the child Promise via the same dispatcher
// used by Resolve: returning a *Promise chains, returning an error
// rejects, anything else fulfills.
type Handler func(result any) any

// handlerEntry is one registered {context, on_success, on_failure, child}
// tuple.
type handlerEntry struct {
	ctx         ExecutionContext
	onFulfilled Handler
	onRejected  Handler
	child       *Promise
}

// Then registers onFulfilled/onRejected on the Promise's default execution
// context and returns a new child Promise. Either handler may be nil, in
// which case the corresponding outcome passes through to the child
// unchanged.
func (p *Promise) Then(onFulfilled, onRejected Handler) *Promise {
	return p.ThenOn(p.ctx, onFulfilled, onRejected)
}

// ThenOn is Then with an explicit execution context for the handlers.
func (p *Promise) ThenOn(ctx ExecutionContext, onFulfilled, onRejected Handler) *Promise {
	if ctx == nil {
		ctx = p.ctx
	}
	if ctx == nil {
		ctx = DefaultContext
	}
	child := newChild(p, ctx)
	globalRegistry.register(p, func(reason error) { child.Cancel(reason) })
	p.addHandler(handlerEntry{ctx: ctx, onFulfilled: onFulfilled, onRejected: onRejected, child: child})
	return child
}

// CatchOn registers only a failure handler on ctx; success passes through
// unchanged, equivalent to ThenOn(ctx, nil, onRejected).
func (p *Promise) CatchOn(ctx ExecutionContext, onRejected Handler) *Promise {
	return p.ThenOn(ctx, nil, onRejected)
}

// addHandler queues h for dispatch, scheduling it immediately if the
// Promise has already settled. A handler is never invoked inline on the
// caller's goroutine, even when registered on an already-settled Promise:
// it is always routed through dispatch/ExecutionContext.Schedule. Every
// path that can run h registers it with handlerWG before returning, so a
// concurrent Wait can never observe an empty WaitGroup for a handler that
// was queued before the Wait was called.
func (p *Promise) addHandler(h handlerEntry) {
	if State(p.state.Load()) != Pending {
		p.handlerWG.Add(1)
		p.dispatch(h)
		return
	}
	p.mu.Lock()
	if State(p.state.Load()) != Pending {
		p.mu.Unlock()
		p.handlerWG.Add(1)
		p.dispatch(h)
		return
	}
	p.handlers = append(p.handlers, h)
	p.mu.Unlock()
}

// dispatch schedules h's execution on its context. Callers must already
// have called p.handlerWG.Add(1) for h (trySettle does this in bulk, under
// the settlement lock, for handlers queued before settlement; addHandler
// does it individually for handlers attached to an already-settled
// Promise). The handler-pinning obligation (a Promise with registered
// handlers stays reachable until it resolves and dispatches them) is
// satisfied here: the closure below holds a strong reference to p and
// h.child for the scheduler's lifetime.
func (p *Promise) dispatch(h handlerEntry) {
	state := State(p.state.Load())
	value, err := p.snapshot()
	h.ctx.Schedule(func() {
		defer p.handlerWG.Done()
		p.executeHandler(h, state, value, err)
	})
}

// executeHandler runs a single handler entry against the parent's
// snapshot result, converting a panic into a rejection of the child rather
// than letting it escape the execution context's goroutine.
func (p *Promise) executeHandler(h handlerEntry, state State, value any, err error) {
	var fn Handler
	var arg any
	if state == Fulfilled {
		fn = h.onFulfilled
		arg = value
	} else {
		fn = h.onRejected
		arg = err
	}

	if fn == nil {
		if state == Fulfilled {
			h.child.fulfill(value)
		} else {
			h.child.rejectErr(err)
		}
		return
	}

	defer func() {
		if r := recover(); r != nil {
			pe := PanicError{Value: r, Stack: debug.Stack()}
			p.logger.WarnRateLimited("handler-panic", "handler panicked", pe)
			h.child.rejectErr(pe)
		}
	}()

	result := fn(arg)
	h.child.Resolve(result)
}
