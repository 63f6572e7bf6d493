package rxpromise

// New constructs a Pending root Promise configured by opts.
func New(opts ...Option) *Promise {
	return newPromise(nil, opts...)
}

// WithResult constructs a Promise resolved from value, using the Resolve
// dispatcher (an error value rejects, a *Promise binds, anything else
// fulfills). The result is already settled unless value is a *Promise
// that is still pending, in which case it settles when that one does.
func WithResult(value any, opts ...Option) *Promise {
	p := newPromise(nil, opts...)
	p.Resolve(value)
	return p
}

// WithTask constructs a Promise whose task runs on the configured
// execution context. A panic inside task rejects the Promise with a
// PanicError instead of propagating.
func WithTask(task func() (any, error), opts ...Option) *Promise {
	p := newPromise(nil, opts...)
	p.ctx.Schedule(func() { p.runTask(task) })
	return p
}

// WithQueue is WithTask with an explicit execution context, overriding any
// WithDefaultContext option.
func WithQueue(ctx ExecutionContext, task func() (any, error), opts ...Option) *Promise {
	opts = append(append([]Option(nil), opts...), WithDefaultContext(ctx))
	p := newPromise(nil, opts...)
	ctx.Schedule(func() { p.runTask(task) })
	return p
}

func (p *Promise) runTask(task func() (any, error)) {
	defer func() {
		if r := recover(); r != nil {
			p.rejectErr(PanicError{Value: r})
		}
	}()
	value, err := task()
	if err != nil {
		p.rejectErr(err)
		return
	}
	p.Resolve(value)
}

// WithResolvers constructs a Pending root Promise along with standalone
// resolve/reject functions, for callers that need to hand the resolution
// capability to code that shouldn't see the Promise itself.
func WithResolvers(opts ...Option) (p *Promise, resolve func(any), reject func(any)) {
	p = newPromise(nil, opts...)
	return p, p.Resolve, p.Reject
}
