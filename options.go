package rxpromise

import (
	"sync"

	"github.com/go-rxpromise/rxpromise/internal/plog"
)

// config holds the resolved settings for a Promise tree, built by applying
// Option values over a base derived from the package-level defaults.
type config struct {
	ctx                  ExecutionContext
	timer                Timer
	debug                bool
	logger               *plog.Logger
	metrics              *Metrics
	onUnhandledRejection func(p *Promise, err error)
}

// Option configures a Promise at construction time, or the package-level
// defaults via SetDefaults. Mirrors the functional-option pattern used
// throughout the retrieval pack (LoopOption, stumpy.Option).
type Option interface {
	apply(c *config)
}

type optionFunc func(c *config)

func (f optionFunc) apply(c *config) { f(c) }

// WithDefaultContext sets the ExecutionContext new Promises in this tree
// use when none is specified to ThenOn/CatchOn.
func WithDefaultContext(ctx ExecutionContext) Option {
	return optionFunc(func(c *config) { c.ctx = ctx })
}

// WithTimer overrides the Timer used by SetTimeout.
func WithTimer(t Timer) Option {
	return optionFunc(func(c *config) { c.timer = t })
}

// WithDebugMode enables creation-stack capture for DebugString, at the cost
// of a runtime.Callers call per Promise construction.
func WithDebugMode(enabled bool) Option {
	return optionFunc(func(c *config) { c.debug = enabled })
}

// WithLogger attaches a structured logger for diagnostics (unhandled
// rejections, handler panics). Defaults to the package-wide global logger,
// which is silent until configured via plog.SetGlobal.
func WithLogger(l *plog.Logger) Option {
	return optionFunc(func(c *config) { c.logger = l })
}

// WithMetrics attaches a Metrics collector that observes settlement
// latency for every Promise in the tree.
func WithMetrics(m *Metrics) Option {
	return optionFunc(func(c *config) { c.metrics = m })
}

// WithUnhandledRejectionHandler installs a callback invoked when a Promise
// settles Rejected with no handlers registered, in addition to the rate
// limited diagnostic log line.
func WithUnhandledRejectionHandler(fn func(p *Promise, err error)) Option {
	return optionFunc(func(c *config) { c.onUnhandledRejection = fn })
}

var defaults struct {
	sync.RWMutex
	opts []Option
}

// SetDefaults installs package-wide default options, applied before the
// options passed to any individual New/WithResult/WithTask/... call.
func SetDefaults(opts ...Option) {
	defaults.Lock()
	defer defaults.Unlock()
	defaults.opts = append([]Option(nil), opts...)
}

func resolveOptions(opts []Option) *config {
	c := &config{
		ctx:    DefaultContext,
		timer:  DefaultTimer,
		logger: plog.Global(),
	}
	defaults.RLock()
	base := defaults.opts
	defaults.RUnlock()
	for _, o := range base {
		if o != nil {
			o.apply(c)
		}
	}
	for _, o := range opts {
		if o != nil {
			o.apply(c)
		}
	}
	return c
}
