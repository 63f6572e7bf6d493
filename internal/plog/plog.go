// Package plog provides the structured logging and diagnostic-rate-limiting
// infrastructure shared by the rxpromise package.
//
// Design Decision: the active logger is a package-level variable, the same
// choice the eventloop teacher package makes for its own logging facade:
// logging is an infrastructure cross-cutting concern, every promise in a
// process shares the same logging semantics, and most callers never touch
// it, so it defaults to silent (io.Discard) rather than requiring threading
// a logger through every constructor.
package plog

import (
	"fmt"
	"io"
	"sync"
	"time"

	catrate "github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger wraps a logiface logger backed by stumpy (JSON events), plus a
// category rate limiter so bursts of the same diagnostic (e.g. thousands of
// unhandled rejections during an outage) don't flood the sink.
type Logger struct {
	base    *logiface.Logger[*stumpy.Event]
	limiter *catrate.Limiter
}

var (
	globalMu     sync.RWMutex
	global       *Logger
	defaultOnce  sync.Once
	rateLimitMap = map[time.Duration]int{
		time.Second: 5,
		time.Minute: 50,
	}
)

// New constructs a Logger writing JSON events to w at the given level.
func New(w io.Writer, level logiface.Level) *Logger {
	return &Logger{
		base: stumpy.L.New(
			stumpy.L.WithStumpy(stumpy.WithWriter(w)),
			stumpy.L.WithLevel(level),
		),
		limiter: catrate.NewLimiter(rateLimitMap),
	}
}

func noop() *Logger {
	defaultOnce.Do(func() {})
	return New(io.Discard, logiface.LevelDisabled)
}

// SetGlobal installs l as the process-wide logger used by rxpromise when no
// per-promise-tree logger was configured via an Option.
func SetGlobal(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = l
}

// Global returns the current process-wide logger, defaulting to a silent
// (discarding) logger if none has been installed.
func Global() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if global != nil {
		return global
	}
	return noop()
}

// Debug logs a debug-level message with the given key/value fields.
func (l *Logger) Debug(msg string, fields map[string]any) {
	if l == nil {
		return
	}
	b := l.base.Debug()
	for k, v := range fields {
		b = b.Str(k, fmt.Sprint(v))
	}
	b.Log(msg)
}

// WarnRateLimited logs a warning at most a handful of times per category per
// window (see rateLimitMap), to avoid log storms from repeated diagnostics
// like unhandled rejections or leaked pending promises.
func (l *Logger) WarnRateLimited(category string, msg string, err error) {
	if l == nil {
		return
	}
	if l.limiter != nil {
		if _, ok := l.limiter.Allow(category); !ok {
			return
		}
	}
	b := l.base.Warning().Str("category", category)
	if err != nil {
		b = b.Err(err)
	}
	b.Log(msg)
}

// Enabled reports whether any log line would actually be emitted, letting
// callers skip building field maps on the hot path.
func (l *Logger) Enabled() bool {
	return l != nil && l.base.Level().Enabled()
}
