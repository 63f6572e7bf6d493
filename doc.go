// Package rxpromise provides a thread-safe promise primitive: a state
// machine representing the eventual result of an asynchronous computation,
// with handler dispatch over pluggable execution contexts, a parent/child
// cancellation graph, two-promise binding, and composition combinators
// (All, AllSettled, Any, Sequence, Repeat).
//
// # Architecture
//
// A [Promise] starts Pending and transitions exactly once to Fulfilled,
// Rejected, or Cancelled (a refinement of Rejected). Callers attach
// handlers via [Promise.Then], [Promise.ThenOn], or [Promise.CatchOn],
// receiving a new child Promise that resolves from the handler's return
// value. Handlers never run inline on the caller's goroutine: they are
// always scheduled through an [ExecutionContext].
//
// Cancellation flows downward through a global parent/child association
// table (see registry.go): cancelling a promise cancels every promise
// created from it via Then, even if the promise being cancelled has
// already settled. [Promise.Bind] links two promises so that one adopts
// the other's terminal state, and cancelling the binder cancels its peer.
//
// # Execution contexts
//
// [ConcurrentContext] (the package default) runs every scheduled thunk on
// its own goroutine. [SerialContext] runs scheduled thunks one at a time,
// in submission order, on a single worker goroutine, for callers that need
// strict ordering among a group of handlers.
//
// # Errors
//
// Rejection reasons that are not already errors are wrapped in an [Error]
// carrying the "RXPromise" domain and a numeric code (see errors.go).
// Cancellation and timeout use the same synthesized error type, so callers
// can use errors.Is/errors.As through the cause chain.
//
// # Diagnostics
//
// The package is silent by default. Opt into structured logging of
// unhandled rejections and handler panics via [WithLogger] (see
// internal/plog), and into streaming latency metrics via [WithMetrics].
package rxpromise
