package rxpromise

import "sync"

// registry is the global parent→children association table from the
// cancellation graph design: a multimap of parent Promise to the cancel
// notifications its Then-created children (and combinator-internal
// followers) have registered. It is serialized on its own lock, separate
// from any individual Promise's mutex, per the design note that replacing
// the source's single serial queue with fine-grained per-promise locks
// means the association table needs a lock of its own.
//
// Entries are deliberately never removed when a child settles naturally:
// calling Cancel on an already-settled child is a safe no-op for that
// child's own state, but it must still cascade into *that* child's own
// registered children. Removing an entry on settlement would silently
// break cascading cancellation through an intermediate node that resolved
// independently before a cancel reached one of its ancestors. The accepted
// cost is that a long-lived parent retains hooks for children that have
// long since settled; the source's own design note explicitly tolerates
// the equivalent memory-retention tradeoff ("the association table may be
// non-empty at teardown... this is tolerated").
type registry struct {
	mu       sync.Mutex
	children map[*Promise][]func(error)
}

var globalRegistry = &registry{children: make(map[*Promise][]func(error))}

// register records fn to be invoked whenever Cancel is called on parent,
// including when parent is already settled.
func (r *registry) register(parent *Promise, fn func(error)) {
	if parent == nil || fn == nil {
		return
	}
	r.mu.Lock()
	r.children[parent] = append(r.children[parent], fn)
	r.mu.Unlock()
}

// notify invokes every hook registered against parent with reason.
func (r *registry) notify(parent *Promise, reason error) {
	r.mu.Lock()
	hooks := r.children[parent]
	r.mu.Unlock()
	for _, fn := range hooks {
		fn(reason)
	}
}
