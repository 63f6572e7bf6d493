package rxpromise

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFulfillSettlesPendingPromise(t *testing.T) {
	p := New()
	p.Fulfill(42)

	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, p.IsFulfilled())
}

func TestFulfillIsNoOpAfterFirstTransition(t *testing.T) {
	p := New()
	p.Fulfill(1)
	p.Fulfill(2)
	p.Reject(errors.New("ignored"))
	p.Cancel(nil)

	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.True(t, p.IsFulfilled())
}

func TestRejectWrapsNonErrorReason(t *testing.T) {
	p := New()
	p.Reject("bad input")

	_, err := p.Get()
	require.Error(t, err)
	var rxErr *Error
	require.ErrorAs(t, err, &rxErr)
	assert.Equal(t, "bad input", rxErr.Value)
	assert.True(t, p.IsRejected())
}

func TestCancelledIsAlsoRejected(t *testing.T) {
	p := New()
	p.Cancel(nil)

	assert.True(t, p.IsCancelled())
	assert.True(t, p.IsRejected())

	_, err := p.Get()
	assert.True(t, errors.Is(err, ErrCancelled))
}

func TestResolveWithPromiseBindsInsteadOfStoring(t *testing.T) {
	inner := New()
	outer := New()

	outer.Resolve(inner)
	assert.True(t, outer.IsPending())

	inner.Fulfill("done")

	v, err := outer.Get()
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestResolveWithErrorRejects(t *testing.T) {
	p := New()
	boom := errors.New("boom")
	p.Resolve(boom)

	_, err := p.Get()
	assert.Same(t, boom, err)
}

func TestGetWithTimeoutReturnsTimeoutErrorWithoutMutatingState(t *testing.T) {
	p := New()
	_, err := p.GetWithTimeout(20 * time.Millisecond)
	require.Error(t, err)

	var rxErr *Error
	require.ErrorAs(t, err, &rxErr)
	assert.Equal(t, CodeTimeout, rxErr.Code)
	assert.True(t, p.IsPending(), "timeout must not mutate promise state")
}

func TestSetTimeoutRejectsOnExpiry(t *testing.T) {
	p := New()
	p.SetTimeout(10 * time.Millisecond)

	_, err := p.Get()
	require.Error(t, err)
	var rxErr *Error
	require.ErrorAs(t, err, &rxErr)
	assert.Equal(t, CodeTimeout, rxErr.Code)
}

func TestSetTimeoutRaceFulfillBeforeExpiry(t *testing.T) {
	p := New()
	p.SetTimeout(100 * time.Millisecond)

	go func() {
		time.Sleep(10 * time.Millisecond)
		p.Fulfill("X")
	}()

	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, "X", v)

	time.Sleep(150 * time.Millisecond)
	assert.True(t, p.IsFulfilled(), "later timeout firing must be a no-op")
}

func TestSetTimeoutReturnsReceiverForChaining(t *testing.T) {
	p := New()
	assert.Same(t, p, p.SetTimeout(time.Second))
}

func TestWaitBlocksUntilHandlersComplete(t *testing.T) {
	p := New()
	var ran bool
	p.Then(func(v any) any {
		time.Sleep(20 * time.Millisecond)
		ran = true
		return nil
	}, nil)

	p.Fulfill(1)
	p.Wait()
	assert.True(t, ran)
}

func TestRootWalksToUltimateAncestor(t *testing.T) {
	root := New()
	child := root.Then(nil, nil)
	grandchild := child.Then(nil, nil)

	assert.Same(t, root, grandchild.Root())
	assert.Same(t, root, child.Parent())
}

func TestBindAdoptsPeerStateAndForwardsCancel(t *testing.T) {
	p := New()
	q := New()
	p.Bind(q)

	q.Fulfill(7)
	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	p2 := New()
	q2 := New()
	p2.Bind(q2)
	p2.Cancel(nil)

	_, err = q2.Get()
	assert.True(t, errors.Is(err, ErrCancelled))
}

func TestBindConvergesToCancelledWhenPeerIsCancelled(t *testing.T) {
	p := New()
	q := New()
	p.Bind(q)

	q.Cancel(nil)

	_, err := p.Get()
	assert.True(t, errors.Is(err, ErrCancelled))
	assert.True(t, p.IsCancelled(), "self must converge to Cancelled, not merely Rejected, when the peer it adopted state from was cancelled")
}

func TestBindTwiceIsIgnored(t *testing.T) {
	p := New()
	q1 := New()
	q2 := New()

	p.Bind(q1)
	p.Bind(q2) // should be a no-op, not corrupt state

	q2.Fulfill("from q2")
	assert.True(t, p.IsPending(), "second bind must not take effect")

	q1.Fulfill("from q1")
	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, "from q1", v)
}

func TestDebugStringIncludesStateAndID(t *testing.T) {
	p := New()
	p.Fulfill(1)
	s := p.DebugString()
	assert.Contains(t, s, "fulfilled")
	assert.Contains(t, s, fmt.Sprintf("Promise#%d", p.id))
}

func TestDebugModeCapturesCreationStack(t *testing.T) {
	p := New(WithDebugMode(true))
	assert.NotEmpty(t, p.creationStack)
}
