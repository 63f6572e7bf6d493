package rxpromise

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThenChainsTransformations(t *testing.T) {
	p := New()
	child := p.Then(func(v any) any {
		return v.(int) + 1
	}, nil)
	grandchild := child.Then(func(v any) any {
		return v.(int) + 1
	}, nil)

	p.Fulfill(1)

	v, err := grandchild.Get()
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestThenPassesThroughOnNilSuccessHandler(t *testing.T) {
	p := New()
	child := p.Then(nil, nil)
	p.Fulfill("value")

	v, err := child.Get()
	require.NoError(t, err)
	assert.Equal(t, "value", v)
}

func TestThenPassesThroughOnNilFailureHandler(t *testing.T) {
	p := New()
	child := p.Then(nil, nil)
	boom := errors.New("boom")
	p.Reject(boom)

	_, err := child.Get()
	assert.Same(t, boom, err)
}

func TestCatchOnRecoversFromError(t *testing.T) {
	p := New()
	child := p.CatchOn(DefaultContext, func(e any) any {
		return "recovered"
	})
	p.Reject(errors.New("boom"))

	v, err := child.Get()
	require.NoError(t, err)
	assert.Equal(t, "recovered", v)
	assert.True(t, child.IsFulfilled())
}

func TestHandlerPanicRejectsChildWithPanicError(t *testing.T) {
	p := New()
	child := p.Then(func(v any) any {
		panic("kaboom")
	}, nil)
	p.Fulfill(1)

	_, err := child.Get()
	require.Error(t, err)
	var pe PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
}

func TestRegistrationOnAlreadyResolvedPromiseNeverRunsInline(t *testing.T) {
	p := New()
	p.Fulfill(1)

	done := make(chan struct{})
	var ranOnCallerStack bool
	func() {
		p.Then(func(v any) any {
			close(done)
			return nil
		}, nil)
		// If the handler ran inline, done would already be closed here.
		select {
		case <-done:
			ranOnCallerStack = true
		default:
		}
	}()

	assert.False(t, ranOnCallerStack, "handler must never run inline on the caller's stack")
	<-done
}

func TestEachHandlerInvokedAtMostOnce(t *testing.T) {
	p := New()
	var calls int
	var mu sync.Mutex
	p.Then(func(v any) any {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	}, nil)

	p.Fulfill(1)
	p.Wait()
	p.Fulfill(2) // no-op, must not re-fire the handler
	p.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestHandlersRegisteredAfterResolutionStillFire(t *testing.T) {
	p := New()
	p.Fulfill("late")

	child := p.Then(func(v any) any { return v }, nil)
	v, err := child.Get()
	require.NoError(t, err)
	assert.Equal(t, "late", v)
}

func TestThenOnSerialContextOrdersSiblingHandlers(t *testing.T) {
	p := New()
	serial := NewSerialContext()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		i := i
		p.ThenOn(serial, func(v any) any {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
			return nil
		}, nil)
	}

	p.Fulfill(1)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2}, order)
}
