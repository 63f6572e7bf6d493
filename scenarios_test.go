package rxpromise

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These scenarios exercise whole user-visible workflows end to end, each
// combining several of the package's primitives the way application code
// would, rather than isolating a single method.

func TestScenarioChainOfTransformationsFulfillsWithFinalValue(t *testing.T) {
	p := New()
	result := p.Then(func(v any) any {
		return v.(int) * 2
	}, nil).Then(func(v any) any {
		return v.(int) + 1
	}, nil)

	p.Fulfill(1)

	v, err := result.Get()
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestScenarioAllCombinesConcurrentFetches(t *testing.T) {
	user := WithTask(func() (any, error) { return "alice", nil })
	account := WithTask(func() (any, error) { return 42, nil })

	v, err := All([]*Promise{user, account}).Get()
	require.NoError(t, err)
	assert.Equal(t, []any{"alice", 42}, v)
}

func TestScenarioAllFailsFastLeavingSlowSiblingUntouched(t *testing.T) {
	fast := WithTask(func() (any, error) { return nil, errors.New("fast failure") })
	slow := New() // represents a request that never completes in this test

	_, err := All([]*Promise{fast, slow}).Get()
	assert.EqualError(t, err, "fast failure")
	assert.True(t, slow.IsPending())
}

func TestScenarioAnyReturnsFirstAvailableMirror(t *testing.T) {
	mirrorA := New()
	mirrorB := WithResult("from B")
	mirrorC := New()

	v, err := Any([]*Promise{mirrorA, mirrorB, mirrorC}).Get()
	require.NoError(t, err)
	assert.Equal(t, "from B", v)
}

func TestScenarioCancellingAPendingRequestPropagatesToItsChain(t *testing.T) {
	request := New()
	parsed := request.Then(func(v any) any { return v }, nil)
	rendered := parsed.Then(func(v any) any { return v }, nil)

	request.Cancel(errors.New("user navigated away"))

	deadline := time.After(time.Second)
	for rendered.IsPending() {
		select {
		case <-deadline:
			t.Fatal("cancellation never reached the end of the chain")
		case <-time.After(time.Millisecond):
		}
	}
	assert.True(t, rendered.IsCancelled())
}

func TestScenarioSequenceOfStepsInterruptedByFailureSkipsRemainder(t *testing.T) {
	var executed []string
	step := func(name string, fail bool) func(any) *Promise {
		return func(any) *Promise {
			executed = append(executed, name)
			if fail {
				return WithResult(errors.New(name + " failed"))
			}
			return WithResult(nil)
		}
	}

	steps := []any{"validate", "charge", "ship"}
	lookup := map[string]func(any) *Promise{
		"validate": step("validate", false),
		"charge":   step("charge", true),
		"ship":     step("ship", false),
	}

	_, err := Sequence(steps, func(name any) *Promise {
		return lookup[name.(string)](name)
	}).Get()

	assert.EqualError(t, err, "charge failed")
	assert.Equal(t, []string{"validate", "charge"}, executed, "ship must never run after charge fails")
}

func TestScenarioTimeoutRaceAgainstSlowCompletion(t *testing.T) {
	fast := New()
	fast.SetTimeout(10 * time.Millisecond)
	go func() {
		time.Sleep(200 * time.Millisecond)
		fast.Fulfill("too late")
	}()

	_, err := fast.Get()
	require.Error(t, err)
	var rxErr *Error
	require.ErrorAs(t, err, &rxErr)
	assert.Equal(t, CodeTimeout, rxErr.Code)

	slow := New()
	slow.SetTimeout(200 * time.Millisecond)
	go func() {
		time.Sleep(10 * time.Millisecond)
		slow.Fulfill("in time")
	}()

	v, err := slow.Get()
	require.NoError(t, err)
	assert.Equal(t, "in time", v)
}

func TestScenarioBindForwardsResultOfAnotherPendingOperation(t *testing.T) {
	cached, resolveCache, _ := WithResolvers()
	lookup := New()
	lookup.Bind(cached)

	resolveCache("cached value")

	v, err := lookup.Get()
	require.NoError(t, err)
	assert.Equal(t, "cached value", v)
}
