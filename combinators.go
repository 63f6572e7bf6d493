package rxpromise

import "sync"

// All returns a Promise that fulfills with an ordered slice of every input
// Promise's fulfillment value once all have fulfilled, or rejects with the
// first rejection reason encountered (subsequent rejections and the
// remaining still-pending inputs are otherwise ignored; inputs are not
// cancelled). A nil fulfillment value is substituted with Null in the
// result slice. An empty input list rejects immediately with a parameter
// error.
func All(promises []*Promise, opts ...Option) *Promise {
	r := newPromise(nil, opts...)
	if len(promises) == 0 {
		r.rejectErr(parameterError())
		return r
	}

	var mu sync.Mutex
	results := make([]any, len(promises))
	remaining := len(promises)

	for i, input := range promises {
		i, input := i, input
		input.Then(func(v any) any {
			mu.Lock()
			defer mu.Unlock()
			if v == nil {
				results[i] = Null
			} else {
				results[i] = v
			}
			remaining--
			if remaining == 0 {
				r.fulfill(append([]any(nil), results...))
			}
			return nil
		}, func(e any) any {
			r.rejectErr(e.(error))
			return nil
		})
	}
	return r
}

// SettledResult is one entry of AllSettled's result slice.
type SettledResult struct {
	IsFulfilled bool
	IsRejected  bool
	Value       any
	Err         error
}

// AllSettled returns a Promise that fulfills, once every input has
// settled (by success or failure), with a slice of SettledResult in input
// order. It never rejects on account of an input's failure. An empty
// input list rejects immediately with a parameter error.
func AllSettled(promises []*Promise, opts ...Option) *Promise {
	r := newPromise(nil, opts...)
	if len(promises) == 0 {
		r.rejectErr(parameterError())
		return r
	}

	var mu sync.Mutex
	results := make([]SettledResult, len(promises))
	remaining := len(promises)

	settle := func(i int, res SettledResult) {
		mu.Lock()
		defer mu.Unlock()
		results[i] = res
		remaining--
		if remaining == 0 {
			r.fulfill(append([]SettledResult(nil), results...))
		}
	}

	for i, input := range promises {
		i := i
		input.Then(func(v any) any {
			settle(i, SettledResult{IsFulfilled: true, Value: v})
			return nil
		}, func(e any) any {
			settle(i, SettledResult{IsRejected: true, Err: e.(error)})
			return nil
		})
	}
	return r
}

// Any returns a Promise that fulfills with the result of the first input
// to fulfill, and rejects with an *AggregateError only once every input
// has rejected. Peers are not cancelled when one fulfills. An empty input
// list rejects immediately with a parameter error.
func Any(promises []*Promise, opts ...Option) *Promise {
	r := newPromise(nil, opts...)
	if len(promises) == 0 {
		r.rejectErr(parameterError())
		return r
	}

	var mu sync.Mutex
	errs := make([]error, len(promises))
	remaining := len(promises)

	for i, input := range promises {
		i := i
		input.Then(func(v any) any {
			r.fulfill(v)
			return nil
		}, func(e any) any {
			mu.Lock()
			defer mu.Unlock()
			errs[i] = e.(error)
			remaining--
			if remaining == 0 {
				r.rejectErr(&AggregateError{Errors: errs})
			}
			return nil
		})
	}
	return r
}

// Sequence invokes task(inputs[i]) only after task(inputs[i-1]) has
// fulfilled, discarding each task's fulfillment value. It fulfills with
// "OK" once every input has been processed, or rejects with the first
// task's rejection reason, at which point no further inputs are
// processed. An empty input list fulfills immediately with "OK".
// Cancelling the returned Promise forwards the cancellation to the root
// of whichever task Promise is currently running.
func Sequence(inputs []any, task func(any) *Promise, opts ...Option) *Promise {
	r := newPromise(nil, opts...)

	var mu sync.Mutex
	var current *Promise

	var step func(i int)
	step = func(i int) {
		defer func() {
			if rec := recover(); rec != nil {
				r.rejectErr(PanicError{Value: rec})
			}
		}()

		if i >= len(inputs) {
			r.fulfill("OK")
			return
		}
		t := task(inputs[i])
		mu.Lock()
		current = t
		mu.Unlock()
		t.Then(func(any) any {
			step(i + 1)
			return nil
		}, func(e any) any {
			r.rejectErr(e.(error))
			return nil
		})
	}

	r.onCancel(func(reason error) {
		mu.Lock()
		t := current
		mu.Unlock()
		if t != nil {
			t.Root().Cancel(reason)
		}
	})

	step(0)
	return r
}

// Repeat calls block repeatedly: each time it returns a Promise, Repeat
// awaits its fulfillment before calling block again. Once block returns
// nil, Repeat fulfills with "OK". Any rejection from an iteration's
// Promise rejects the result with that reason. Cancelling the returned
// Promise forwards the cancellation to the root of the currently running
// iteration.
func Repeat(block func() *Promise, opts ...Option) *Promise {
	r := newPromise(nil, opts...)

	var mu sync.Mutex
	var current *Promise

	var iterate func()
	iterate = func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.rejectErr(PanicError{Value: rec})
			}
		}()

		t := block()
		if t == nil {
			r.fulfill("OK")
			return
		}
		mu.Lock()
		current = t
		mu.Unlock()
		t.Then(func(any) any {
			iterate()
			return nil
		}, func(e any) any {
			r.rejectErr(e.(error))
			return nil
		})
	}

	r.onCancel(func(reason error) {
		mu.Lock()
		t := current
		mu.Unlock()
		if t != nil {
			t.Root().Cancel(reason)
		}
	})

	iterate()
	return r
}
