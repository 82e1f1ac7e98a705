package pipeline

import (
	"context"
	"sync/atomic"
)

// HandlerStep is the step name reported for failures of the terminal handler.
const HandlerStep = "handler"

// Dispatcher is the executable form of a Pipeline. It is read-only after
// Handle returns, so one Dispatcher may serve any number of concurrent
// dispatches.
type Dispatcher[Req, Env, Res any] struct {
	steps      []*step[Req, Env, Res]
	handler    Handler[Req, Env, Res]
	fieldCount int
}

// Dispatch walks the chain once for req. Steps run in registration order;
// the code an interceptor runs after next returns runs in reverse order.
func (d *Dispatcher[Req, Env, Res]) Dispatch(ctx context.Context, req Req, env Env) (Res, error) {
	w := &walk[Req, Env, Res]{
		d: d,
		c: newContext(ctx, req, env, d.fieldCount),
	}
	res, err := w.proceed(0)
	// A protocol violation fails the request even if the interceptor that
	// caused it dropped the error.
	if v := w.violation.Load(); v != nil {
		var zero Res
		return zero, v
	}
	return res, err
}

// Len returns the number of steps before the handler.
func (d *Dispatcher[Req, Env, Res]) Len() int {
	return len(d.steps)
}

// walk is the state of one dispatch.
type walk[Req, Env, Res any] struct {
	d *Dispatcher[Req, Env, Res]
	c *Context[Req, Env]

	// violation is the first misuse of next in this walk.
	violation atomic.Pointer[ProtocolError]
}

// proceed runs the chain from cursor i. Decorators are applied in a loop so a
// long run of them does not grow the stack.
func (w *walk[Req, Env, Res]) proceed(i int) (Res, error) {
	var zero Res
	n := len(w.d.steps)
	if i > n {
		return zero, &ProtocolError{Step: HandlerStep, Err: ErrChainExhausted}
	}

	for ; i < n; i++ {
		s := w.d.steps[i]
		if s.kind == kindInterceptor {
			return w.intercept(i, s)
		}

		add, err := s.decorate(w.c)
		if err != nil {
			return zero, &StepError{Step: s.name, Err: err}
		}
		if err := w.c.merge(s.name, s.fields, add); err != nil {
			return zero, err
		}
	}

	res, err := w.d.handler(w.c)
	if err != nil {
		return zero, &StepError{Step: HandlerStep, Err: err}
	}
	return res, nil
}

const (
	nextPending int32 = iota
	nextCalled
	nextExpired
)

// intercept calls the interceptor at position i with a next bound to i+1.
func (w *walk[Req, Env, Res]) intercept(i int, s *step[Req, Env, Res]) (Res, error) {
	var state atomic.Int32
	next := func() (Res, error) {
		if !state.CompareAndSwap(nextPending, nextCalled) {
			var zero Res
			pe := &ProtocolError{Step: s.name, Err: ErrProceedTwice}
			if state.Load() == nextExpired {
				pe.Err = ErrProceedAfterReturn
			}
			w.violation.CompareAndSwap(nil, pe)
			return zero, pe
		}
		return w.proceed(i + 1)
	}
	defer state.Store(nextExpired)
	return s.intercept(w.c, next)
}
