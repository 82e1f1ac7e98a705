package pipeline

import "fmt"

// Next runs the rest of the chain. An interceptor may call it at most once.
type Next[Res any] func() (Res, error)

// Handler produces the result when no interceptor short-circuits.
type Handler[Req, Env, Res any] func(c *Context[Req, Env]) (Res, error)

// DecorateFunc computes the fields a decorator contributes.
type DecorateFunc[Req, Env any] func(c *Context[Req, Env]) (Fields, error)

// InterceptFunc wraps the rest of the chain.
type InterceptFunc[Req, Env, Res any] func(c *Context[Req, Env], next Next[Res]) (Res, error)

// Decorator is a step that only adds fields to the Context.
type Decorator[Req, Env any] struct {
	name   string
	fields []string
	fn     DecorateFunc[Req, Env]
}

// NewDecorator returns a decorator named name that contributes the given fields.
// fn may leave a declared field out of its result but may not add any other.
func NewDecorator[Req, Env any](name string, fields []string, fn DecorateFunc[Req, Env]) Decorator[Req, Env] {
	if fn == nil {
		panic(fmt.Sprintf("pipeline: decorator %s has nil function", name))
	}
	return Decorator[Req, Env]{
		name:   name,
		fields: append([]string(nil), fields...),
		fn:     fn,
	}
}

// Provide returns a decorator contributing the single typed field f.
// If fn returns ok == false the field is left absent.
func Provide[T any, Req, Env any](f Field[T], fn func(c *Context[Req, Env]) (v T, ok bool, err error)) Decorator[Req, Env] {
	return NewDecorator(f.name, []string{f.name}, func(c *Context[Req, Env]) (Fields, error) {
		v, ok, err := fn(c)
		if err != nil || !ok {
			return nil, err
		}
		return f.Value(v), nil
	})
}

// Name returns the decorator name.
func (d Decorator[Req, Env]) Name() string { return d.name }

// Provides returns the field names the decorator declares.
func (d Decorator[Req, Env]) Provides() []string {
	return append([]string(nil), d.fields...)
}

// Interceptor is a step that wraps the rest of the chain and may short-circuit it.
type Interceptor[Req, Env, Res any] struct {
	name string
	fn   InterceptFunc[Req, Env, Res]
}

// NewInterceptor returns an interceptor named name.
func NewInterceptor[Req, Env, Res any](name string, fn InterceptFunc[Req, Env, Res]) Interceptor[Req, Env, Res] {
	if fn == nil {
		panic(fmt.Sprintf("pipeline: interceptor %s has nil function", name))
	}
	return Interceptor[Req, Env, Res]{name: name, fn: fn}
}

// Name returns the interceptor name.
func (i Interceptor[Req, Env, Res]) Name() string { return i.name }

type stepKind uint8

const (
	kindDecorator stepKind = iota + 1
	kindInterceptor
)

func (k stepKind) String() string {
	switch k {
	case kindDecorator:
		return "decorator"
	case kindInterceptor:
		return "interceptor"
	default:
		return "unknown"
	}
}

// step is the tagged union stored in a pipeline.
type step[Req, Env, Res any] struct {
	kind      stepKind
	name      string
	fields    []string
	decorate  DecorateFunc[Req, Env]
	intercept InterceptFunc[Req, Env, Res]
}
