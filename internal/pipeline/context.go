package pipeline

import (
	"context"
	"fmt"
)

// Seed field names. Every Context starts with these and no decorator may claim them.
const (
	FieldRequest = "request"
	FieldEnv     = "env"
)

var seedFields = []string{FieldRequest, FieldEnv}

// Fields is the set of values a decorator contributes to a Context.
type Fields map[string]any

// Context carries one request through one walk of a pipeline.
// It is created fresh by Dispatch and must not be retained by a step after
// that step returns.
type Context[Req, Env any] struct {
	Request Req
	Env     Env

	ctx    context.Context
	fields map[string]any
	order  []string
}

func newContext[Req, Env any](ctx context.Context, req Req, env Env, capacity int) *Context[Req, Env] {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context[Req, Env]{
		Request: req,
		Env:     env,
		ctx:     ctx,
		fields:  make(map[string]any, capacity),
		order:   make([]string, 0, capacity),
	}
}

// Context returns the Go context of the request.
func (c *Context[Req, Env]) Context() context.Context {
	return c.ctx
}

// SetContext replaces the Go context seen by the steps that run after the caller.
// Interceptors that derive a context should restore the previous one before returning.
func (c *Context[Req, Env]) SetContext(ctx context.Context) {
	if ctx == nil {
		panic("pipeline: nil context")
	}
	c.ctx = ctx
}

// Get returns the value of a field. The seed fields are served from Request and Env.
func (c *Context[Req, Env]) Get(name string) (any, bool) {
	switch name {
	case FieldRequest:
		return c.Request, true
	case FieldEnv:
		return c.Env, true
	}
	v, ok := c.fields[name]
	return v, ok
}

// Has reports whether the field is present.
func (c *Context[Req, Env]) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

// Fields returns the names of the present fields in the order they were added,
// seed fields first.
func (c *Context[Req, Env]) Fields() []string {
	names := make([]string, 0, len(seedFields)+len(c.order))
	names = append(names, seedFields...)
	return append(names, c.order...)
}

// merge adds the fields a decorator produced. declared is the decorator's
// declared output set.
func (c *Context[Req, Env]) merge(step string, declared []string, add Fields) error {
	for name := range add {
		if !contains(declared, name) {
			return &ProtocolError{Step: step, Err: fmt.Errorf("%w: %q", ErrUndeclaredField, name)}
		}
		if c.Has(name) {
			return &ProtocolError{Step: step, Err: fmt.Errorf("%w: %q", ErrFieldCollision, name)}
		}
	}
	// Declared order keeps Fields() deterministic.
	for _, name := range declared {
		if v, ok := add[name]; ok {
			c.fields[name] = v
			c.order = append(c.order, name)
		}
	}
	return nil
}

// Field is a typed handle on a context field.
type Field[T any] struct {
	name string
}

// NewField returns a typed handle on the named field.
func NewField[T any](name string) Field[T] {
	if name == "" {
		panic("pipeline: empty field name")
	}
	return Field[T]{name: name}
}

// Name returns the field name.
func (f Field[T]) Name() string {
	return f.name
}

// Value wraps v so it can be returned from a decorator function.
func (f Field[T]) Value(v T) Fields {
	return Fields{f.name: v}
}

// Get returns the typed field value from the Context. ok is false if the field
// is absent or holds a value of another type.
func Get[T any, Req, Env any](c *Context[Req, Env], f Field[T]) (v T, ok bool) {
	raw, present := c.Get(f.name)
	if !present {
		return v, false
	}
	v, ok = raw.(T)
	return v, ok
}

// MustGet is like Get but panics if the field is absent. Use it only for fields
// the pipeline is known to provide, see Pipeline.Has.
func MustGet[T any, Req, Env any](c *Context[Req, Env], f Field[T]) T {
	v, ok := Get(c, f)
	if !ok {
		panic(fmt.Sprintf("pipeline: field %q is not present", f.name))
	}
	return v
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
