package pipeline

import (
	"fmt"
	"sort"
)

// Pipeline is an immutable, ordered list of steps. Use and Decorate return a
// new Pipeline that shares the receiver as its prefix, so any Pipeline value
// can serve as a template for several chains.
//
// The zero value is not usable; start from New.
type Pipeline[Req, Env, Res any] struct {
	parent *Pipeline[Req, Env, Res]
	step   *step[Req, Env, Res]
	depth  int
}

// New returns an empty pipeline whose Context carries only the seed fields.
func New[Req, Env, Res any]() *Pipeline[Req, Env, Res] {
	return &Pipeline[Req, Env, Res]{}
}

// Use returns a new pipeline with the interceptor appended.
func (p *Pipeline[Req, Env, Res]) Use(i Interceptor[Req, Env, Res]) *Pipeline[Req, Env, Res] {
	if i.fn == nil {
		panic("pipeline: Use of an interceptor without function")
	}
	return p.append(&step[Req, Env, Res]{
		kind:      kindInterceptor,
		name:      i.name,
		intercept: i.fn,
	})
}

// Decorate returns a new pipeline with the decorator appended. It fails with a
// *ConflictError if any field the decorator declares is already guaranteed by
// the pipeline, and the receiver is left as it was.
func (p *Pipeline[Req, Env, Res]) Decorate(d Decorator[Req, Env]) (*Pipeline[Req, Env, Res], error) {
	if d.fn == nil {
		return nil, fmt.Errorf("pipeline: decorator %q has no function", d.name)
	}
	if d.name == "" {
		return nil, fmt.Errorf("pipeline: decorator without name")
	}
	if len(d.fields) == 0 {
		return nil, fmt.Errorf("pipeline: decorator %s declares no fields", d.name)
	}

	var conflicts []string
	seen := make(map[string]bool, len(d.fields))
	for _, name := range d.fields {
		if name == "" {
			return nil, fmt.Errorf("pipeline: decorator %s declares an empty field name", d.name)
		}
		if seen[name] || p.Has(name) {
			conflicts = append(conflicts, name)
		}
		seen[name] = true
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return nil, &ConflictError{Decorator: d.name, Fields: dedupe(conflicts)}
	}

	return p.append(&step[Req, Env, Res]{
		kind:     kindDecorator,
		name:     d.name,
		fields:   append([]string(nil), d.fields...),
		decorate: d.fn,
	}), nil
}

// MustDecorate is like Decorate but panics on conflict. It suits chains built
// in package-level variables, in the manner of regexp.MustCompile.
func (p *Pipeline[Req, Env, Res]) MustDecorate(d Decorator[Req, Env]) *Pipeline[Req, Env, Res] {
	next, err := p.Decorate(d)
	if err != nil {
		panic(err)
	}
	return next
}

// Handle finalizes the pipeline with the terminal handler and returns the
// executable Dispatcher. The step list is flattened once here.
func (p *Pipeline[Req, Env, Res]) Handle(h Handler[Req, Env, Res]) *Dispatcher[Req, Env, Res] {
	if h == nil {
		panic("pipeline: Handle with nil handler")
	}
	steps := p.chain()
	fieldCount := 0
	for _, s := range steps {
		fieldCount += len(s.fields)
	}
	return &Dispatcher[Req, Env, Res]{
		steps:      steps,
		handler:    h,
		fieldCount: fieldCount,
	}
}

// Has reports whether the pipeline guarantees the named field, either as a
// seed field or through a registered decorator.
func (p *Pipeline[Req, Env, Res]) Has(name string) bool {
	if contains(seedFields, name) {
		return true
	}
	for n := p; n != nil && n.step != nil; n = n.parent {
		if contains(n.step.fields, name) {
			return true
		}
	}
	return false
}

// Fields returns the seed fields followed by the decorator fields in
// registration order.
func (p *Pipeline[Req, Env, Res]) Fields() []string {
	names := append([]string(nil), seedFields...)
	for _, s := range p.chain() {
		names = append(names, s.fields...)
	}
	return names
}

// Steps returns "kind:name" for each step in registration order.
func (p *Pipeline[Req, Env, Res]) Steps() []string {
	chain := p.chain()
	names := make([]string, len(chain))
	for i, s := range chain {
		names[i] = s.kind.String() + ":" + s.name
	}
	return names
}

// Len returns the number of steps.
func (p *Pipeline[Req, Env, Res]) Len() int {
	return p.depth
}

func (p *Pipeline[Req, Env, Res]) append(s *step[Req, Env, Res]) *Pipeline[Req, Env, Res] {
	return &Pipeline[Req, Env, Res]{parent: p, step: s, depth: p.depth + 1}
}

func (p *Pipeline[Req, Env, Res]) chain() []*step[Req, Env, Res] {
	steps := make([]*step[Req, Env, Res], p.depth)
	for n := p; n != nil && n.step != nil; n = n.parent {
		steps[n.depth-1] = n.step
	}
	return steps
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}
