// Package pipeline provides the request dispatch engine.
//
// A Pipeline is an ordered list of steps that run in front of a single
// terminal handler. Steps come in two kinds:
//   - Decorator: computes fields from the Context and adds them to it. It
//     cannot stop the chain.
//   - Interceptor: receives the Context and a next function that runs the rest
//     of the chain. It may run code before and after next, or return its own
//     result without calling next.
//
// # Construction
//
// Pipelines are persistent values. Use and Decorate return a new Pipeline
// that shares the receiver as its prefix:
//
//	base := pipeline.New[*http.Request, *Env, *Response]().
//		Use(logging).
//		MustDecorate(requestID)
//
//	api := base.MustDecorate(user).Use(requireUser)
//	d := api.Handle(me)
//
// Decorators declare the field names they produce. Decorate rejects a
// decorator that declares a field the pipeline already guarantees, so two
// steps can never silently overwrite each other's values at request time.
//
// # Dispatch
//
// Dispatch seeds a fresh Context with the request and environment and walks
// the steps once:
//
//	logging (before) -> requestID -> user -> requireUser -> me
//	logging (after)  <------------------------------------+
//
// Interceptors registered later wrap more tightly; the code they run after
// next executes in reverse registration order. next may be called at most
// once per invocation; a second call returns a *ProtocolError instead of
// running the downstream steps again.
//
// Errors returned by decorators and the handler are wrapped in *StepError and
// travel back through the interceptors, any of which may turn them into a
// result. Errors nobody handles are returned by Dispatch.
package pipeline
