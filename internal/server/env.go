package server

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/stepwise/internal/pipeline"
)

// Env is the environment shared by every dispatch of a server.
// Steps read it; none may mutate it.
type Env struct {
	Name   string
	Logger *slog.Logger
	Tracer trace.Tracer
}

// NewEnv creates an environment. A nil logger falls back to slog.Default and
// the tracer comes from the global otel provider.
func NewEnv(name string, logger *slog.Logger) *Env {
	if logger == nil {
		logger = slog.Default()
	}
	return &Env{
		Name:   name,
		Logger: logger,
		Tracer: otel.Tracer(name),
	}
}

// Pipeline types bound to net/http.
type (
	Pipeline    = pipeline.Pipeline[*http.Request, *Env, *Response]
	Context     = pipeline.Context[*http.Request, *Env]
	Dispatcher  = pipeline.Dispatcher[*http.Request, *Env, *Response]
	Decorator   = pipeline.Decorator[*http.Request, *Env]
	Interceptor = pipeline.Interceptor[*http.Request, *Env, *Response]
	Next        = pipeline.Next[*Response]
	HandlerFunc = pipeline.Handler[*http.Request, *Env, *Response]
)

// NewPipeline returns an empty HTTP pipeline.
func NewPipeline() *Pipeline {
	return pipeline.New[*http.Request, *Env, *Response]()
}
