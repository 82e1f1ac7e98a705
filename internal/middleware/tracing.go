package middleware

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/stepwise/internal/pipeline"
	"github.com/tjfontaine/stepwise/internal/server"
)

const tracerName = "github.com/tjfontaine/stepwise/internal/middleware"

// Tracing wraps the rest of the chain in a span. Later steps see the span
// through the Go context.
func Tracing() server.Interceptor {
	return pipeline.NewInterceptor("tracing", func(c *server.Context, next server.Next) (*server.Response, error) {
		tracer := c.Env.Tracer
		if tracer == nil {
			tracer = otel.Tracer(tracerName)
		}

		r := c.Request
		parent := c.Context()
		ctx, span := tracer.Start(parent, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			),
		)
		defer span.End()

		if id := GetRequestID(c); id != "" {
			span.SetAttributes(attribute.String("request.id", id))
		}

		c.SetContext(ctx)
		defer c.SetContext(parent)

		res, err := next()

		status := statusOf(res, err)
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case status >= 500:
			span.SetStatus(codes.Error, "server error")
		}
		return res, err
	})
}
