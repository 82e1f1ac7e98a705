package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/tjfontaine/stepwise/internal/pipeline"
	"github.com/tjfontaine/stepwise/internal/server"
)

// logFieldsKey identifies request-scoped logging fields.
type logFieldsKey struct{}

type logFields struct {
	mu     sync.Mutex
	fields map[string]string
}

// Logging logs requests with structured logging.
// It logs request details before the rest of the chain runs and status,
// duration and any fields added via AddLogField after it returns.
func Logging() server.Interceptor {
	return pipeline.NewInterceptor("logging", func(c *server.Context, next server.Next) (*server.Response, error) {
		start := time.Now()
		r := c.Request
		logger := c.Env.Logger

		// Attach mutable log fields to the context for later steps to enrich
		fields := &logFields{fields: make(map[string]string)}
		parent := c.Context()
		c.SetContext(context.WithValue(parent, logFieldsKey{}, fields))
		defer c.SetContext(parent)

		requestID := GetRequestID(c)

		logger.Info("request started",
			slog.String("request_id", requestID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr),
		)

		res, err := next()

		duration := time.Since(start)
		attrs := []slog.Attr{
			slog.String("request_id", requestID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", statusOf(res, err)),
			slog.Duration("duration", duration),
		}

		fields.mu.Lock()
		for k, v := range fields.fields {
			attrs = append(attrs, slog.String(k, v))
		}
		fields.mu.Unlock()

		level := slog.LevelInfo
		if err != nil {
			level = slog.LevelError
			attrs = append(attrs, slog.String("error", err.Error()))
		}

		logger.LogAttrs(c.Context(), level, "request completed", attrs...)
		return res, err
	})
}

// AddLogField attaches a key/value to the request-scoped log fields so Logging can emit it.
// It is safe to call multiple times. No-op if Logging isn't in the chain.
func AddLogField(ctx context.Context, key, value string) {
	if value == "" {
		return
	}
	if fields, ok := ctx.Value(logFieldsKey{}).(*logFields); ok {
		fields.mu.Lock()
		fields.fields[key] = value
		fields.mu.Unlock()
	}
}

// AddError attaches an error message to the request-scoped log fields. No-op if
// Logging isn't in the chain or err is nil.
func AddError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	AddLogField(ctx, "error_detail", err.Error())
}

// statusOf is the status the server adapter will answer with.
func statusOf(res *server.Response, err error) int {
	switch {
	case err != nil:
		return server.StatusOf(err)
	case res == nil:
		return http.StatusNoContent
	case res.Status == 0:
		return http.StatusOK
	default:
		return res.Status
	}
}
