package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/tjfontaine/stepwise/internal/pipeline"
	"github.com/tjfontaine/stepwise/internal/server"
)

// Recover converts a panic in any later step into a 500 response.
// http.ErrAbortHandler is re-panicked so net/http can abort the connection.
func Recover() server.Interceptor {
	return pipeline.NewInterceptor("recover", func(c *server.Context, next server.Next) (res *server.Response, err error) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if e, ok := rec.(error); ok && errors.Is(e, http.ErrAbortHandler) {
				panic(rec)
			}

			c.Env.Logger.Error("panic recovered",
				slog.String("request_id", GetRequestID(c)),
				slog.String("path", c.Request.URL.Path),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)

			perr := server.NewHTTPError(http.StatusInternalServerError, "internal server error").
				Wrap(fmt.Errorf("panic: %v", rec))
			AddError(c.Context(), perr)
			res, err = server.ErrorResponse(perr), nil
		}()
		return next()
	})
}
