package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tjfontaine/stepwise/internal/pipeline"
	"github.com/tjfontaine/stepwise/internal/server"
)

// Timeout gives later steps a Go context that expires after d. A failure
// caused by the deadline becomes a 504. Steps that ignore the context are not
// interrupted.
func Timeout(d time.Duration) server.Interceptor {
	return pipeline.NewInterceptor("timeout", func(c *server.Context, next server.Next) (*server.Response, error) {
		if d <= 0 {
			return next()
		}

		parent := c.Context()
		ctx, cancel := context.WithTimeout(parent, d)
		defer cancel()

		c.SetContext(ctx)
		defer c.SetContext(parent)

		res, err := next()
		if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			herr := server.NewHTTPError(http.StatusGatewayTimeout, "request timed out").Wrap(err)
			AddError(parent, herr)
			return server.ErrorResponse(herr), nil
		}
		return res, err
	})
}
