package middleware

import (
	"github.com/google/uuid"

	"github.com/tjfontaine/stepwise/internal/pipeline"
	"github.com/tjfontaine/stepwise/internal/server"
)

// RequestIDHeader is read from requests and written to responses.
const RequestIDHeader = "X-Request-ID"

// RequestIDField holds the request ID.
var RequestIDField = pipeline.NewField[string]("request_id")

// RequestID adds a unique request ID to each request.
// A well-formed inbound X-Request-ID is kept so IDs survive proxies.
func RequestID() server.Decorator {
	return pipeline.Provide(RequestIDField, func(c *server.Context) (string, bool, error) {
		if id := c.Request.Header.Get(RequestIDHeader); validRequestID(id) {
			return id, true, nil
		}
		return uuid.New().String(), true, nil
	})
}

// ExposeRequestID sets the X-Request-ID response header.
func ExposeRequestID() server.Interceptor {
	return pipeline.NewInterceptor("expose_request_id", func(c *server.Context, next server.Next) (*server.Response, error) {
		res, err := next()
		if res != nil {
			if id, ok := pipeline.Get(c, RequestIDField); ok {
				res.SetHeader(RequestIDHeader, id)
			}
		}
		return res, err
	})
}

// GetRequestID returns the request ID or an empty string.
func GetRequestID(c *server.Context) string {
	id, _ := pipeline.Get(c, RequestIDField)
	return id
}

func validRequestID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		if r < 0x21 || r > 0x7e {
			return false
		}
	}
	return true
}
