package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tjfontaine/stepwise/internal/server"
	"github.com/tjfontaine/stepwise/internal/testutil"
)

func newTestEnv(t *testing.T) (*server.Env, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	return server.NewEnv("test", testutil.NewLogger(buf)), buf
}

func ok(body string) server.HandlerFunc {
	return func(c *server.Context) (*server.Response, error) {
		return server.Text(http.StatusOK, body), nil
	}
}

// serve runs d behind server.Handler and returns the recorded response.
func serve(t *testing.T, d *server.Dispatcher, env *server.Env, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	server.Handler(d, env).ServeHTTP(rec, req)
	return rec
}

func dispatch(t *testing.T, d *server.Dispatcher, env *server.Env, req *http.Request) (*server.Response, error) {
	t.Helper()
	return d.Dispatch(context.Background(), req, env)
}
