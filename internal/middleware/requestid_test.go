package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/tjfontaine/stepwise/internal/server"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name    string
		inbound string
		keep    bool
	}{
		{name: "generated", inbound: "", keep: false},
		{name: "inbound kept", inbound: "req-abc-123", keep: true},
		{name: "inbound with space", inbound: "bad id", keep: false},
		{name: "inbound too long", inbound: string(make([]byte, 200)), keep: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, _ := newTestEnv(t)
			var got string
			d := server.NewPipeline().
				MustDecorate(RequestID()).
				Use(ExposeRequestID()).
				Handle(func(c *server.Context) (*server.Response, error) {
					got = GetRequestID(c)
					return server.Text(http.StatusOK, "ok"), nil
				})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.inbound != "" {
				req.Header.Set(RequestIDHeader, tt.inbound)
			}
			rec := serve(t, d, env, req)

			if tt.keep {
				if got != tt.inbound {
					t.Errorf("request id = %q, want %q", got, tt.inbound)
				}
			} else if _, err := uuid.Parse(got); err != nil {
				t.Errorf("request id %q is not a UUID: %v", got, err)
			}
			if h := rec.Header().Get(RequestIDHeader); h != got {
				t.Errorf("%s header = %q, want %q", RequestIDHeader, h, got)
			}
		})
	}
}

func TestGetRequestID_Absent(t *testing.T) {
	env, _ := newTestEnv(t)
	d := server.NewPipeline().Handle(func(c *server.Context) (*server.Response, error) {
		return server.Text(http.StatusOK, GetRequestID(c)), nil
	})

	res, err := dispatch(t, d, env, httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(res.Body) != 0 {
		t.Errorf("body = %q, want empty", res.Body)
	}
}
