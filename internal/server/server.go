package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RouteFactory derives the dispatcher of one route from a base pipeline.
// It fails when its steps conflict with the base.
type RouteFactory func(base *Pipeline) (*Dispatcher, error)

// Route is the value mounted at one path pattern. Build it with Methods,
// AnyMethod, Static or Disabled.
type Route struct {
	methods  map[string]RouteFactory
	all      RouteFactory
	static   *Response
	disabled bool
}

// Methods serves each listed method from its own factory. Other methods get
// 405 Method Not Allowed.
func Methods(factories map[string]RouteFactory) Route {
	return Route{methods: factories}
}

// AnyMethod serves every method of the path from a single dispatcher.
func AnyMethod(f RouteFactory) Route {
	return Route{all: f}
}

// Static answers every method of the path with a copy of res. No pipeline
// runs for it.
func Static(res *Response) Route {
	if res == nil {
		res = NoContent()
	}
	c := &Response{Status: res.Status, Header: res.Header.Clone()}
	if res.Body != nil {
		c.Body = append([]byte(nil), res.Body...)
	}
	return Route{static: c}
}

// Disabled leaves the path unrouted so it answers 404.
func Disabled() Route {
	return Route{disabled: true}
}

// RouteTable maps a path pattern to the route mounted there.
type RouteTable map[string]Route

type Server struct {
	Router *chi.Mux
	Port   int
	env    *Env
	logger *slog.Logger

	httpServer *http.Server
}

func New(port int, env *Env) *Server {
	if env == nil {
		env = NewEnv("stepwise", nil)
	}
	r := chi.NewRouter()

	// Pipelines recover their own panics when they use middleware.Recover;
	// this catches the rest.
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, env.Name)
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		Router:     r,
		Port:       port,
		env:        env,
		logger:     env.Logger,
		httpServer: httpServer,
	}
}

// Env returns the environment handed to every dispatch.
func (s *Server) Env() *Env {
	return s.env
}

// Route serves d for method and pattern.
func (s *Server) Route(method, pattern string, d *Dispatcher) {
	s.Router.Method(method, pattern, Handler(d, s.env))
}

// MountRoutes builds every route in the table from base and registers it.
// Patterns and methods are registered in sorted order. Nothing is registered
// if any route fails to build.
func (s *Server) MountRoutes(base *Pipeline, routes RouteTable) error {
	patterns := make([]string, 0, len(routes))
	for p := range routes {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)

	type mount struct {
		method, pattern string
		h               http.Handler
		steps           int
	}
	var built []mount
	for _, pattern := range patterns {
		r := routes[pattern]
		switch {
		case r.disabled:
			s.logger.Debug("route disabled", slog.String("pattern", pattern))

		case r.static != nil:
			res := r.static
			built = append(built, mount{pattern: pattern, h: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if err := res.Send(w); err != nil {
					s.logger.Warn("write response failed",
						slog.String("pattern", pattern),
						slog.String("error", err.Error()),
					)
				}
			})})

		case r.all != nil:
			d, err := r.all(base)
			if err != nil {
				return fmt.Errorf("route * %s: %w", pattern, err)
			}
			built = append(built, mount{pattern: pattern, h: Handler(d, s.env), steps: d.Len()})

		default:
			methods := make([]string, 0, len(r.methods))
			for m := range r.methods {
				methods = append(methods, m)
			}
			sort.Strings(methods)

			for _, method := range methods {
				d, err := r.methods[method](base)
				if err != nil {
					return fmt.Errorf("route %s %s: %w", method, pattern, err)
				}
				built = append(built, mount{method: method, pattern: pattern, h: Handler(d, s.env), steps: d.Len()})
			}
		}
	}

	for _, m := range built {
		method := m.method
		if method == "" {
			s.Router.Handle(m.pattern, m.h)
			method = "*"
		} else {
			s.Router.Method(m.method, m.pattern, m.h)
		}
		s.logger.Debug("route registered",
			slog.String("method", method),
			slog.String("pattern", m.pattern),
			slog.Int("steps", m.steps),
		)
	}
	return nil
}

func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
