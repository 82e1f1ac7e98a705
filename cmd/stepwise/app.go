package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tjfontaine/stepwise/internal/auth"
	"github.com/tjfontaine/stepwise/internal/config"
	"github.com/tjfontaine/stepwise/internal/middleware"
	"github.com/tjfontaine/stepwise/internal/pipeline"
	"github.com/tjfontaine/stepwise/internal/safehttp"
	"github.com/tjfontaine/stepwise/internal/server"
	"github.com/tjfontaine/stepwise/internal/storage"
	"github.com/tjfontaine/stepwise/internal/storage/memory"
	"github.com/tjfontaine/stepwise/internal/storage/sqlite"
)

// pollLimit is the number of polls after which /poll tells htmx to stop.
const pollLimit = 5

type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  storage.UserStore
	server *server.Server
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	store, err := openStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		server: server.New(cfg.Server.Port, server.NewEnv(cfg.Telemetry.ServiceName, logger)),
	}

	if err := a.seedUsers(context.Background(), cfg.Users); err != nil {
		store.Close()
		return nil, err
	}

	base, err := basePipeline(cfg.Server.RequestTimeout)
	if err != nil {
		store.Close()
		return nil, err
	}
	if err := a.server.MountRoutes(base, a.routes()); err != nil {
		store.Close()
		return nil, err
	}

	logger.Info("pipeline ready", slog.Any("steps", base.Steps()))
	return a, nil
}

func openStore(cfg config.StorageConfig) (storage.UserStore, error) {
	switch cfg.Type {
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		return sqlite.New(cfg.SQLite.Path)
	default:
		return memory.New(), nil
	}
}

// seedUsers writes the configured users to the store. Existing users with the
// same ID are replaced.
func (a *app) seedUsers(ctx context.Context, users []config.UserConfig) error {
	for _, u := range users {
		keyHash := u.KeyHash
		if keyHash == "" {
			keyHash = auth.HashAPIKey(u.APIKey)
		}
		err := a.store.PutUser(ctx, &storage.User{
			ID:          u.ID,
			Name:        u.Name,
			Tenant:      u.Tenant,
			KeyHash:     keyHash,
			Description: u.Description,
			CreatedAt:   time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("seed user %d: %w", u.ID, err)
		}
	}
	a.logger.Info("users loaded", slog.Int("count", len(users)))
	return nil
}

// basePipeline holds the steps every route shares.
func basePipeline(timeout time.Duration) (*server.Pipeline, error) {
	p, err := server.NewPipeline().Decorate(middleware.RequestID())
	if err != nil {
		return nil, err
	}
	p = p.
		Use(middleware.ExposeRequestID()).
		Use(middleware.Logging()).
		Use(middleware.Recover()).
		Use(middleware.Tracing()).
		Use(middleware.Timeout(timeout))
	return p.Decorate(middleware.HTMXRequest())
}

func (a *app) routes() server.RouteTable {
	authn := auth.NewAuthenticator(a.store)

	var webhook *server.Interceptor
	if wc := a.cfg.Webhook; wc.URL != "" {
		hc := middleware.WebhookConfig{
			URL:     wc.URL,
			Timeout: wc.Timeout,
			OnError: middleware.WebhookAction(wc.OnError),
			Headers: wc.Headers,
		}
		if wc.DenyPrivate {
			hc.Client = safehttp.NewClient(wc.Timeout)
		}
		w := middleware.Webhook(hc)
		webhook = &w
	}

	return server.RouteTable{
		"/": server.Methods(map[string]server.RouteFactory{
			http.MethodGet: func(base *server.Pipeline) (*server.Dispatcher, error) {
				return base.Handle(server.Adapt(index)), nil
			},
		}),
		"/healthz": server.Methods(map[string]server.RouteFactory{
			http.MethodGet: func(base *server.Pipeline) (*server.Dispatcher, error) {
				return base.Handle(server.Adapt(func(c *server.Context) (any, error) {
					return "ok", nil
				})), nil
			},
		}),
		"/api/me": server.Methods(map[string]server.RouteFactory{
			http.MethodGet: func(base *server.Pipeline) (*server.Dispatcher, error) {
				p, err := middleware.Authenticated(base, authn)
				if err != nil {
					return nil, err
				}
				if webhook != nil {
					p = p.Use(*webhook)
				}
				return p.Handle(me), nil
			},
		}),
		"/poll": server.Methods(map[string]server.RouteFactory{
			http.MethodGet: func(base *server.Pipeline) (*server.Dispatcher, error) {
				return base.Handle(poll), nil
			},
		}),
	}
}

func index(c *server.Context) (any, error) {
	if middleware.GetHTMX(c).IsHTMX() {
		return server.HTML(http.StatusOK, `<p id="greeting">Hello again</p>`), nil
	}
	return server.HTML(http.StatusOK, indexPage), nil
}

func me(c *server.Context) (*server.Response, error) {
	u := pipeline.MustGet(c, middleware.UserField)
	return server.JSON(http.StatusOK, u), nil
}

func poll(c *server.Context) (*server.Response, error) {
	n, _ := strconv.Atoi(c.Request.URL.Query().Get("n"))
	n++
	res := server.HTML(http.StatusOK, fmt.Sprintf(
		`<div hx-get="/poll?n=%d" hx-trigger="every 1s" hx-swap="outerHTML">tick %d</div>`, n, n))

	h := middleware.GetHTMX(c)
	if n >= pollLimit {
		return h.StopPolling(server.HTML(http.StatusOK, fmt.Sprintf(`<div>done after %d</div>`, n))), nil
	}
	if err := h.Trigger(res, map[string]int{"tick": n}); err != nil {
		return nil, err
	}
	return res, nil
}

const indexPage = `<!doctype html>
<html>
<head>
<title>stepwise</title>
<script src="https://unpkg.com/htmx.org@2.0.4"></script>
</head>
<body>
<p id="greeting" hx-get="/" hx-trigger="click" hx-swap="outerHTML">Hello</p>
<div hx-get="/poll" hx-trigger="every 1s" hx-swap="outerHTML">tick 0</div>
</body>
</html>
`
