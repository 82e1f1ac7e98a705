package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tjfontaine/stepwise/internal/pipeline"
	"github.com/tjfontaine/stepwise/internal/server"
)

// WebhookAction is the verdict of an approval endpoint.
type WebhookAction string

const (
	WebhookAllow WebhookAction = "allow"
	WebhookDeny  WebhookAction = "deny"
)

// DefaultWebhookTimeout bounds a webhook call when WebhookConfig.Timeout is
// not set.
const DefaultWebhookTimeout = 5 * time.Second

// WebhookConfig configures a Webhook step.
type WebhookConfig struct {
	Name string
	URL  string
	// Timeout bounds the whole call, including with a custom Client.
	// Defaults to DefaultWebhookTimeout.
	Timeout time.Duration
	// OnError is applied when the endpoint cannot be reached or answers
	// badly. Defaults to deny.
	OnError WebhookAction
	Headers map[string]string
	// Client overrides the HTTP client, mostly for tests.
	Client *http.Client
}

// WebhookInput is the body posted to the approval endpoint.
type WebhookInput struct {
	Phase    string          `json:"phase"`
	Request  WebhookRequest  `json:"request"`
	Metadata WebhookMetadata `json:"metadata"`
}

type WebhookRequest struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Query  string `json:"query,omitempty"`
}

type WebhookMetadata struct {
	RequestID string `json:"request_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Tenant    string `json:"tenant,omitempty"`
}

// WebhookOutput is the endpoint's answer. An empty action means allow.
type WebhookOutput struct {
	Action     WebhookAction `json:"action"`
	DenyReason string        `json:"deny_reason,omitempty"`
}

type webhook struct {
	name    string
	url     string
	onError WebhookAction
	headers map[string]string
	timeout time.Duration
	client  *http.Client
}

// Webhook asks an external endpoint whether the request may continue.
// A deny answers 403. When the call fails, OnError decides: allow continues
// with a warning, deny answers 502. The call is not retried.
func Webhook(cfg WebhookConfig) server.Interceptor {
	w := newWebhook(cfg)
	return pipeline.NewInterceptor(w.name, w.intercept)
}

func newWebhook(cfg WebhookConfig) *webhook {
	onError := cfg.OnError
	if onError == "" {
		onError = WebhookDeny // Default to fail-closed
	}
	name := cfg.Name
	if name == "" {
		name = "webhook"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultWebhookTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	return &webhook{
		name:    name,
		url:     cfg.URL,
		onError: onError,
		headers: cfg.Headers,
		timeout: timeout,
		client:  client,
	}
}

func (w *webhook) intercept(c *server.Context, next server.Next) (*server.Response, error) {
	out, err := w.call(c)
	if err != nil {
		AddError(c.Context(), err)
		if w.onError == WebhookAllow {
			c.Env.Logger.Warn("webhook failed, allowing request",
				slog.String("webhook", w.name),
				slog.String("request_id", GetRequestID(c)),
				slog.String("error", err.Error()),
			)
			return next()
		}
		herr := server.NewHTTPError(http.StatusBadGateway, "approval service unavailable").Wrap(err)
		return server.ErrorResponse(herr), nil
	}

	if out.Action == WebhookDeny {
		reason := out.DenyReason
		if reason == "" {
			reason = "request denied"
		}
		AddLogField(c.Context(), "deny_reason", reason)
		return server.ErrorResponse(server.NewHTTPError(http.StatusForbidden, reason)), nil
	}
	return next()
}

func (w *webhook) call(c *server.Context) (*WebhookOutput, error) {
	r := c.Request
	in := WebhookInput{
		Phase: "pre",
		Request: WebhookRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
		},
		Metadata: WebhookMetadata{RequestID: GetRequestID(c)},
	}
	if u := CurrentUser(c); u != nil {
		in.Metadata.UserID = strconv.FormatInt(u.ID, 10)
		in.Metadata.Tenant = u.Tenant
	}

	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal webhook input: %w", err)
	}

	ctx, cancel := context.WithTimeout(c.Context(), w.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var out WebhookOutput
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshal webhook output: %w", err)
	}

	switch out.Action {
	case WebhookAllow, WebhookDeny:
	case "":
		out.Action = WebhookAllow
	default:
		return nil, fmt.Errorf("invalid action from webhook: %s", out.Action)
	}
	return &out, nil
}
