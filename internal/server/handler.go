package server

import (
	"log/slog"
	"net/http"
)

// Handler serves a dispatcher over net/http. Errors that no interceptor turned
// into a response are logged and answered with ErrorResponse.
func Handler(d *Dispatcher, env *Env) http.Handler {
	if env == nil {
		env = NewEnv("stepwise", nil)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := d.Dispatch(r.Context(), r, env)
		if err != nil {
			env.Logger.LogAttrs(r.Context(), slog.LevelError, "dispatch failed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			res = ErrorResponse(err)
		}
		if res == nil {
			res = NoContent()
		}
		if err := res.Send(w); err != nil {
			env.Logger.Warn("write response failed",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
		}
	})
}
