package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/tjfontaine/stepwise/internal/auth"
	"github.com/tjfontaine/stepwise/internal/pipeline"
	"github.com/tjfontaine/stepwise/internal/server"
	"github.com/tjfontaine/stepwise/internal/storage"
)

var (
	// CredentialField holds the API key from the Authorization header.
	CredentialField = pipeline.NewField[string]("credential")

	// UserField holds the authenticated user.
	UserField = pipeline.NewField[*storage.User]("user")
)

// Credentials extracts the API key. The field is absent when the header is
// missing or malformed.
func Credentials() server.Decorator {
	return pipeline.Provide(CredentialField, func(c *server.Context) (string, bool, error) {
		key, err := auth.ExtractAPIKey(c.Request.Header.Get("Authorization"))
		if err != nil {
			return "", false, nil
		}
		return key, true, nil
	})
}

// Principal resolves the credential to a user. Unknown keys leave the field
// absent; store failures fail the request.
func Principal(authn *auth.Authenticator) server.Decorator {
	return pipeline.Provide(UserField, func(c *server.Context) (*storage.User, bool, error) {
		key, ok := pipeline.Get(c, CredentialField)
		if !ok {
			return nil, false, nil
		}
		u, err := authn.Authenticate(c.Context(), key)
		if errors.Is(err, auth.ErrInvalidAPIKey) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		AddLogField(c.Context(), "user_id", strconv.FormatInt(u.ID, 10))
		AddLogField(c.Context(), "tenant", u.Tenant)
		return u, true, nil
	})
}

// RequireUser answers 401 without running later steps when no user was
// resolved.
func RequireUser() server.Interceptor {
	return pipeline.NewInterceptor("require_user", func(c *server.Context, next server.Next) (*server.Response, error) {
		if _, ok := pipeline.Get(c, UserField); !ok {
			msg := "invalid API key"
			if !c.Has(CredentialField.Name()) {
				msg = auth.ErrMissingCredentials.Error()
			}
			res := server.ErrorResponse(server.NewHTTPError(http.StatusUnauthorized, msg))
			res.SetHeader("WWW-Authenticate", `Bearer realm="stepwise"`)
			return res, nil
		}
		return next()
	})
}

// Authenticated extends p with Credentials, Principal and RequireUser.
func Authenticated(p *server.Pipeline, authn *auth.Authenticator) (*server.Pipeline, error) {
	p, err := p.Decorate(Credentials())
	if err != nil {
		return nil, err
	}
	p, err = p.Decorate(Principal(authn))
	if err != nil {
		return nil, err
	}
	return p.Use(RequireUser()), nil
}

// CurrentUser returns the authenticated user, or nil.
func CurrentUser(c *server.Context) *storage.User {
	u, _ := pipeline.Get(c, UserField)
	return u
}
