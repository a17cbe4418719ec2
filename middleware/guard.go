package middleware

import (
	"context"
	"net/http"
	"strings"

	goTrust "github.com/MrEthical07/goTrust"
)

// Cookie names shared with httpapi.
const (
	AccessCookie  = "mh_access_token"
	RefreshCookie = "mh_refresh_token"
)

// Validator checks access tokens. *goTrust.Engine implements it.
type Validator interface {
	ValidateAccess(ctx context.Context, accessToken string) (*goTrust.AuthResult, error)
}

type authResultContextKey struct{}

// WithAuthResult stores res in ctx.
func WithAuthResult(ctx context.Context, res *goTrust.AuthResult) context.Context {
	return context.WithValue(ctx, authResultContextKey{}, res)
}

// AuthResultFromContext returns the result stored by Guard.
func AuthResultFromContext(ctx context.Context) (*goTrust.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*goTrust.AuthResult)
	return res, ok
}

// Guard rejects requests without a valid access token and stores the
// validated result in the request context.
func Guard(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token := AccessToken(r)
			if token == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := v.ValidateAccess(r.Context(), token)
			if err != nil {
				status, code := ErrorStatus(err)
				http.Error(w, code, status)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthResult(r.Context(), res)))
		})
	}
}

// AccessToken returns the bearer token, or the access cookie when no
// Authorization header is present.
func AccessToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		token, _ := bearerToken(h)
		return token
	}
	if c, err := r.Cookie(AccessCookie); err == nil {
		return c.Value
	}
	return ""
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
