// Package auth verifies the bearer tokens issued by the identity provider
// and puts the caller's identity on the request context.
//
// Two verifiers are provided. JWTVerifier checks the token locally with the
// project's HS256 secret. SupabaseVerifier asks the provider's /auth/v1/user
// endpoint, which also catches revoked sessions. Either way the caller must
// have a confirmed email address.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ignite/campaign-dashboard/internal/pkg/apperr"
	"github.com/ignite/campaign-dashboard/internal/pkg/httputil"
	"github.com/ignite/campaign-dashboard/internal/pkg/logger"
)

// Sentinel errors returned by verifiers.
var (
	ErrMissingToken     = errors.New("missing bearer token")
	ErrInvalidToken     = errors.New("invalid or expired token")
	ErrEmailUnconfirmed = errors.New("email address not confirmed")
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
}

// Verifier validates a raw bearer token.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by RequireAuth, if any.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}

// UserID returns the authenticated user id or "".
func UserID(ctx context.Context) string {
	if id, ok := FromContext(ctx); ok {
		return id.UserID
	}
	return ""
}

// BearerToken extracts the token from an "Authorization: Bearer <t>" header.
func BearerToken(r *http.Request) (string, error) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

// RequireAuth rejects requests without a valid bearer token with 401 before
// they reach any handler.
func RequireAuth(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r)
			if err != nil {
				httputil.WriteError(w, r, apperr.Auth(err.Error()))
				return
			}
			id, err := v.Verify(r.Context(), token)
			if err != nil {
				if !errors.Is(err, ErrInvalidToken) && !errors.Is(err, ErrEmailUnconfirmed) {
					logger.Warn("auth: verifier failed", "path", r.URL.Path, "error", err)
					err = ErrInvalidToken
				}
				httputil.WriteError(w, r, apperr.Auth(err.Error()))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
