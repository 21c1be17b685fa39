package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rentledger/backend/internal/models"
)

type contextKey string

const ctxActorKey contextKey = "actor"

// Authenticator resolves a bearer token into the calling actor.
type Authenticator interface {
	Authenticate(token string) (*models.Actor, error)
}

// Auth validates the Bearer token and stores the resolved actor in the
// request context. Missing or invalid tokens get 401.
func Auth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				unauthorized(w, "missing or malformed Authorization header")
				return
			}
			actor, err := authn.Authenticate(raw)
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// ActorFromCtx returns the authenticated actor or nil.
func ActorFromCtx(ctx context.Context) *models.Actor {
	a, _ := ctx.Value(ctxActorKey).(*models.Actor)
	return a
}

func WithActor(ctx context.Context, a *models.Actor) context.Context {
	return context.WithValue(ctx, ctxActorKey, a)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `","code":"unauthorized"}`))
}
