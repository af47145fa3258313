// Package admin guards the administrator surface. Requests carry a bearer
// token minted for back-office staff; the verified actor ID lands in the
// request context so decision records name who acted.
package admin

import (
	"log/slog"
	"net/http"
	"strings"

	"registrar/pkg/requestcontext"
)

// Claims is the verified identity of an administrator token.
type Claims struct {
	ActorID string
	Role    string
}

// TokenVerifier validates a presented admin token.
type TokenVerifier interface {
	VerifyToken(tokenString string) (*Claims, error)
}

// RoleAdmin is the role required on the admin surface.
const RoleAdmin = "admin"

// RequireAdmin rejects requests without a valid admin bearer token and
// records the verified actor in the context.
func RequireAdmin(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "admin request without bearer token",
					"request_id", requestcontext.RequestID(ctx))
				unauthorized(w, "missing bearer token")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				logger.WarnContext(ctx, "admin token rejected",
					"request_id", requestcontext.RequestID(ctx), "error", err)
				unauthorized(w, "invalid or expired token")
				return
			}
			if claims.Role != RoleAdmin {
				logger.WarnContext(ctx, "token lacks admin role",
					"request_id", requestcontext.RequestID(ctx), "actor", claims.ActorID)
				forbidden(w)
				return
			}

			ctx = requestcontext.WithActorID(ctx, claims.ActorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}

func forbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"admin role required"}`))
}
