package handler

import (
	"context"
	"crypto/hmac"
	"net/http"

	"github.com/google/uuid"

	"escrow-service/internal/pkg/response"
)

type contextKey string

const actorKey contextKey = "actor_id"

// RequireActor extracts the authenticated user from the X-User-ID header set
// by the upstream API gateway. Requests without it are rejected; this
// service never sees raw credentials.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			response.Error(w, http.StatusUnauthorized, "missing user identity")
			return
		}
		if _, err := uuid.Parse(userID); err != nil {
			response.Error(w, http.StatusUnauthorized, "malformed user identity")
			return
		}
		ctx := context.WithValue(r.Context(), actorKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorID returns the authenticated user id placed by RequireActor.
func ActorID(r *http.Request) string {
	id, _ := r.Context().Value(actorKey).(string)
	return id
}

// RequireInternalKey guards service-to-service endpoints with a shared key
// carried in X-Internal-Key. An unconfigured key closes the endpoint.
func RequireInternalKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Internal-Key")
			if key == "" || !hmac.Equal([]byte(got), []byte(key)) {
				response.Error(w, http.StatusUnauthorized, "invalid internal key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
