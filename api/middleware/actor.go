package middleware

import (
	"net/http"

	"github.com/stagecrew/rentline-backend/pkg/authz"
	"github.com/stagecrew/rentline-backend/pkg/logger"
)

const (
	actorIDHeader   = "X-Actor-Id"
	actorRoleHeader = "X-Actor-Role"
)

// Actor lifts the gateway-verified identity headers into the request
// context. The upstream gateway authenticates callers; this service only
// needs the resolved identity for authorization and audit trails.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := authz.Actor{
				ID:   r.Header.Get(actorIDHeader),
				Role: r.Header.Get(actorRoleHeader),
			}
			if actor.ID == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithActor(r.Context(), actor)
			if logg != nil {
				ctx = logg.WithActor(ctx, actor.ID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
