package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/stagecrew/rentline-backend/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestID propagates the caller's X-Request-Id, minting one when
// absent, and scopes the request logger to it.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			reqID := r.Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
