package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/lifehub-app/backend/pkg/ctxutil"
)

// RequestIDHeader carries the correlation id between client and server.
const RequestIDHeader = "X-Request-Id"

// RequestID returns middleware that tags every request with a
// correlation id, reusing the client's header value when present.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.New().String()
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(ctxutil.WithRequestID(r.Context(), id)))
		})
	}
}
