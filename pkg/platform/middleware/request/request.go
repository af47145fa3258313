// Package request assigns a correlation ID to every incoming request.
// Inbound X-Request-ID headers are honored so IDs survive proxy hops.
package request

import (
	"net/http"

	"github.com/google/uuid"

	"registrar/pkg/requestcontext"
)

const headerName = "X-Request-ID"

// Middleware stores the request ID in the context and echoes it on the
// response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerName)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerName, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
