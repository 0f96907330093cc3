package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/vldmrch/pharmsync/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID attaches a request ID to the request context and response
// headers, generating one when the client did not supply it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = newRequestID()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := logger.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newRequestID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b[:])
}
