// Package middleware provides HTTP middleware for taskbridge.
package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Strob0t/taskbridge/internal/logger"
)

const (
	headerRequestID = "X-Request-ID"
	headerTraceID   = "X-Trace-ID"
)

// RequestID is HTTP middleware that extracts X-Request-ID from the request
// header or generates a new one. The ID is stored in the context and set
// on the response header. A caller-supplied X-Trace-ID is carried along
// so submitted tasks keep the caller's trace.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = strings.ReplaceAll(uuid.NewString(), "-", "")
		}

		ctx := logger.WithRequestID(r.Context(), id)
		if trace := r.Header.Get(headerTraceID); trace != "" {
			ctx = logger.WithTraceID(ctx, trace)
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
