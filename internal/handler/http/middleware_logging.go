package http

import (
	"net/http"

	"github.com/google/uuid"
)

// requestLogger attaches a request-scoped logger carrying a fresh trace id
// to the context, so downstream code picks it up through
// [logger.FromRequest] / [logger.FromContext].
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zl := h.logger.With().
			Str("trace_id", uuid.NewString()).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()

		next.ServeHTTP(w, r.WithContext(zl.WithContext(r.Context())))
	})
}
