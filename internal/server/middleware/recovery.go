// Package middleware provides HTTP middleware for the status server.
package middleware

import (
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/3leaps/logvault/internal/errors"
	"github.com/3leaps/logvault/internal/observability"
)

// Recovery converts handler panics into a 500 error envelope instead of
// tearing down the worker.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				observability.Logger.Error("handler panic recovered",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path))
				apperrors.WriteJSON(w, http.StatusInternalServerError,
					apperrors.CodeInternal, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
