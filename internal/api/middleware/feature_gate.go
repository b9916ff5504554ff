package middleware

import (
	"context"
	"net/http"

	"github.com/microsafety/microsafety/internal/api/models"
)

// FlagChecker reports whether a feature flag is on.
type FlagChecker interface {
	IsEnabled(ctx context.Context, key string) bool
}

// DisabledBy answers 503 while the flag is on. A nil checker lets every
// request through.
func DisabledBy(flags FlagChecker, key, detail string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if flags == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if flags.IsEnabled(r.Context(), key) {
				models.NewSwitchedOff(GetRequestID(r.Context()), key, detail).
					WithInstance(r.URL.Path).
					Write(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
