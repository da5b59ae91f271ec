package middleware

import (
	"net/http"

	"github.com/angelmondragon/storefront/pkg/logger"
)

type subjectSource interface {
	Subject() string
}

// Session scopes every request to the subject of the current session so
// idempotency records and log lines are attributed per user.
func Session(state subjectSource, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if state == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := state.Subject()
			ctx := WithSubject(r.Context(), subject)
			if logg != nil {
				ctx = logg.WithField(ctx, "subject", subject)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
