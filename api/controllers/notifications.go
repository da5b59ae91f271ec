package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/internal/notifications"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// NotificationsDrain returns pending toasts and empties the feed. Pass
// ?peek=true to read without draining.
func NotificationsDrain(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications unavailable"))
			return
		}
		if r.URL.Query().Get("peek") == "true" {
			responses.WriteSuccess(w, svc.List())
			return
		}
		responses.WriteSuccess(w, svc.Drain())
	}
}
