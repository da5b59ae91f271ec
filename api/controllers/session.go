package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/internal/session"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

type sessionState interface {
	Login(token string) (session.Snapshot, error)
	Logout()
	Snapshot() session.Snapshot
}

type loginRequest struct {
	Token string `json:"token"`
}

// SessionLogin installs the bearer token produced by the external login flow.
// The token may come in the body or the Authorization header.
func SessionLogin(state sessionState, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if state == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session unavailable"))
			return
		}

		raw := r.Header.Get("Authorization")
		if raw == "" {
			var payload loginRequest
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			raw = payload.Token
		}
		token, err := validators.BearerToken(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "token is required"))
			return
		}

		snapshot, err := state.Login(token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithField(r.Context(), "subject", snapshot.Subject), "session started")
		}
		responses.WriteSuccess(w, snapshot)
	}
}

func SessionLogout(state sessionState, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if state == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session unavailable"))
			return
		}
		state.Logout()
		responses.WriteSuccess(w, state.Snapshot())
	}
}

func SessionFetch(state sessionState, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if state == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session unavailable"))
			return
		}
		responses.WriteSuccess(w, state.Snapshot())
	}
}
