package controllers

import (
	"net/http"

	"github.com/casafindr/casafindr-sync/api/responses"
	"github.com/casafindr/casafindr-sync/api/validators"
	"github.com/casafindr/casafindr-sync/internal/token"
	pkgerrors "github.com/casafindr/casafindr-sync/pkg/errors"
	"github.com/casafindr/casafindr-sync/pkg/logger"
)

// TokenStatus reports the push-token lifecycle state and the stored token.
func TokenStatus(manager *token.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if manager == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "token manager unavailable"))
			return
		}

		stored, err := manager.StoredToken(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"state": manager.State(),
			"token": stored,
		})
	}
}

// TokenRotated bridges a platform token-rotation callback into the manager.
func TokenRotated(manager *token.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if manager == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "token manager unavailable"))
			return
		}

		var body struct {
			Token string `json:"token" validate:"required"`
		}
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := manager.OnTokenRotated(r.Context(), body.Token); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"rotated": true})
	}
}
