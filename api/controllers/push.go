package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/casafindr/casafindr-sync/api/responses"
	"github.com/casafindr/casafindr-sync/internal/ingest"
	pkgerrors "github.com/casafindr/casafindr-sync/pkg/errors"
	"github.com/casafindr/casafindr-sync/pkg/logger"
)

// Push payloads are small; anything past this is not a real notification.
const pushBodyLimit int64 = 64 << 10

// PushDeliver bridges a foreground push delivery from the platform shim into
// the ingest pipeline.
func PushDeliver(handler *ingest.ForegroundHandler, logg *logger.Logger) http.HandlerFunc {
	if handler == nil {
		return unavailable(logg)
	}
	return pushBridge(handler.HandleDelivery, logg)
}

// PushTap bridges a notification tap, which ingests the payload and then
// routes navigation.
func PushTap(handler *ingest.ForegroundHandler, logg *logger.Logger) http.HandlerFunc {
	if handler == nil {
		return unavailable(logg)
	}
	return pushBridge(handler.HandleTap, logg)
}

func unavailable(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "push bridge unavailable"))
	}
}

func pushBridge(handle func(ctx context.Context, raw []byte) error, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(io.LimitReader(r.Body, pushBodyLimit))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read push payload"))
			return
		}
		if len(raw) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "push payload is required"))
			return
		}

		if err := handle(r.Context(), raw); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"accepted": true})
	}
}
