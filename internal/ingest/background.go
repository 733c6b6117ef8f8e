package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/casafindr/casafindr-sync/internal/store"
	pkgerrors "github.com/casafindr/casafindr-sync/pkg/errors"
	"github.com/casafindr/casafindr-sync/pkg/logger"
	"github.com/casafindr/casafindr-sync/pkg/metrics"
)

const contextBackground = "background"

// BackgroundHandler ingests pushes delivered while no UI exists. It assumes
// nothing beyond the store is initialized: the host process may be torn down
// the moment Handle returns, so the append is durably flushed before that.
type BackgroundHandler struct {
	store   store.Service
	logg    *logger.Logger
	metrics *metrics.IngestMetrics
}

// NewBackgroundHandler wires the background ingest dependencies.
func NewBackgroundHandler(svc store.Service, logg *logger.Logger, m *metrics.IngestMetrics) (*BackgroundHandler, error) {
	if svc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notification store required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &BackgroundHandler{store: svc, logg: logg, metrics: m}, nil
}

// Handle decodes one raw payload and appends it to the durable store.
// Malformed payloads are dropped and logged, never returned: an uncaught
// failure here can be fatal to the minimal host process. Storage failures are
// the one class surfaced to the caller so the delivery can be retried.
func (h *BackgroundHandler) Handle(ctx context.Context, raw []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			panicErr := fmt.Errorf("panic: %v", r)
			h.logg.Error(ctx, "background ingest panicked", panicErr)
			err = pkgerrors.Wrap(pkgerrors.CodeInternal, panicErr, "background ingest")
		}
	}()

	decoded, decodeErr := Decode(raw)
	if decodeErr != nil {
		h.metrics.IncDropped(contextBackground)
		h.logg.Error(ctx, "dropping malformed push payload", decodeErr)
		return nil
	}
	if decoded.Silent {
		h.metrics.IncSilentSkipped()
		h.logg.Info(ctx, "skipping data-only push")
		return nil
	}

	start := time.Now()
	result, appendErr := h.store.Append(ctx, decoded.Record)
	if appendErr != nil {
		h.logg.Error(ctx, "background append failed", appendErr)
		return appendErr
	}
	h.metrics.ObserveAppend(contextBackground, time.Since(start))

	if !result.Appended {
		h.metrics.IncDeduped(contextBackground)
		h.logg.Info(ctx, "duplicate notification id, append skipped")
		return nil
	}

	h.metrics.IncIngested(contextBackground, string(decoded.Record.Type))
	h.metrics.AddEvicted(int(result.Evicted))
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"notification_id": decoded.Record.ID,
		"type":            decoded.Record.Type,
		"unread_count":    result.UnreadCount,
	})
	h.logg.Info(logCtx, "notification ingested in background")
	return nil
}
