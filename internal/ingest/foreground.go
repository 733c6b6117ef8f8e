package ingest

import (
	"context"
	"time"

	"github.com/casafindr/casafindr-sync/internal/bus"
	"github.com/casafindr/casafindr-sync/internal/store"
	"github.com/casafindr/casafindr-sync/pkg/db/models"
	"github.com/casafindr/casafindr-sync/pkg/enums"
	pkgerrors "github.com/casafindr/casafindr-sync/pkg/errors"
	"github.com/casafindr/casafindr-sync/pkg/logger"
	"github.com/casafindr/casafindr-sync/pkg/metrics"
)

const contextForeground = "foreground"

// NavigationIntent carries the correlation refs of a tapped notification to
// the navigation collaborator. The refs stay opaque here.
type NavigationIntent struct {
	Type       enums.NotificationType
	PropertyID *string
	ChatID     *string
	InquiryID  *string
}

// NavigationDispatcher routes a tapped notification to the matching screen.
type NavigationDispatcher interface {
	Dispatch(ctx context.Context, intent NavigationIntent)
}

// ForegroundHandler ingests pushes delivered while the UI process is alive:
// it appends like the background handler and then fans the fresh unread count
// out on the event bus so mounted screens update without polling.
type ForegroundHandler struct {
	store     store.Service
	events    *bus.Bus
	navigator NavigationDispatcher
	logg      *logger.Logger
	metrics   *metrics.IngestMetrics
}

// ForegroundParams wires the foreground ingest dependencies. Navigator is
// optional; without one tap events only ingest.
type ForegroundParams struct {
	Store     store.Service
	Events    *bus.Bus
	Navigator NavigationDispatcher
	Logger    *logger.Logger
	Metrics   *metrics.IngestMetrics
}

// NewForegroundHandler builds the foreground ingest handler.
func NewForegroundHandler(params ForegroundParams) (*ForegroundHandler, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notification store required")
	}
	if params.Events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "event bus required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &ForegroundHandler{
		store:     params.Store,
		events:    params.Events,
		navigator: params.Navigator,
		logg:      params.Logger,
		metrics:   params.Metrics,
	}, nil
}

// HandleDelivery ingests a fresh foreground push delivery.
func (h *ForegroundHandler) HandleDelivery(ctx context.Context, raw []byte) error {
	_, err := h.ingest(ctx, raw)
	return err
}

// HandleTap ingests a tapped notification (which may already be stored from a
// background delivery) and hands its navigation intent to the collaborator.
func (h *ForegroundHandler) HandleTap(ctx context.Context, raw []byte) error {
	record, err := h.ingest(ctx, raw)
	if err != nil {
		return err
	}
	if record == nil || h.navigator == nil {
		return nil
	}
	h.navigator.Dispatch(ctx, NavigationIntent{
		Type:       record.Type,
		PropertyID: record.PropertyID,
		ChatID:     record.ChatID,
		InquiryID:  record.InquiryID,
	})
	return nil
}

func (h *ForegroundHandler) ingest(ctx context.Context, raw []byte) (*models.Notification, error) {
	decoded, decodeErr := Decode(raw)
	if decodeErr != nil {
		h.metrics.IncDropped(contextForeground)
		h.logg.Error(ctx, "dropping malformed push payload", decodeErr)
		return nil, nil
	}
	if decoded.Silent {
		h.metrics.IncSilentSkipped()
		h.logg.Info(ctx, "skipping data-only push")
		return nil, nil
	}

	start := time.Now()
	result, appendErr := h.store.Append(ctx, decoded.Record)
	if appendErr != nil {
		h.logg.Error(ctx, "foreground append failed", appendErr)
		return nil, appendErr
	}
	h.metrics.ObserveAppend(contextForeground, time.Since(start))

	if result.Appended {
		h.metrics.IncIngested(contextForeground, string(decoded.Record.Type))
		h.metrics.AddEvicted(int(result.Evicted))
	} else {
		h.metrics.IncDeduped(contextForeground)
	}

	// The count topic fires even on a dedup hit so subscribers converge
	// on the current count; the added topic only fires for real appends.
	if result.Appended {
		h.events.PublishCount(result.UnreadCount)
	} else {
		h.events.Publish(bus.Event{Topic: bus.TopicNotificationCountUpdated, Count: result.UnreadCount})
	}

	logCtx := h.logg.WithFields(ctx, map[string]any{
		"notification_id": decoded.Record.ID,
		"type":            decoded.Record.Type,
		"unread_count":    result.UnreadCount,
		"appended":        result.Appended,
	})
	h.logg.Info(logCtx, "notification ingested in foreground")
	return &decoded.Record, nil
}
