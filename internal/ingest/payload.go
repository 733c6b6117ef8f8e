package ingest

import (
	"encoding/json"
	"time"

	"github.com/casafindr/casafindr-sync/pkg/db/models"
	"github.com/casafindr/casafindr-sync/pkg/enums"
	pkgerrors "github.com/casafindr/casafindr-sync/pkg/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// pushPayload mirrors the platform push message shape.
type pushPayload struct {
	Notification *notificationBlock `json:"notification"`
	Data         dataBlock          `json:"data"`
}

type notificationBlock struct {
	Title string `json:"title" validate:"required"`
	Body  string `json:"body" validate:"required"`
}

type dataBlock struct {
	// ID is the server-assigned stable notification id. Redelivered
	// messages reuse it, which is what makes append dedup possible.
	ID         string `json:"id"`
	Type       string `json:"type" validate:"required"`
	PropertyID string `json:"propertyId" validate:"omitempty"`
	ChatID     string `json:"chatId" validate:"omitempty"`
	InquiryID  string `json:"inquiryId" validate:"omitempty"`
	Image      string `json:"image" validate:"omitempty,url"`
}

// DecodeResult reports the outcome of decoding one raw push payload.
type DecodeResult struct {
	// Silent is true for data-only pushes, which produce no record.
	Silent bool
	Record models.Notification
}

// Decode parses and validates a raw push payload into a notification record.
// Shape failures return a MALFORMED_PAYLOAD error; callers drop and log them.
func Decode(raw []byte) (DecodeResult, error) {
	var payload pushPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return DecodeResult{}, pkgerrors.Wrap(pkgerrors.CodeMalformedPayload, err, "decode push payload")
	}

	if payload.Notification == nil {
		return DecodeResult{Silent: true}, nil
	}

	if err := validate.Struct(payload); err != nil {
		return DecodeResult{}, pkgerrors.Wrap(pkgerrors.CodeMalformedPayload, err, "validate push payload")
	}

	notificationType, err := enums.ParseNotificationType(payload.Data.Type)
	if err != nil {
		return DecodeResult{}, pkgerrors.Wrap(pkgerrors.CodeMalformedPayload, err, "parse notification type")
	}

	id := payload.Data.ID
	if id == "" {
		// Fallback for payloads predating server-assigned ids; such records
		// are only deduplicated by the delivery guard, not by the store.
		id = uuid.NewString()
	}

	record := models.Notification{
		ID:         id,
		Type:       notificationType,
		Title:      payload.Notification.Title,
		Message:    payload.Notification.Body,
		PropertyID: optional(payload.Data.PropertyID),
		ChatID:     optional(payload.Data.ChatID),
		InquiryID:  optional(payload.Data.InquiryID),
		Image:      optional(payload.Data.Image),
		CreatedAt:  time.Now().UTC(),
	}
	return DecodeResult{Record: record}, nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
