package models

import (
	"time"

	"github.com/casafindr/casafindr-sync/pkg/enums"
)

// Notification is one durably stored notification record. The ID is the
// server-assigned stable identifier carried in the push payload; appends with
// an already stored ID are no-ops.
type Notification struct {
	ID         string                 `gorm:"type:text;primaryKey" json:"id"`
	Type       enums.NotificationType `gorm:"type:text;not null" json:"type"`
	Title      string                 `gorm:"type:text;not null" json:"title"`
	Message    string                 `gorm:"type:text;not null" json:"message"`
	PropertyID *string                `gorm:"type:text" json:"propertyId,omitempty"`
	ChatID     *string                `gorm:"type:text" json:"chatId,omitempty"`
	InquiryID  *string                `gorm:"type:text" json:"inquiryId,omitempty"`
	Image      *string                `gorm:"type:text" json:"image,omitempty"`
	Read       bool                   `gorm:"not null;default:false" json:"read"`
	// Position orders records by insertion, newest first on read. Wall-clock
	// CreatedAt is display metadata only; eviction follows Position.
	Position  int64     `gorm:"not null;index" json:"-"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}
