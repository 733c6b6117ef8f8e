package models

import "time"

// PushToken is the single stored platform push token for this install.
// The table holds at most one row; registration and rotation overwrite it.
type PushToken struct {
	ID              int64     `gorm:"primaryKey" json:"-"`
	Token           string    `gorm:"type:text;not null" json:"token"`
	LastRefreshedAt time.Time `gorm:"not null" json:"lastRefreshedAt"`
	SyncedToBackend bool      `gorm:"not null;default:false" json:"syncedToBackend"`
}
