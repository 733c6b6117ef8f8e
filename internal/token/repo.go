package token

import (
	"context"
	"errors"
	"time"

	"github.com/casafindr/casafindr-sync/pkg/db/models"
	"gorm.io/gorm"
)

// pushTokenRowID pins the table to a single row; registration and rotation
// overwrite it in place.
const pushTokenRowID = 1

// Repository persists the install's push token record.
type Repository interface {
	// Get returns the stored token record, or nil when none was saved yet.
	Get(ctx context.Context) (*models.PushToken, error)
	// Save overwrites the token record and resets the synced flag.
	Save(ctx context.Context, token string) error
	// MarkSynced flips the synced flag after the backend acknowledged the
	// current token.
	MarkSynced(ctx context.Context) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository builds a push token repository over the given handle.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Get(ctx context.Context) (*models.PushToken, error) {
	var record models.PushToken
	err := r.db.WithContext(ctx).First(&record, "id = ?", pushTokenRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repositoryImpl) Save(ctx context.Context, token string) error {
	record := models.PushToken{
		ID:              pushTokenRowID,
		Token:           token,
		LastRefreshedAt: time.Now().UTC(),
		SyncedToBackend: false,
	}
	return r.db.WithContext(ctx).Save(&record).Error
}

func (r *repositoryImpl) MarkSynced(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Model(&models.PushToken{}).
		Where("id = ?", pushTokenRowID).
		Update("synced_to_backend", true).Error
}
