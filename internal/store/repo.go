package store

import (
	"context"
	"errors"

	"github.com/casafindr/casafindr-sync/pkg/db/models"
	"gorm.io/gorm"
)

// Repository exposes persistence helpers for the notification store. All
// mutating helpers are expected to run inside the service's transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Exists(ctx context.Context, id string) (bool, error)
	Insert(ctx context.Context, record *models.Notification) error
	Count(ctx context.Context) (int64, error)
	CountUnread(ctx context.Context) (int64, error)
	EvictOldest(ctx context.Context, n int64) (int64, error)
	SetRead(ctx context.Context, id string) (int64, error)
	SetAllRead(ctx context.Context) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	ListNewestFirst(ctx context.Context, unreadOnly bool) ([]models.Notification, error)
	State(ctx context.Context) (*models.SyncState, error)
	SaveState(ctx context.Context, state *models.SyncState) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a notification repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ?", id).
		Count(&count).Error
	return count > 0, err
}

func (r *repositoryImpl) Insert(ctx context.Context, record *models.Notification) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repositoryImpl) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).Count(&count).Error
	return count, err
}

func (r *repositoryImpl) CountUnread(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("read = ?", false).
		Count(&count).Error
	return count, err
}

func (r *repositoryImpl) EvictOldest(ctx context.Context, n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	// Oldest by insertion order, not wall clock.
	result := r.db.WithContext(ctx).
		Where("id IN (?)", r.db.
			Model(&models.Notification{}).
			Select("id").
			Order("position ASC").
			Limit(int(n))).
		Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) SetRead(ctx context.Context, id string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND read = ?", id, false).
		UpdateColumn("read", true)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) SetAllRead(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("read = ?", false).
		UpdateColumn("read", true)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) ListNewestFirst(ctx context.Context, unreadOnly bool) ([]models.Notification, error) {
	query := r.db.WithContext(ctx).Model(&models.Notification{})
	if unreadOnly {
		query = query.Where("read = ?", false)
	}
	var records []models.Notification
	err := query.Order("position DESC").Find(&records).Error
	return records, err
}

func (r *repositoryImpl) State(ctx context.Context) (*models.SyncState, error) {
	var state models.SyncState
	err := r.db.WithContext(ctx).First(&state, "id = ?", 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		state = models.SyncState{ID: 1, UnreadCount: 0, NextPosition: 1}
		if createErr := r.db.WithContext(ctx).Create(&state).Error; createErr != nil {
			return nil, createErr
		}
		return &state, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *repositoryImpl) SaveState(ctx context.Context, state *models.SyncState) error {
	return r.db.WithContext(ctx).Save(state).Error
}
