package store

import (
	"context"
	stdErrors "errors"
	"sync"
	"time"

	"github.com/casafindr/casafindr-sync/pkg/db"
	"github.com/casafindr/casafindr-sync/pkg/db/models"
	pkgerrors "github.com/casafindr/casafindr-sync/pkg/errors"
	"gorm.io/gorm"
)

// DefaultMaxRecords is the retention cap applied when none is configured.
const DefaultMaxRecords = 50

var errDuplicateInsert = stdErrors.New("duplicate notification insert")

// AppendResult reports the observable outcome of one append.
type AppendResult struct {
	// Appended is false when the record id was already stored and the
	// append resolved to a no-op.
	Appended    bool
	Evicted     int64
	UnreadCount int64
	Total       int64
}

// Service is the sole owner of durable notification state. Every mutation
// runs as a single read-modify-write transaction, serialized behind a
// process-local mutex; the record list and the cached unread counter commit
// together or not at all.
type Service interface {
	Append(ctx context.Context, record models.Notification) (AppendResult, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) (int64, error)
	Clear(ctx context.Context) error
	GetAll(ctx context.Context, unreadOnly bool) ([]models.Notification, error)
	UnreadCount(ctx context.Context) (int64, error)
}

type service struct {
	client     *db.Client
	repo       Repository
	maxRecords int64

	// mu serializes mutations within this process instance; the database
	// transaction serializes against the other process instance.
	mu sync.Mutex
}

// ServiceParams wires the store dependencies.
type ServiceParams struct {
	Client     *db.Client
	Repo       Repository
	MaxRecords int
}

// NewService builds the notification store.
func NewService(params ServiceParams) (Service, error) {
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "database client required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notification repository required")
	}
	maxRecords := int64(params.MaxRecords)
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &service{
		client: params.Client,
		repo:   params.Repo,
		maxRecords: maxRecords,
	}, nil
}

func (s *service) Append(ctx context.Context, record models.Notification) (AppendResult, error) {
	if record.ID == "" {
		return AppendResult{}, pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	if !record.Type.IsValid() {
		return AppendResult{}, pkgerrors.New(pkgerrors.CodeValidation, "notification type invalid")
	}
	if record.Title == "" || record.Message == "" {
		return AppendResult{}, pkgerrors.New(pkgerrors.CodeValidation, "notification title and message required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result AppendResult
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		exists, err := repo.Exists(ctx, record.ID)
		if err != nil {
			return err
		}
		if exists {
			// Duplicate delivery of a server-assigned id is a no-op.
			return s.refreshState(ctx, repo, &result)
		}

		state, err := repo.State(ctx)
		if err != nil {
			return err
		}

		record.Position = state.NextPosition
		record.Read = false
		if record.CreatedAt.IsZero() {
			record.CreatedAt = time.Now().UTC()
		}
		if err := repo.Insert(ctx, &record); err != nil {
			// A concurrent writer in the other process can land the same
			// id between the exists check and the insert.
			if db.IsUniqueViolation(err, "") {
				return errDuplicateInsert
			}
			return err
		}

		total, err := repo.Count(ctx)
		if err != nil {
			return err
		}
		if total > s.maxRecords {
			evicted, err := repo.EvictOldest(ctx, total-s.maxRecords)
			if err != nil {
				return err
			}
			result.Evicted = evicted
			total -= evicted
		}

		unread, err := repo.CountUnread(ctx)
		if err != nil {
			return err
		}

		state.NextPosition++
		state.UnreadCount = unread
		if err := repo.SaveState(ctx, state); err != nil {
			return err
		}

		result.Appended = true
		result.UnreadCount = unread
		result.Total = total
		return nil
	})
	if stdErrors.Is(err, errDuplicateInsert) {
		// Resolve the duplicate as a no-op in a fresh transaction; the
		// aborted insert may have poisoned the first one.
		err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
			return s.refreshState(ctx, s.repo.WithTx(tx), &result)
		})
	}
	if err != nil {
		return AppendResult{}, pkgerrors.Wrap(pkgerrors.CodeStorageWrite, err, "append notification")
	}
	return result, nil
}

func (s *service) refreshState(ctx context.Context, repo Repository, result *AppendResult) error {
	unread, err := repo.CountUnread(ctx)
	if err != nil {
		return err
	}
	total, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	result.Appended = false
	result.UnreadCount = unread
	result.Total = total
	return nil
}

func (s *service) MarkRead(ctx context.Context, id string) error {
	if id == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// Marking an absent or already-read record is a no-op, not an error.
		if _, err := repo.SetRead(ctx, id); err != nil {
			return err
		}
		return s.syncUnreadCount(ctx, repo)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorageWrite, err, "mark notification read")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated int64
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		count, err := repo.SetAllRead(ctx)
		if err != nil {
			return err
		}
		updated = count
		return s.syncUnreadCount(ctx, repo)
	})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeStorageWrite, err, "mark notifications read")
	}
	return updated, nil
}

func (s *service) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.DeleteAll(ctx); err != nil {
			return err
		}
		state, err := repo.State(ctx)
		if err != nil {
			return err
		}
		state.UnreadCount = 0
		return repo.SaveState(ctx, state)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorageWrite, err, "clear notifications")
	}
	return nil
}

func (s *service) GetAll(ctx context.Context, unreadOnly bool) ([]models.Notification, error) {
	records, err := s.repo.ListNewestFirst(ctx, unreadOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	return records, nil
}

func (s *service) UnreadCount(ctx context.Context) (int64, error) {
	state, err := s.repo.State(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read unread counter")
	}
	return state.UnreadCount, nil
}

func (s *service) syncUnreadCount(ctx context.Context, repo Repository) error {
	unread, err := repo.CountUnread(ctx)
	if err != nil {
		return err
	}
	state, err := repo.State(ctx)
	if err != nil {
		return err
	}
	state.UnreadCount = unread
	return repo.SaveState(ctx, state)
}
