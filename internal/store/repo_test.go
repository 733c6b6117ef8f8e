package store

import (
	"context"
	"testing"

	"github.com/casafindr/casafindr-sync/pkg/db/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.Notification{}, &models.SyncState{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return conn
}

func TestStateCreatesSingletonRow(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	state, err := repo.State(ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.NextPosition != 1 || state.UnreadCount != 0 {
		t.Fatalf("unexpected fresh state %+v", state)
	}

	state.NextPosition = 7
	state.UnreadCount = 2
	if err := repo.SaveState(ctx, state); err != nil {
		t.Fatalf("save state: %v", err)
	}

	reloaded, err := repo.State(ctx)
	if err != nil {
		t.Fatalf("reload state: %v", err)
	}
	if reloaded.NextPosition != 7 || reloaded.UnreadCount != 2 {
		t.Fatalf("state not persisted, got %+v", reloaded)
	}
}

func TestEvictOldestFollowsPosition(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		record := chatRecord(id)
		record.Position = int64(i + 1)
		if err := repo.Insert(ctx, &record); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	evicted, err := repo.EvictOldest(ctx, 2)
	if err != nil {
		t.Fatalf("evict: %v", err)
	}
	if evicted != 2 {
		t.Fatalf("expected 2 evicted, got %d", evicted)
	}

	remaining, err := repo.ListNewestFirst(ctx, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "c" {
		t.Fatalf("expected only newest record to survive, got %+v", remaining)
	}
}

func TestEvictOldestZeroIsNoOp(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	evicted, err := repo.EvictOldest(context.Background(), 0)
	if err != nil {
		t.Fatalf("evict: %v", err)
	}
	if evicted != 0 {
		t.Fatalf("expected no eviction, got %d", evicted)
	}
}
