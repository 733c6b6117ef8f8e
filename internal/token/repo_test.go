package token

import (
	"context"
	"fmt"
	"testing"

	"github.com/casafindr/casafindr-sync/pkg/db/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupRepo(t *testing.T) Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.PushToken{}))
	return NewRepository(db)
}

func TestRepositoryGetWithoutRecord(t *testing.T) {
	repo := setupRepo(t)

	record, err := repo.Get(context.Background())
	require.NoError(t, err)
	require.Nil(t, record)
}

func TestRepositorySaveOverwritesSingleRow(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "tok-1"))
	require.NoError(t, repo.Save(ctx, "tok-2"))

	record, err := repo.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, "tok-2", record.Token)
	require.False(t, record.SyncedToBackend)
}

func TestRepositoryMarkSynced(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "tok-1"))
	require.NoError(t, repo.MarkSynced(ctx))

	record, err := repo.Get(ctx)
	require.NoError(t, err)
	require.True(t, record.SyncedToBackend)

	// A rotation resets the flag.
	require.NoError(t, repo.Save(ctx, "tok-2"))
	record, err = repo.Get(ctx)
	require.NoError(t, err)
	require.False(t, record.SyncedToBackend)
}
