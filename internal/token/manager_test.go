package token

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/casafindr/casafindr-sync/pkg/config"
	"github.com/casafindr/casafindr-sync/pkg/db/models"
	"github.com/casafindr/casafindr-sync/pkg/enums"
	pkgerrors "github.com/casafindr/casafindr-sync/pkg/errors"
	"github.com/casafindr/casafindr-sync/pkg/logger"
	"github.com/casafindr/casafindr-sync/pkg/metrics"
)

type memoryRepo struct {
	record *models.PushToken
	getErr error
	saveErr error
}

func (m *memoryRepo) Get(context.Context) (*models.PushToken, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.record == nil {
		return nil, nil
	}
	copied := *m.record
	return &copied, nil
}

func (m *memoryRepo) Save(_ context.Context, token string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.record = &models.PushToken{ID: 1, Token: token, LastRefreshedAt: time.Now().UTC()}
	return nil
}

func (m *memoryRepo) MarkSynced(context.Context) error {
	if m.record == nil {
		return errors.New("no record")
	}
	m.record.SyncedToBackend = true
	return nil
}

func testPushConfig() config.PushConfig {
	return config.PushConfig{InitTimeout: time.Second, RefreshTimeout: time.Second}
}

func newManager(t *testing.T, source Source, repo Repository, upstream UpstreamSyncer) *Manager {
	t.Helper()
	m, err := NewManager(Params{
		Source:   source,
		Repo:     repo,
		Upstream: upstream,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}),
		Metrics:  metrics.NewIngestMetrics(nil),
		Config:   testPushConfig(),
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestInitializeRegistersAndSyncs(t *testing.T) {
	repo := &memoryRepo{}
	var synced []string
	upstream := SyncerFunc(func(_ context.Context, tok string) error {
		synced = append(synced, tok)
		return nil
	})
	m := newManager(t, SourceFunc(func(context.Context) (string, error) { return "tok-1", nil }), repo, upstream)

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if m.State() != enums.TokenStateRegistered {
		t.Fatalf("expected registered, got %s", m.State())
	}
	if repo.record == nil || repo.record.Token != "tok-1" {
		t.Fatal("expected token persisted")
	}
	if !repo.record.SyncedToBackend {
		t.Fatal("expected record marked synced after acknowledgement")
	}
	if len(synced) != 1 || synced[0] != "tok-1" {
		t.Fatalf("expected one upstream sync, got %v", synced)
	}
}

func TestInitializeFailureIsRetryable(t *testing.T) {
	repo := &memoryRepo{}
	attempts := 0
	source := SourceFunc(func(context.Context) (string, error) {
		attempts++
		if attempts == 1 {
			return "", errors.New("push service unavailable")
		}
		return "tok-1", nil
	})
	m := newManager(t, source, repo, nil)

	err := m.Initialize(context.Background())
	if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeTokenRegistration {
		t.Fatalf("expected registration failure code, got %s", code)
	}
	if m.State() != enums.TokenStateFailed {
		t.Fatalf("expected failed, got %s", m.State())
	}

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("retry initialize: %v", err)
	}
	if m.State() != enums.TokenStateRegistered {
		t.Fatalf("expected registered after retry, got %s", m.State())
	}
}

func TestInitializeBoundedByTimeout(t *testing.T) {
	repo := &memoryRepo{}
	source := SourceFunc(func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	m := newManager(t, source, repo, nil)
	m.cfg.InitTimeout = 10 * time.Millisecond

	if err := m.Initialize(context.Background()); err == nil {
		t.Fatal("expected timeout failure")
	}
	if m.State() != enums.TokenStateFailed {
		t.Fatalf("expected failed after timeout, got %s", m.State())
	}
}

func TestInitializeSecondCallRejected(t *testing.T) {
	repo := &memoryRepo{}
	m := newManager(t, SourceFunc(func(context.Context) (string, error) { return "tok-1", nil }), repo, nil)

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := m.Initialize(context.Background()); err == nil {
		t.Fatal("expected second initialize rejected while registered")
	}
}

func TestInitializeSyncFailureIsNonFatal(t *testing.T) {
	repo := &memoryRepo{}
	upstream := SyncerFunc(func(context.Context, string) error { return errors.New("backend down") })
	m := newManager(t, SourceFunc(func(context.Context) (string, error) { return "tok-1", nil }), repo, upstream)

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("sync failure must not fail initialize: %v", err)
	}
	if m.State() != enums.TokenStateRegistered {
		t.Fatalf("expected registered, got %s", m.State())
	}
	if repo.record.SyncedToBackend {
		t.Fatal("unacknowledged token must stay unsynced")
	}
}

func TestInitializeRetriesPendingSync(t *testing.T) {
	// A token stored but never acknowledged is re-sent on the next start.
	repo := &memoryRepo{record: &models.PushToken{ID: 1, Token: "tok-1"}}
	var synced int
	upstream := SyncerFunc(func(context.Context, string) error {
		synced++
		return nil
	})
	m := newManager(t, SourceFunc(func(context.Context) (string, error) { return "tok-1", nil }), repo, upstream)

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if synced != 1 {
		t.Fatalf("expected pending token re-synced, got %d calls", synced)
	}
	if !repo.record.SyncedToBackend {
		t.Fatal("expected record marked synced")
	}
}

func TestInitializeSkipsAcknowledgedToken(t *testing.T) {
	repo := &memoryRepo{record: &models.PushToken{ID: 1, Token: "tok-1", SyncedToBackend: true}}
	upstream := SyncerFunc(func(context.Context, string) error {
		t.Fatal("acknowledged unchanged token must not re-sync")
		return nil
	})
	m := newManager(t, SourceFunc(func(context.Context) (string, error) { return "tok-1", nil }), repo, upstream)

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if m.State() != enums.TokenStateRegistered {
		t.Fatalf("expected registered, got %s", m.State())
	}
}

func TestRotationPersistsBeforeSyncResolves(t *testing.T) {
	repo := &memoryRepo{}
	m := newManager(t, SourceFunc(func(context.Context) (string, error) { return "tok-1", nil }), repo, nil)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// The upstream observes the rotated token already durable and unsynced.
	m.upstream = SyncerFunc(func(ctx context.Context, tok string) error {
		stored, err := m.StoredToken(ctx)
		if err != nil {
			t.Fatalf("stored token during sync: %v", err)
		}
		if stored != "tok-2" {
			t.Fatalf("expected rotated token visible during sync, got %q", stored)
		}
		if repo.record.SyncedToBackend {
			t.Fatal("synced flag must be false until the backend acknowledges")
		}
		return nil
	})

	if err := m.OnTokenRotated(context.Background(), "tok-2"); err != nil {
		t.Fatalf("rotation: %v", err)
	}
	if m.State() != enums.TokenStateRegistered {
		t.Fatalf("expected registered after rotation, got %s", m.State())
	}
	if !repo.record.SyncedToBackend {
		t.Fatal("expected record synced after acknowledgement")
	}
}

func TestRotationSyncFailureReturnsToRegistered(t *testing.T) {
	repo := &memoryRepo{record: &models.PushToken{ID: 1, Token: "tok-1", SyncedToBackend: true}}
	upstream := SyncerFunc(func(context.Context, string) error { return errors.New("backend down") })
	m := newManager(t, SourceFunc(func(context.Context) (string, error) { return "tok-1", nil }), repo, upstream)

	if err := m.OnTokenRotated(context.Background(), "tok-2"); err != nil {
		t.Fatalf("rotation must not fail on sync error: %v", err)
	}
	if m.State() != enums.TokenStateRegistered {
		t.Fatalf("expected registered, got %s", m.State())
	}
	if repo.record.Token != "tok-2" || repo.record.SyncedToBackend {
		t.Fatal("expected rotated token stored unsynced")
	}
}

func TestRotationStorageFailure(t *testing.T) {
	repo := &memoryRepo{saveErr: errors.New("disk full")}
	m := newManager(t, SourceFunc(func(context.Context) (string, error) { return "tok-1", nil }), repo, nil)

	err := m.OnTokenRotated(context.Background(), "tok-2")
	if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeStorageWrite {
		t.Fatalf("expected storage failure code, got %s", code)
	}
	if m.State() != enums.TokenStateFailed {
		t.Fatalf("expected failed, got %s", m.State())
	}
}

func TestRotationRejectsEmptyToken(t *testing.T) {
	repo := &memoryRepo{}
	m := newManager(t, SourceFunc(func(context.Context) (string, error) { return "tok-1", nil }), repo, nil)

	if err := m.OnTokenRotated(context.Background(), ""); err == nil {
		t.Fatal("expected empty rotated token rejected")
	}
}

func TestStoredTokenEmptyBeforeFirstRegistration(t *testing.T) {
	repo := &memoryRepo{}
	m := newManager(t, SourceFunc(func(context.Context) (string, error) { return "tok-1", nil }), repo, nil)

	tok, err := m.StoredToken(context.Background())
	if err != nil {
		t.Fatalf("stored token: %v", err)
	}
	if tok != "" {
		t.Fatalf("expected empty token, got %q", tok)
	}
}
