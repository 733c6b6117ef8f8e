package token

import (
	"context"
	"sync"

	"github.com/casafindr/casafindr-sync/pkg/config"
	"github.com/casafindr/casafindr-sync/pkg/enums"
	pkgerrors "github.com/casafindr/casafindr-sync/pkg/errors"
	"github.com/casafindr/casafindr-sync/pkg/logger"
	"github.com/casafindr/casafindr-sync/pkg/metrics"
)

// Source issues push tokens from the platform push service.
type Source interface {
	Token(ctx context.Context) (string, error)
}

// UpstreamSyncer registers the current token with the backend. The call is
// idempotent server-side; re-sending an already acknowledged token is a no-op.
type UpstreamSyncer interface {
	SyncToken(ctx context.Context, token string) error
}

// Manager owns the push-token lifecycle: it requests a token at startup,
// persists rotations, and reports the current token to the backend. Sync
// failures never block local functionality; an unsynced token is retried on
// the next Initialize.
type Manager struct {
	source   Source
	repo     Repository
	upstream UpstreamSyncer
	logg     *logger.Logger
	metrics  *metrics.IngestMetrics
	cfg      config.PushConfig

	mu    sync.Mutex
	state enums.TokenState
}

// Params wires the manager dependencies. Upstream and Metrics are optional.
type Params struct {
	Source   Source
	Repo     Repository
	Upstream UpstreamSyncer
	Logger   *logger.Logger
	Metrics  *metrics.IngestMetrics
	Config   config.PushConfig
}

// NewManager builds a push-token manager in the uninitialized state.
func NewManager(params Params) (*Manager, error) {
	if params.Source == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "token source required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "token repository required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Manager{
		source:   params.Source,
		repo:     params.Repo,
		upstream: params.Upstream,
		logg:     params.Logger,
		metrics:  params.Metrics,
		cfg:      params.Config,
		state:    enums.TokenStateUninitialized,
	}, nil
}

// State reports the current lifecycle state.
func (m *Manager) State() enums.TokenState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// StoredToken returns the last persisted token, usable before Initialize
// completes in the current process lifetime. Empty when none was ever stored.
func (m *Manager) StoredToken(ctx context.Context) (string, error) {
	record, err := m.repo.Get(ctx)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stored push token")
	}
	if record == nil {
		return "", nil
	}
	return record.Token, nil
}

// Initialize requests a token from the platform service, persists it, and
// attempts the upstream sync. The request is bounded by the configured init
// timeout; on timeout or failure the manager lands in the failed state and
// the error is returned rather than crashing the caller. A later Initialize
// retries from failed.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.state != enums.TokenStateUninitialized && m.state != enums.TokenStateFailed {
		m.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeTokenRegistration, "initialize already ran")
	}
	m.state = enums.TokenStateRequesting
	m.mu.Unlock()

	requestCtx, cancel := context.WithTimeout(ctx, m.cfg.InitTimeout)
	defer cancel()

	tok, err := m.source.Token(requestCtx)
	if err != nil {
		m.setState(enums.TokenStateFailed)
		m.metrics.IncTokenEvent("initialize_failed")
		m.logg.Error(ctx, "push token request failed", err)
		return pkgerrors.Wrap(pkgerrors.CodeTokenRegistration, err, "request push token")
	}

	stored, err := m.repo.Get(ctx)
	if err != nil {
		m.setState(enums.TokenStateFailed)
		return pkgerrors.Wrap(pkgerrors.CodeStorageWrite, err, "read push token record")
	}

	// An unchanged, already acknowledged token needs no new write or sync.
	if stored != nil && stored.Token == tok && stored.SyncedToBackend {
		m.setState(enums.TokenStateRegistered)
		m.metrics.IncTokenEvent("initialize_ok")
		return nil
	}

	if stored == nil || stored.Token != tok {
		if err := m.repo.Save(ctx, tok); err != nil {
			m.setState(enums.TokenStateFailed)
			m.metrics.IncTokenEvent("initialize_failed")
			return pkgerrors.Wrap(pkgerrors.CodeStorageWrite, err, "persist push token")
		}
	}

	m.setState(enums.TokenStateRegistered)
	m.metrics.IncTokenEvent("initialize_ok")
	m.syncUpstream(ctx, tok)
	return nil
}

// OnTokenRotated handles a platform token rotation, which may fire at any
// time. The new token is persisted with the synced flag reset before the
// upstream sync runs, so StoredToken reflects the rotation immediately. The
// manager returns to registered whether or not the sync succeeded.
func (m *Manager) OnTokenRotated(ctx context.Context, newToken string) error {
	if newToken == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "rotated token is empty")
	}

	m.setState(enums.TokenStateRefreshing)
	m.metrics.IncTokenEvent("rotated")

	if err := m.repo.Save(ctx, newToken); err != nil {
		m.setState(enums.TokenStateFailed)
		return pkgerrors.Wrap(pkgerrors.CodeStorageWrite, err, "persist rotated push token")
	}

	m.syncUpstream(ctx, newToken)
	m.setState(enums.TokenStateRegistered)
	return nil
}

// syncUpstream pushes the token to the backend and marks the record synced on
// acknowledgement. Failures are logged and left for the next Initialize.
func (m *Manager) syncUpstream(ctx context.Context, tok string) {
	if m.upstream == nil {
		return
	}

	syncCtx, cancel := context.WithTimeout(ctx, m.cfg.RefreshTimeout)
	defer cancel()

	if err := m.upstream.SyncToken(syncCtx, tok); err != nil {
		m.metrics.IncTokenEvent("sync_failed")
		logCtx := m.logg.WithField(ctx, "error", err.Error())
		m.logg.Warn(logCtx, "upstream token sync failed, will retry on next start")
		return
	}

	if err := m.repo.MarkSynced(ctx); err != nil {
		m.metrics.IncTokenEvent("sync_failed")
		m.logg.Error(ctx, "marking push token synced failed", err)
		return
	}
	m.metrics.IncTokenEvent("sync_ok")
}

func (m *Manager) setState(state enums.TokenState) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func(ctx context.Context) (string, error)

func (f SourceFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// SyncerFunc adapts a plain function to the UpstreamSyncer interface.
type SyncerFunc func(ctx context.Context, token string) error

func (f SyncerFunc) SyncToken(ctx context.Context, token string) error { return f(ctx, token) }
