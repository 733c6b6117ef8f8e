package backend

import (
	"context"

	"github.com/casafindr/casafindr-sync/internal/identity"
	pkgerrors "github.com/casafindr/casafindr-sync/pkg/errors"
)

// TokenSyncer joins the backend client with the identity provider so the
// push-token manager can stay ignorant of both. Registration without a
// signed-in user is an unauthorized error, which the manager treats as a
// deferred sync rather than a failure of the rotation itself.
type TokenSyncer struct {
	client   *Client
	identity identity.Provider
	deviceID string
}

// NewTokenSyncer builds the upstream syncer for this install.
func NewTokenSyncer(client *Client, provider identity.Provider, deviceID string) (*TokenSyncer, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "backend client required")
	}
	if provider == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "identity provider required")
	}
	if deviceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "device ID required")
	}
	return &TokenSyncer{client: client, identity: provider, deviceID: deviceID}, nil
}

// SyncToken registers the token for the currently signed-in user.
func (s *TokenSyncer) SyncToken(ctx context.Context, token string) error {
	userID, err := s.identity.UserID(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstreamSync, err, "resolve user identity")
	}
	return s.client.RegisterToken(ctx, RegisterTokenRequest{
		UserID:   userID,
		DeviceID: s.deviceID,
		Token:    token,
	})
}
