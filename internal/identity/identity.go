package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/casafindr/casafindr-sync/pkg/config"
	pkgerrors "github.com/casafindr/casafindr-sync/pkg/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// AccessTokenClaims is the typed shape of the backend-issued access token.
// Only the user id matters here; everything else stays with the backend.
type AccessTokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}

// Provider supplies the signed-in user id for push-token registration.
type Provider interface {
	// UserID returns the current user id, or an unauthorized error when no
	// identity is available yet.
	UserID(ctx context.Context) (string, error)
}

// ClaimsProvider derives the user id from the most recent backend-issued
// access token. The auth subsystem hands tokens in as the session changes;
// no token means no identity, which defers upstream token sync.
type ClaimsProvider struct {
	cfg config.JWTConfig

	mu          sync.RWMutex
	accessToken string
}

// NewClaimsProvider builds an empty provider; identity arrives via SetAccessToken.
func NewClaimsProvider(cfg config.JWTConfig) *ClaimsProvider {
	return &ClaimsProvider{cfg: cfg}
}

// SetAccessToken replaces the current access token. An empty token clears the
// identity, as on sign-out.
func (p *ClaimsProvider) SetAccessToken(token string) {
	p.mu.Lock()
	p.accessToken = strings.TrimSpace(token)
	p.mu.Unlock()
}

func (p *ClaimsProvider) UserID(_ context.Context) (string, error) {
	p.mu.RLock()
	token := p.accessToken
	p.mu.RUnlock()

	if token == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "no identity available")
	}

	claims, err := ParseAccessToken(p.cfg, token)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "parse access token")
	}
	if claims.UserID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "access token carries no user id")
	}
	return claims.UserID.String(), nil
}

// ParseAccessToken validates the JWT string and returns typed claims.
func ParseAccessToken(cfg config.JWTConfig, tokenString string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "jwt secret is required")
	}

	claims := &AccessTokenClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "unexpected signing method")
			}
			return []byte(cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
