package auth

import (
	"context"

	"go.uber.org/zap"

	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/domain"
)

// IdentityProvider reports the caller as of the moment it is asked.
// Implementations must not cache an answer across calls.
type IdentityProvider interface {
	CurrentIdentity(ctx context.Context) (*domain.Identity, bool)
}

type bearerTokenKey struct{}

func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerTokenKey{}, token)
}

func BearerTokenFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(bearerTokenKey{}).(string)
	return token, ok && token != ""
}

// JWTIdentityProvider re-verifies the session token carried on the context
// every time it is asked, so a session that expired mid-edit is rejected.
type JWTIdentityProvider struct {
	verifier *TokenVerifier
	log      *zap.Logger
}

func NewJWTIdentityProvider(verifier *TokenVerifier, log *zap.Logger) *JWTIdentityProvider {
	return &JWTIdentityProvider{verifier: verifier, log: log}
}

func (p *JWTIdentityProvider) CurrentIdentity(ctx context.Context) (*domain.Identity, bool) {
	token, ok := BearerTokenFrom(ctx)
	if !ok {
		return nil, false
	}
	identity, err := p.verifier.Verify(token)
	if err != nil {
		p.log.Debug("session token rejected", zap.Error(err))
		return nil, false
	}
	return identity, true
}

// IdentityProviderFunc adapts a function to IdentityProvider.
type IdentityProviderFunc func(ctx context.Context) (*domain.Identity, bool)

func (f IdentityProviderFunc) CurrentIdentity(ctx context.Context) (*domain.Identity, bool) {
	return f(ctx)
}
