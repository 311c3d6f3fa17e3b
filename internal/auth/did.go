package auth

import (
	"context"
	"time"

	"github.com/halcyonlabs/idcore/internal/domain"
	"github.com/halcyonlabs/idcore/internal/domain/repository"
)

// didStrategy resuelve la identidad por su decentralized identifier. Solo
// identidades Verified pueden entrar por DID; la sesión resultante es más
// larga que la de password (24h por defecto).
type didStrategy struct {
	identities repository.IdentityRepository
	sessionTTL time.Duration
}

func (s *didStrategy) authenticate(ctx context.Context, cred Credential) (*domain.Identity, time.Duration, error) {
	c, ok := cred.(DIDCredential)
	if !ok {
		return nil, 0, domain.ErrInvalidCredentials
	}
	if c.DID == "" {
		return nil, 0, domain.ErrInvalidCredentials
	}

	ident, err := s.identities.GetByDID(ctx, c.DID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, 0, domain.ErrInvalidCredentials
		}
		return nil, 0, err
	}
	if ident.Status != domain.IdentityVerified {
		return nil, 0, domain.ErrIdentityNotActive
	}
	return ident, s.sessionTTL, nil
}
