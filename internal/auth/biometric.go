package auth

import (
	"context"
	"time"

	"github.com/halcyonlabs/idcore/internal/domain"
	"github.com/halcyonlabs/idcore/internal/domain/repository"
)

// biometricStrategy delega la comparación al agregado Identity: la muestra ya
// viene capturada y extraída por el microservicio biométrico externo.
type biometricStrategy struct {
	identities repository.IdentityRepository
	threshold  float64
	sessionTTL time.Duration
	now        func() time.Time
}

func (s *biometricStrategy) authenticate(ctx context.Context, cred Credential) (*domain.Identity, time.Duration, error) {
	c, ok := cred.(BiometricCredential)
	if !ok {
		return nil, 0, domain.ErrInvalidCredentials
	}
	if c.IdentityID == "" || c.Sample == nil {
		return nil, 0, domain.ErrInvalidCredentials
	}

	ident, err := s.identities.Get(ctx, c.IdentityID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, 0, domain.ErrInvalidCredentials
		}
		return nil, 0, err
	}

	if _, err := ident.VerifyBiometric(c.Sample, s.threshold, s.now().UTC()); err != nil {
		return nil, 0, err
	}
	// La verificación puede promover la identidad a Verified; se persiste en
	// la cola de emisión junto con el resto del agregado.
	return ident, s.sessionTTL, nil
}
