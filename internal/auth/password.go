package auth

import (
	"context"
	"time"

	"github.com/halcyonlabs/idcore/internal/domain"
	"github.com/halcyonlabs/idcore/internal/domain/repository"
	"github.com/halcyonlabs/idcore/internal/observability/logger"
	"github.com/halcyonlabs/idcore/internal/security/password"
)

// passwordStrategy valida username + password contra el hash persistido.
//
// Orden de chequeos (mismo que el sistema original): primero el password —
// un mismatch incrementa el contador de fallos y retorna ErrInvalidCredentials
// sin revelar si el lockout estaba activo — y recién después el lockout, de
// modo que un password correcto nunca saltea un lockout vigente.
type passwordStrategy struct {
	identities repository.IdentityRepository
	policy     password.Policy
	locks      *keyedMutex

	lockoutThreshold int
	lockoutDuration  time.Duration
	sessionTTL       time.Duration
	now              func() time.Time
}

func (s *passwordStrategy) authenticate(ctx context.Context, cred Credential) (*domain.Identity, time.Duration, error) {
	c, ok := cred.(PasswordCredential)
	if !ok {
		return nil, 0, domain.ErrInvalidCredentials
	}
	if c.Username == "" || c.Password == "" {
		return nil, 0, domain.ErrInvalidCredentials
	}

	username := domain.NormalizeUsername(c.Username)

	// El read-modify-write del contador de fallos se serializa por identidad
	// para que dos intentos concurrentes no se pisen el incremento.
	unlock := s.locks.Lock("username:" + username)
	defer unlock()

	ident, err := s.identities.GetByUsername(ctx, username)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, 0, domain.ErrInvalidCredentials
		}
		return nil, 0, err
	}

	if !s.policy.Verify(c.Password, ident.PasswordHash) {
		now := s.now().UTC()
		ident.RecordFailedLogin(now, s.lockoutThreshold, s.lockoutDuration)
		if err := s.identities.Update(ctx, ident); err != nil {
			logger.From(ctx).Warn("no se pudo persistir el intento fallido",
				logger.Component("auth"),
				logger.IdentityID(ident.ID),
				logger.Err(err),
			)
		}
		return nil, 0, domain.ErrInvalidCredentials
	}

	if ident.IsLocked(s.now().UTC()) {
		return nil, 0, domain.ErrAccountLocked
	}
	return ident, s.sessionTTL, nil
}
