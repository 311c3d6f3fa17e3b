package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/halcyonlabs/idcore/internal/domain"
	"github.com/halcyonlabs/idcore/internal/domain/repository"
	"github.com/halcyonlabs/idcore/internal/observability/logger"
	"github.com/halcyonlabs/idcore/internal/security/token"
)

// Deps son las dependencias del manager de sesiones.
type Deps struct {
	Sessions     repository.SessionRepository
	RefreshBytes int
	Now          func() time.Time
}

// Manager administra el ciclo de vida de las sesiones: emisión del refresh
// token opaco, validación, rotación atómica y revocación. El refresh crudo
// se entrega una sola vez; la base solo guarda su hash.
type Manager struct {
	sessions     repository.SessionRepository
	refreshBytes int
	now          func() time.Time
}

// NewManager crea el manager.
func NewManager(d Deps) *Manager {
	if d.RefreshBytes <= 0 {
		d.RefreshBytes = 48
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Manager{sessions: d.Sessions, refreshBytes: d.RefreshBytes, now: d.Now}
}

// CreateInput describe la sesión a crear.
type CreateInput struct {
	IdentityID  string
	AccessToken string
	ExpiresAt   time.Time
	IP          string
	UserAgent   string
}

// Create persiste una sesión nueva y retorna el refresh token crudo, que no
// vuelve a estar disponible después de esta llamada.
func (m *Manager) Create(ctx context.Context, in CreateInput) (*domain.Session, string, error) {
	refresh, err := tokens.GenerateOpaqueToken(m.refreshBytes)
	if err != nil {
		return nil, "", err
	}

	now := m.now().UTC()
	s := &domain.Session{
		ID:               uuid.NewString(),
		IdentityID:       in.IdentityID,
		AccessToken:      in.AccessToken,
		RefreshTokenHash: tokens.SHA256Base64URL(refresh),
		ExpiresAt:        in.ExpiresAt,
		IP:               in.IP,
		UserAgent:        in.UserAgent,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := m.sessions.Create(ctx, s); err != nil {
		return nil, "", err
	}

	logger.From(ctx).Debug("sesión creada",
		logger.Layer("service"),
		logger.Component("session"),
		logger.SessionID(s.ID),
		logger.IdentityID(s.IdentityID),
	)
	return s, refresh, nil
}

// Validate retorna la sesión si existe, no está revocada y no expiró.
// Get retorna la sesión por id aunque esté vencida o revocada. Para el
// chequeo de vigencia usar Validate.
func (m *Manager) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	s, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.ErrInvalidOrExpiredToken
		}
		return nil, err
	}
	return s, nil
}

func (m *Manager) Validate(ctx context.Context, sessionID string) (*domain.Session, error) {
	s, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.ErrInvalidOrExpiredToken
		}
		return nil, err
	}
	if !s.IsValid(m.now().UTC()) {
		return nil, domain.ErrInvalidOrExpiredToken
	}
	return s, nil
}

// GetByRefreshToken resuelve la sesión viva asociada a un refresh token
// crudo. Sesión desconocida, revocada o vencida: ErrInvalidOrExpiredToken.
func (m *Manager) GetByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error) {
	s, err := m.sessions.GetByRefreshHash(ctx, tokens.SHA256Base64URL(refreshToken))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.ErrInvalidOrExpiredToken
		}
		return nil, err
	}
	if !s.IsValid(m.now().UTC()) {
		return nil, domain.ErrInvalidOrExpiredToken
	}
	return s, nil
}

// Rotate canjea un refresh token por una sesión rotada. El id de sesión y la
// identidad se preservan; ambos tokens cambian. La escritura es compare-and-
// swap sobre el hash vigente: si dos clientes presentan el mismo refresh en
// paralelo, exactamente uno gana y el otro recibe ErrInvalidOrExpiredToken.
func (m *Manager) Rotate(ctx context.Context, refreshToken, newAccessToken string, expiresAt time.Time) (*domain.Session, string, error) {
	oldHash := tokens.SHA256Base64URL(refreshToken)
	s, err := m.sessions.GetByRefreshHash(ctx, oldHash)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, "", domain.ErrInvalidOrExpiredToken
		}
		return nil, "", err
	}
	if !s.IsValid(m.now().UTC()) {
		return nil, "", domain.ErrInvalidOrExpiredToken
	}

	newRefresh, err := tokens.GenerateOpaqueToken(m.refreshBytes)
	if err != nil {
		return nil, "", err
	}

	rotated := *s
	rotated.Rotate(newAccessToken, tokens.SHA256Base64URL(newRefresh), expiresAt, m.now().UTC())

	if err := m.sessions.Rotate(ctx, s.ID, oldHash, &rotated); err != nil {
		if errors.Is(err, repository.ErrConflict) || repository.IsNotFound(err) {
			// Otro rotador canjeó este refresh primero.
			return nil, "", domain.ErrInvalidOrExpiredToken
		}
		return nil, "", err
	}

	logger.From(ctx).Debug("sesión rotada",
		logger.Layer("service"),
		logger.Component("session"),
		logger.SessionID(rotated.ID),
	)
	return &rotated, newRefresh, nil
}

// Revoke marca la sesión como revocada. Es idempotente: revocar una sesión
// ya revocada o inexistente no es un error.
func (m *Manager) Revoke(ctx context.Context, sessionID string) error {
	s, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return err
	}
	if s.Revoked {
		return nil
	}
	s.Revoke(m.now().UTC())
	return m.sessions.Update(ctx, s)
}

// RevokeAll revoca todas las sesiones vivas de una identidad y retorna
// cuántas tocó.
func (m *Manager) RevokeAll(ctx context.Context, identityID string) (int, error) {
	list, err := m.sessions.ListByIdentity(ctx, identityID)
	if err != nil {
		return 0, err
	}
	revoked := 0
	now := m.now().UTC()
	for _, s := range list {
		if s.Revoked {
			continue
		}
		s.Revoke(now)
		if err := m.sessions.Update(ctx, s); err != nil {
			return revoked, err
		}
		revoked++
	}
	return revoked, nil
}

// ListByIdentity retorna las sesiones de una identidad.
func (m *Manager) ListByIdentity(ctx context.Context, identityID string) ([]*domain.Session, error) {
	return m.sessions.ListByIdentity(ctx, identityID)
}
