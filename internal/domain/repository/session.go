package repository

import (
	"context"

	"github.com/halcyonlabs/idcore/internal/domain"
)

// SessionRepository define operaciones sobre sesiones.
type SessionRepository interface {
	// Create persiste una sesión nueva.
	Create(ctx context.Context, session *domain.Session) error

	// Get busca por id de sesión.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// GetByRefreshHash busca por el hash del refresh token.
	GetByRefreshHash(ctx context.Context, refreshHash string) (*domain.Session, error)

	// Update persiste el estado de la sesión.
	Update(ctx context.Context, session *domain.Session) error

	// Rotate reemplaza tokens y expiración solo si el hash de refresh vigente
	// coincide con expectedRefreshHash (compare-and-swap). Retorna ErrConflict
	// si otro rotador ganó la carrera y ErrNotFound si la sesión no existe.
	Rotate(ctx context.Context, sessionID, expectedRefreshHash string, rotated *domain.Session) error

	// ListByIdentity retorna las sesiones de una identidad.
	ListByIdentity(ctx context.Context, identityID string) ([]*domain.Session, error)
}
