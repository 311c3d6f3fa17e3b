package repository

import (
	"context"

	"github.com/halcyonlabs/idcore/internal/domain"
)

// MFARepository define operaciones sobre configuraciones MFA.
// Hay a lo sumo una configuración por (identity, method).
type MFARepository interface {
	// Create persiste una configuración nueva. Retorna ErrConflict si ya
	// existe una para ese (identity, method).
	Create(ctx context.Context, cfg *domain.MFAConfiguration) error

	// GetByIdentityAndMethod busca la configuración de un método.
	GetByIdentityAndMethod(ctx context.Context, identityID string, method domain.MFAMethod) (*domain.MFAConfiguration, error)

	// ListByIdentity retorna todas las configuraciones de una identidad.
	ListByIdentity(ctx context.Context, identityID string) ([]*domain.MFAConfiguration, error)

	// Update persiste el estado de la configuración.
	Update(ctx context.Context, cfg *domain.MFAConfiguration) error

	// Delete elimina la configuración de un método.
	Delete(ctx context.Context, identityID string, method domain.MFAMethod) error
}
