package repository

import (
	"context"

	"github.com/halcyonlabs/idcore/internal/domain"
)

// IdentityRepository define operaciones sobre el agregado Identity.
type IdentityRepository interface {
	// Create persiste una identidad nueva. Retorna ErrConflict si el id o el
	// username ya existen.
	Create(ctx context.Context, identity *domain.Identity) error

	// Get busca por id. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, id string) (*domain.Identity, error)

	// GetByUsername busca por username normalizado.
	GetByUsername(ctx context.Context, username string) (*domain.Identity, error)

	// GetByDID busca por decentralized identifier.
	GetByDID(ctx context.Context, did string) (*domain.Identity, error)

	// GetByFederatedSubject busca por el sub del IdP externo.
	GetByFederatedSubject(ctx context.Context, subject string) (*domain.Identity, error)

	// GetByServiceID busca la cuenta de servicio.
	GetByServiceID(ctx context.Context, serviceID string) (*domain.Identity, error)

	// Update persiste el estado completo del agregado.
	Update(ctx context.Context, identity *domain.Identity) error

	// ListProvisioningFailed retorna identidades con provisioning fallido,
	// para el retry sweep out-of-band.
	ListProvisioningFailed(ctx context.Context, limit int) ([]*domain.Identity, error)
}
