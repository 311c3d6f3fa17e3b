package repository

import (
	"context"

	"github.com/halcyonlabs/idcore/internal/domain"
)

// RBACRepository define operaciones sobre roles, permisos y asignaciones.
type RBACRepository interface {
	// ─── Permissions ───

	CreatePermission(ctx context.Context, p *domain.Permission) error
	GetPermission(ctx context.Context, id string) (*domain.Permission, error)
	GetPermissionByName(ctx context.Context, name string) (*domain.Permission, error)
	UpdatePermission(ctx context.Context, p *domain.Permission) error
	DeletePermission(ctx context.Context, id string) error
	ListPermissions(ctx context.Context) ([]*domain.Permission, error)

	// ─── Roles ───

	CreateRole(ctx context.Context, r *domain.Role) error
	GetRole(ctx context.Context, id string) (*domain.Role, error)
	GetRoleByName(ctx context.Context, name string) (*domain.Role, error)
	UpdateRole(ctx context.Context, r *domain.Role) error
	DeleteRole(ctx context.Context, id string) error
	ListRoles(ctx context.Context) ([]*domain.Role, error)

	// ─── Asignaciones ───

	// GrantPermission asigna un permiso directo. Idempotente: re-asignar es no-op.
	GrantPermission(ctx context.Context, identityID, permissionID string) error

	// RevokePermission quita un permiso directo. Retorna ErrNotFound si la
	// asignación no existe.
	RevokePermission(ctx context.Context, identityID, permissionID string) error

	// ListIdentityPermissions retorna las asignaciones directas de una identidad.
	ListIdentityPermissions(ctx context.Context, identityID string) ([]*domain.IdentityPermission, error)

	// GrantRole asigna un rol. Idempotente.
	GrantRole(ctx context.Context, identityID, roleID string) error

	// RevokeRole quita un rol. Retorna ErrNotFound si la asignación no existe.
	RevokeRole(ctx context.Context, identityID, roleID string) error

	// ListIdentityRoles retorna los roles asignados a una identidad.
	ListIdentityRoles(ctx context.Context, identityID string) ([]*domain.IdentityRole, error)

	// CountPermissionAssignments cuenta asignaciones directas de un permiso
	// más referencias desde roles (para bloquear borrados en uso).
	CountPermissionAssignments(ctx context.Context, permissionID string) (int, error)

	// CountRoleAssignments cuenta identidades con el rol asignado.
	CountRoleAssignments(ctx context.Context, roleID string) (int, error)
}
