package rbac

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/halcyonlabs/idcore/internal/domain"
	"github.com/halcyonlabs/idcore/internal/domain/repository"
	"github.com/halcyonlabs/idcore/internal/observability/logger"
	"github.com/halcyonlabs/idcore/internal/validation"
)

// Admin administra el catálogo RBAC: CRUD de permisos y roles más las
// asignaciones a identidades. Borrar una entidad en uso se rechaza con
// ErrAssignmentInUse; las asignaciones se manejan con grant idempotente y
// revoke estricto.
type Admin struct {
	repo repository.RBACRepository
	now  func() time.Time
}

// NewAdmin crea el servicio administrativo.
func NewAdmin(repo repository.RBACRepository) *Admin {
	return &Admin{repo: repo, now: time.Now}
}

// ─── Permissions ───

// CreatePermission da de alta un permiso activo. El nombre se normaliza a
// minúsculas; la resolución posterior es case-insensitive.
func (a *Admin) CreatePermission(ctx context.Context, name, description string) (*domain.Permission, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !validation.ValidName(name) {
		return nil, domain.ErrInvalidName
	}
	now := a.now().UTC()
	p := &domain.Permission{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Status:      domain.StatusActive,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.repo.CreatePermission(ctx, p); err != nil {
		if repository.IsConflict(err) {
			return nil, domain.ErrPermissionExists
		}
		return nil, err
	}
	logger.From(ctx).Info("permiso creado",
		logger.Layer("service"),
		logger.Component("rbac"),
		logger.Permission(name),
	)
	return p, nil
}

// GetPermission busca un permiso por id.
func (a *Admin) GetPermission(ctx context.Context, id string) (*domain.Permission, error) {
	p, err := a.repo.GetPermission(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.ErrPermissionNotFound
		}
		return nil, err
	}
	return p, nil
}

// UpdatePermission actualiza descripción y estado, subiendo la versión.
func (a *Admin) UpdatePermission(ctx context.Context, id, description string, status domain.EntityStatus) (*domain.Permission, error) {
	p, err := a.GetPermission(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Description = description
	p.Status = status
	p.Version++
	p.UpdatedAt = a.now().UTC()
	if err := a.repo.UpdatePermission(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeletePermission borra un permiso sin asignaciones ni referencias desde
// roles; si está en uso retorna ErrAssignmentInUse.
func (a *Admin) DeletePermission(ctx context.Context, id string) error {
	if _, err := a.GetPermission(ctx, id); err != nil {
		return err
	}
	n, err := a.repo.CountPermissionAssignments(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return domain.ErrAssignmentInUse
	}
	return a.repo.DeletePermission(ctx, id)
}

// ListPermissions lista el catálogo completo.
func (a *Admin) ListPermissions(ctx context.Context) ([]*domain.Permission, error) {
	return a.repo.ListPermissions(ctx)
}

// ─── Roles ───

// CreateRole da de alta un rol activo. Todos los permissionIDs deben existir.
func (a *Admin) CreateRole(ctx context.Context, name, description string, permissionIDs []string) (*domain.Role, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !validation.ValidName(name) {
		return nil, domain.ErrInvalidName
	}
	for _, pid := range permissionIDs {
		if _, err := a.GetPermission(ctx, pid); err != nil {
			return nil, err
		}
	}
	now := a.now().UTC()
	r := &domain.Role{
		ID:            uuid.NewString(),
		Name:          name,
		Description:   description,
		Status:        domain.StatusActive,
		Version:       1,
		PermissionIDs: permissionIDs,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := a.repo.CreateRole(ctx, r); err != nil {
		if repository.IsConflict(err) {
			return nil, domain.ErrRoleExists
		}
		return nil, err
	}
	logger.From(ctx).Info("rol creado",
		logger.Layer("service"),
		logger.Component("rbac"),
		logger.Role(name),
		logger.Count(len(permissionIDs)),
	)
	return r, nil
}

// GetRole busca un rol por id.
func (a *Admin) GetRole(ctx context.Context, id string) (*domain.Role, error) {
	r, err := a.repo.GetRole(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.ErrRoleNotFound
		}
		return nil, err
	}
	return r, nil
}

// UpdateRole reemplaza descripción, estado y set de permisos del rol.
func (a *Admin) UpdateRole(ctx context.Context, id, description string, status domain.EntityStatus, permissionIDs []string) (*domain.Role, error) {
	r, err := a.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, pid := range permissionIDs {
		if _, err := a.GetPermission(ctx, pid); err != nil {
			return nil, err
		}
	}
	r.Description = description
	r.Status = status
	r.PermissionIDs = permissionIDs
	r.Version++
	r.UpdatedAt = a.now().UTC()
	if err := a.repo.UpdateRole(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// DeleteRole borra un rol sin identidades asignadas.
func (a *Admin) DeleteRole(ctx context.Context, id string) error {
	if _, err := a.GetRole(ctx, id); err != nil {
		return err
	}
	n, err := a.repo.CountRoleAssignments(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return domain.ErrAssignmentInUse
	}
	return a.repo.DeleteRole(ctx, id)
}

// ListRoles lista el catálogo completo.
func (a *Admin) ListRoles(ctx context.Context) ([]*domain.Role, error) {
	return a.repo.ListRoles(ctx)
}

// ─── Asignaciones ───

// GrantPermission asigna un permiso directo a una identidad. Idempotente.
func (a *Admin) GrantPermission(ctx context.Context, identityID, permissionID string) error {
	if _, err := a.GetPermission(ctx, permissionID); err != nil {
		return err
	}
	return a.repo.GrantPermission(ctx, identityID, permissionID)
}

// RevokePermission quita una asignación directa; si no existe retorna
// ErrAssignmentNotFound.
func (a *Admin) RevokePermission(ctx context.Context, identityID, permissionID string) error {
	if err := a.repo.RevokePermission(ctx, identityID, permissionID); err != nil {
		if repository.IsNotFound(err) {
			return domain.ErrAssignmentNotFound
		}
		return err
	}
	return nil
}

// GrantRole asigna un rol a una identidad. Idempotente.
func (a *Admin) GrantRole(ctx context.Context, identityID, roleID string) error {
	if _, err := a.GetRole(ctx, roleID); err != nil {
		return err
	}
	return a.repo.GrantRole(ctx, identityID, roleID)
}

// RevokeRole quita una asignación de rol; si no existe retorna
// ErrAssignmentNotFound.
func (a *Admin) RevokeRole(ctx context.Context, identityID, roleID string) error {
	if err := a.repo.RevokeRole(ctx, identityID, roleID); err != nil {
		if repository.IsNotFound(err) {
			return domain.ErrAssignmentNotFound
		}
		return err
	}
	return nil
}
