package rbac

import (
	"context"
	"sort"
	"strings"

	"github.com/halcyonlabs/idcore/internal/domain"
	"github.com/halcyonlabs/idcore/internal/domain/repository"
	"github.com/halcyonlabs/idcore/internal/observability/logger"
)

// Resolver calcula el set efectivo de permisos de una identidad: la unión de
// sus asignaciones directas y de los permisos de sus roles activos, sin
// duplicados. Los permisos y roles inactivos no aportan.
type Resolver struct {
	repo repository.RBACRepository
}

// NewResolver crea el resolver.
func NewResolver(repo repository.RBACRepository) *Resolver {
	return &Resolver{repo: repo}
}

// GetIdentityPermissions retorna el set efectivo, ordenado por nombre para
// que la salida sea estable.
func (r *Resolver) GetIdentityPermissions(ctx context.Context, identityID string) ([]*domain.Permission, error) {
	seen := make(map[string]*domain.Permission)

	direct, err := r.repo.ListIdentityPermissions(ctx, identityID)
	if err != nil {
		return nil, err
	}
	for _, ip := range direct {
		if err := r.collect(ctx, ip.PermissionID, seen); err != nil {
			return nil, err
		}
	}

	roles, err := r.repo.ListIdentityRoles(ctx, identityID)
	if err != nil {
		return nil, err
	}
	for _, ir := range roles {
		role, err := r.repo.GetRole(ctx, ir.RoleID)
		if err != nil {
			if repository.IsNotFound(err) {
				// Asignación huérfana: el rol fue borrado por fuera.
				continue
			}
			return nil, err
		}
		if !role.IsActive() {
			continue
		}
		for _, pid := range role.PermissionIDs {
			if err := r.collect(ctx, pid, seen); err != nil {
				return nil, err
			}
		}
	}

	out := make([]*domain.Permission, 0, len(seen))
	for _, p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	logger.From(ctx).Debug("permisos resueltos",
		logger.Layer("service"),
		logger.Component("rbac"),
		logger.IdentityID(identityID),
		logger.Count(len(out)),
	)
	return out, nil
}

// HasPermission indica si el set efectivo contiene un permiso activo con el
// nombre dado. La comparación de nombres no distingue mayúsculas.
func (r *Resolver) HasPermission(ctx context.Context, identityID, permissionName string) (bool, error) {
	perms, err := r.GetIdentityPermissions(ctx, identityID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if strings.EqualFold(p.Name, permissionName) {
			return true, nil
		}
	}
	return false, nil
}

// GetIdentityRoles retorna los roles asignados a la identidad, activos o no.
func (r *Resolver) GetIdentityRoles(ctx context.Context, identityID string) ([]*domain.Role, error) {
	assignments, err := r.repo.ListIdentityRoles(ctx, identityID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Role, 0, len(assignments))
	for _, ir := range assignments {
		role, err := r.repo.GetRole(ctx, ir.RoleID)
		if err != nil {
			if repository.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// collect suma el permiso al set si existe y está activo.
func (r *Resolver) collect(ctx context.Context, permissionID string, seen map[string]*domain.Permission) error {
	if _, ok := seen[permissionID]; ok {
		return nil
	}
	p, err := r.repo.GetPermission(ctx, permissionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return err
	}
	if !p.IsActive() {
		return nil
	}
	seen[permissionID] = p
	return nil
}
