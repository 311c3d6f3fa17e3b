package memory

import (
	"context"
	"sync"

	"github.com/halcyonlabs/idcore/internal/domain"
	"github.com/halcyonlabs/idcore/internal/domain/repository"
)

// RBACRepo es el repositorio RBAC en memoria.
type RBACRepo struct {
	mu          sync.RWMutex
	permissions map[string]*domain.Permission
	roles       map[string]*domain.Role

	identityPerms map[string][]*domain.IdentityPermission // por identityID
	identityRoles map[string][]*domain.IdentityRole       // por identityID
}

// NewRBACRepo crea el repositorio vacío.
func NewRBACRepo() *RBACRepo {
	return &RBACRepo{
		permissions:   make(map[string]*domain.Permission),
		roles:         make(map[string]*domain.Role),
		identityPerms: make(map[string][]*domain.IdentityPermission),
		identityRoles: make(map[string][]*domain.IdentityRole),
	}
}

// ─── Permissions ───

func (r *RBACRepo) CreatePermission(ctx context.Context, p *domain.Permission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.permissions[p.ID]; ok {
		return repository.ErrConflict
	}
	for _, other := range r.permissions {
		if other.Name == p.Name {
			return repository.ErrConflict
		}
	}
	cp := *p
	r.permissions[p.ID] = &cp
	return nil
}

func (r *RBACRepo) GetPermission(ctx context.Context, id string) (*domain.Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.permissions[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (r *RBACRepo) GetPermissionByName(ctx context.Context, name string) (*domain.Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.permissions {
		if p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *RBACRepo) UpdatePermission(ctx context.Context, p *domain.Permission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.permissions[p.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *p
	r.permissions[p.ID] = &cp
	return nil
}

func (r *RBACRepo) DeletePermission(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.permissions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.permissions, id)
	return nil
}

func (r *RBACRepo) ListPermissions(ctx context.Context) ([]*domain.Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Permission, 0, len(r.permissions))
	for _, p := range r.permissions {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// ─── Roles ───

func (r *RBACRepo) CreateRole(ctx context.Context, role *domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[role.ID]; ok {
		return repository.ErrConflict
	}
	for _, other := range r.roles {
		if other.Name == role.Name {
			return repository.ErrConflict
		}
	}
	r.roles[role.ID] = cloneRole(role)
	return nil
}

func (r *RBACRepo) GetRole(ctx context.Context, id string) (*domain.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if role, ok := r.roles[id]; ok {
		return cloneRole(role), nil
	}
	return nil, repository.ErrNotFound
}

func (r *RBACRepo) GetRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, role := range r.roles {
		if role.Name == name {
			return cloneRole(role), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *RBACRepo) UpdateRole(ctx context.Context, role *domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[role.ID]; !ok {
		return repository.ErrNotFound
	}
	r.roles[role.ID] = cloneRole(role)
	return nil
}

func (r *RBACRepo) DeleteRole(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.roles, id)
	return nil
}

func (r *RBACRepo) ListRoles(ctx context.Context) ([]*domain.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Role, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, cloneRole(role))
	}
	return out, nil
}

// ─── Asignaciones ───

func (r *RBACRepo) GrantPermission(ctx context.Context, identityID, permissionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ip := range r.identityPerms[identityID] {
		if ip.PermissionID == permissionID {
			return nil // idempotente
		}
	}
	r.identityPerms[identityID] = append(r.identityPerms[identityID], &domain.IdentityPermission{
		IdentityID:   identityID,
		PermissionID: permissionID,
	})
	return nil
}

func (r *RBACRepo) RevokePermission(ctx context.Context, identityID, permissionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.identityPerms[identityID]
	for idx, ip := range list {
		if ip.PermissionID == permissionID {
			r.identityPerms[identityID] = append(list[:idx], list[idx+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *RBACRepo) ListIdentityPermissions(ctx context.Context, identityID string) ([]*domain.IdentityPermission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.identityPerms[identityID]
	out := make([]*domain.IdentityPermission, 0, len(list))
	for _, ip := range list {
		cp := *ip
		out = append(out, &cp)
	}
	return out, nil
}

func (r *RBACRepo) GrantRole(ctx context.Context, identityID, roleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ir := range r.identityRoles[identityID] {
		if ir.RoleID == roleID {
			return nil // idempotente
		}
	}
	r.identityRoles[identityID] = append(r.identityRoles[identityID], &domain.IdentityRole{
		IdentityID: identityID,
		RoleID:     roleID,
	})
	return nil
}

func (r *RBACRepo) RevokeRole(ctx context.Context, identityID, roleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.identityRoles[identityID]
	for idx, ir := range list {
		if ir.RoleID == roleID {
			r.identityRoles[identityID] = append(list[:idx], list[idx+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *RBACRepo) ListIdentityRoles(ctx context.Context, identityID string) ([]*domain.IdentityRole, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.identityRoles[identityID]
	out := make([]*domain.IdentityRole, 0, len(list))
	for _, ir := range list {
		cp := *ir
		out = append(out, &cp)
	}
	return out, nil
}

func (r *RBACRepo) CountPermissionAssignments(ctx context.Context, permissionID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, list := range r.identityPerms {
		for _, ip := range list {
			if ip.PermissionID == permissionID {
				n++
			}
		}
	}
	for _, role := range r.roles {
		for _, pid := range role.PermissionIDs {
			if pid == permissionID {
				n++
			}
		}
	}
	return n, nil
}

func (r *RBACRepo) CountRoleAssignments(ctx context.Context, roleID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, list := range r.identityRoles {
		for _, ir := range list {
			if ir.RoleID == roleID {
				n++
			}
		}
	}
	return n, nil
}

func cloneRole(role *domain.Role) *domain.Role {
	cp := *role
	cp.PermissionIDs = append([]string(nil), role.PermissionIDs...)
	return &cp
}
