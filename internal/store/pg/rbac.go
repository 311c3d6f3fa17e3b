package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/halcyonlabs/idcore/internal/domain"
	"github.com/halcyonlabs/idcore/internal/domain/repository"
)

// RBACRepo implementa repository.RBACRepository sobre postgres.
type RBACRepo struct{ pool *pgxpool.Pool }

// ─── Permissions ───

func (r *RBACRepo) CreatePermission(ctx context.Context, p *domain.Permission) error {
	const q = `
INSERT INTO permissions (id, name, description, status, version, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.pool.Exec(ctx, q, p.ID, p.Name, p.Description, string(p.Status), p.Version, p.CreatedAt, p.UpdatedAt)
	if isUnique(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *RBACRepo) GetPermission(ctx context.Context, id string) (*domain.Permission, error) {
	const q = `SELECT id, name, description, status, version, created_at, updated_at FROM permissions WHERE id = $1`
	return scanPermission(r.pool.QueryRow(ctx, q, id))
}

func (r *RBACRepo) GetPermissionByName(ctx context.Context, name string) (*domain.Permission, error) {
	const q = `SELECT id, name, description, status, version, created_at, updated_at FROM permissions WHERE name = $1`
	return scanPermission(r.pool.QueryRow(ctx, q, name))
}

func (r *RBACRepo) UpdatePermission(ctx context.Context, p *domain.Permission) error {
	const q = `UPDATE permissions SET description=$2, status=$3, version=$4, updated_at=$5 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, p.ID, p.Description, string(p.Status), p.Version, p.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *RBACRepo) DeletePermission(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *RBACRepo) ListPermissions(ctx context.Context) ([]*domain.Permission, error) {
	const q = `SELECT id, name, description, status, version, created_at, updated_at FROM permissions ORDER BY name`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Permission
	for rows.Next() {
		var p domain.Permission
		var status string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &status, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Status = domain.EntityStatus(status)
		out = append(out, &p)
	}
	return out, rows.Err()
}

// ─── Roles ───

func (r *RBACRepo) CreateRole(ctx context.Context, role *domain.Role) error {
	const q = `
INSERT INTO roles (id, name, description, status, version, permission_ids, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.pool.Exec(ctx, q, role.ID, role.Name, role.Description, string(role.Status),
		role.Version, role.PermissionIDs, role.CreatedAt, role.UpdatedAt)
	if isUnique(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *RBACRepo) GetRole(ctx context.Context, id string) (*domain.Role, error) {
	const q = `SELECT id, name, description, status, version, permission_ids, created_at, updated_at FROM roles WHERE id = $1`
	return scanRole(r.pool.QueryRow(ctx, q, id))
}

func (r *RBACRepo) GetRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	const q = `SELECT id, name, description, status, version, permission_ids, created_at, updated_at FROM roles WHERE name = $1`
	return scanRole(r.pool.QueryRow(ctx, q, name))
}

func (r *RBACRepo) UpdateRole(ctx context.Context, role *domain.Role) error {
	const q = `UPDATE roles SET description=$2, status=$3, version=$4, permission_ids=$5, updated_at=$6 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, role.ID, role.Description, string(role.Status),
		role.Version, role.PermissionIDs, role.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *RBACRepo) DeleteRole(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *RBACRepo) ListRoles(ctx context.Context) ([]*domain.Role, error) {
	const q = `SELECT id, name, description, status, version, permission_ids, created_at, updated_at FROM roles ORDER BY name`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Role
	for rows.Next() {
		var role domain.Role
		var status string
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &status, &role.Version,
			&role.PermissionIDs, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		role.Status = domain.EntityStatus(status)
		out = append(out, &role)
	}
	return out, rows.Err()
}

// ─── Asignaciones ───

func (r *RBACRepo) GrantPermission(ctx context.Context, identityID, permissionID string) error {
	const q = `
INSERT INTO identity_permissions (identity_id, permission_id)
VALUES ($1, $2)
ON CONFLICT (identity_id, permission_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, identityID, permissionID)
	return err
}

func (r *RBACRepo) RevokePermission(ctx context.Context, identityID, permissionID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM identity_permissions WHERE identity_id = $1 AND permission_id = $2`,
		identityID, permissionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *RBACRepo) ListIdentityPermissions(ctx context.Context, identityID string) ([]*domain.IdentityPermission, error) {
	const q = `SELECT identity_id, permission_id, granted_at FROM identity_permissions WHERE identity_id = $1`
	rows, err := r.pool.Query(ctx, q, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.IdentityPermission
	for rows.Next() {
		var ip domain.IdentityPermission
		if err := rows.Scan(&ip.IdentityID, &ip.PermissionID, &ip.GrantedAt); err != nil {
			return nil, err
		}
		out = append(out, &ip)
	}
	return out, rows.Err()
}

func (r *RBACRepo) GrantRole(ctx context.Context, identityID, roleID string) error {
	const q = `
INSERT INTO identity_roles (identity_id, role_id)
VALUES ($1, $2)
ON CONFLICT (identity_id, role_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, identityID, roleID)
	return err
}

func (r *RBACRepo) RevokeRole(ctx context.Context, identityID, roleID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM identity_roles WHERE identity_id = $1 AND role_id = $2`,
		identityID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *RBACRepo) ListIdentityRoles(ctx context.Context, identityID string) ([]*domain.IdentityRole, error) {
	const q = `SELECT identity_id, role_id, granted_at FROM identity_roles WHERE identity_id = $1`
	rows, err := r.pool.Query(ctx, q, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.IdentityRole
	for rows.Next() {
		var ir domain.IdentityRole
		if err := rows.Scan(&ir.IdentityID, &ir.RoleID, &ir.GrantedAt); err != nil {
			return nil, err
		}
		out = append(out, &ir)
	}
	return out, rows.Err()
}

func (r *RBACRepo) CountPermissionAssignments(ctx context.Context, permissionID string) (int, error) {
	const q = `
SELECT (SELECT COUNT(*) FROM identity_permissions WHERE permission_id = $1)
     + (SELECT COUNT(*) FROM roles WHERE $1::uuid = ANY(permission_ids))`
	var n int
	if err := r.pool.QueryRow(ctx, q, permissionID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *RBACRepo) CountRoleAssignments(ctx context.Context, roleID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM identity_roles WHERE role_id = $1`, roleID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanPermission(row pgx.Row) (*domain.Permission, error) {
	var p domain.Permission
	var status string
	err := row.Scan(&p.ID, &p.Name, &p.Description, &status, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	p.Status = domain.EntityStatus(status)
	return &p, nil
}

func scanRole(row pgx.Row) (*domain.Role, error) {
	var role domain.Role
	var status string
	err := row.Scan(&role.ID, &role.Name, &role.Description, &status, &role.Version,
		&role.PermissionIDs, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	role.Status = domain.EntityStatus(status)
	return &role, nil
}
