package domain

import "time"

// EntityStatus es el estado activo/inactivo de roles y permisos.
type EntityStatus string

const (
	StatusActive   EntityStatus = "active"
	StatusInactive EntityStatus = "inactive"
)

// Permission es un permiso nombrado, versionado de forma independiente.
type Permission struct {
	ID          string
	Name        string
	Description string
	Status      EntityStatus
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsActive indica si el permiso cuenta para la resolución.
func (p *Permission) IsActive() bool { return p.Status == StatusActive }

// Role agrupa permisos. El orden de PermissionIDs no es significativo.
type Role struct {
	ID            string
	Name          string
	Description   string
	Status        EntityStatus
	Version       int
	PermissionIDs []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsActive indica si los permisos del rol cuentan para la resolución.
func (r *Role) IsActive() bool { return r.Status == StatusActive }

// IdentityPermission es la asignación directa identity↔permission.
// La creación es idempotente; el borrado exige que exista.
type IdentityPermission struct {
	IdentityID   string
	PermissionID string
	GrantedAt    time.Time
}

// IdentityRole es la asignación identity↔role.
type IdentityRole struct {
	IdentityID string
	RoleID     string
	GrantedAt  time.Time
}
