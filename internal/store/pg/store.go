// Package pg implementa los repositorios sobre postgres con pgxpool.
// El contrato es el de domain/repository; los errores de pgx se traducen a
// los sentinels del repositorio en este borde.
package pg

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/halcyonlabs/idcore/internal/observability/logger"
)

// Store agrupa los adapters postgres sobre un pool compartido.
type Store struct {
	pool *pgxpool.Pool

	Identities *IdentityRepo
	Sessions   *SessionRepo
	MFA        *MFARepo
	RBAC       *RBACRepo
}

// Options ajusta el pool.
type Options struct {
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
}

// New abre el pool y arma los repositorios. El ping de arranque es
// best-effort: la app tiene que poder arrancar con la base caída.
func New(ctx context.Context, dsn string, opts Options) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if opts.MaxConns > 0 {
		pcfg.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		pcfg.MinConns = int32(opts.MinConns)
	}
	if opts.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = opts.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		logger.From(ctx).Warn("ping de arranque a postgres fallido",
			logger.Component("store.pg"),
			logger.Err(err),
		)
	}

	s := &Store{pool: pool}
	s.Identities = &IdentityRepo{pool: pool}
	s.Sessions = &SessionRepo{pool: pool}
	s.MFA = &MFARepo{pool: pool}
	s.RBAC = &RBACRepo{pool: pool}
	return s, nil
}

// Ping verifica la conexión.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close cierra el pool (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// Bootstrap crea el esquema si no existe (perfil dev/standalone; en
// producción el esquema lo manejan las migraciones del despliegue).
func (s *Store) Bootstrap(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS identities (
			id UUID PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			email_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
			phone_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
			status TEXT NOT NULL,
			did TEXT NOT NULL DEFAULT '',
			federated_subject TEXT NOT NULL DEFAULT '',
			service_id TEXT NOT NULL DEFAULT '',
			biometric JSONB,
			failed_login_attempts INT NOT NULL DEFAULT 0,
			locked_until TIMESTAMPTZ,
			last_login_at TIMESTAMPTZ,
			enabled_mfa_methods TEXT[] NOT NULL DEFAULT '{}',
			prov_address TEXT NOT NULL DEFAULT '',
			prov_currency TEXT NOT NULL DEFAULT '',
			prov_created_at TIMESTAMPTZ,
			prov_failed BOOLEAN NOT NULL DEFAULT FALSE,
			prov_last_error TEXT NOT NULL DEFAULT '',
			prov_failed_attempts INT NOT NULL DEFAULT 0,
			prov_last_failed_at TIMESTAMPTZ,
			prov_last_retry_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_identities_did ON identities (did) WHERE did <> ''`,
		`CREATE INDEX IF NOT EXISTS idx_identities_federated ON identities (federated_subject) WHERE federated_subject <> ''`,
		`CREATE INDEX IF NOT EXISTS idx_identities_prov_failed ON identities (prov_failed) WHERE prov_failed`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id UUID PRIMARY KEY,
			identity_id UUID NOT NULL REFERENCES identities(id),
			access_token TEXT NOT NULL,
			refresh_token_hash TEXT NOT NULL UNIQUE,
			expires_at TIMESTAMPTZ NOT NULL,
			ip TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			revoked BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_identity ON sessions (identity_id)`,
		`CREATE TABLE IF NOT EXISTS mfa_configurations (
			id UUID PRIMARY KEY,
			identity_id UUID NOT NULL REFERENCES identities(id),
			method TEXT NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT FALSE,
			secret TEXT NOT NULL DEFAULT '',
			backup_code_hashes TEXT[] NOT NULL DEFAULT '{}',
			last_used_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (identity_id, method)
		)`,
		`CREATE TABLE IF NOT EXISTS permissions (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			version INT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS roles (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			version INT NOT NULL DEFAULT 1,
			permission_ids UUID[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS identity_permissions (
			identity_id UUID NOT NULL REFERENCES identities(id),
			permission_id UUID NOT NULL REFERENCES permissions(id),
			granted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (identity_id, permission_id)
		)`,
		`CREATE TABLE IF NOT EXISTS identity_roles (
			identity_id UUID NOT NULL REFERENCES identities(id),
			role_id UUID NOT NULL REFERENCES roles(id),
			granted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (identity_id, role_id)
		)`,
	}
	for _, q := range stmts {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func isUnique(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}
