package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/halcyonlabs/idcore/internal/domain"
	"github.com/halcyonlabs/idcore/internal/domain/repository"
)

// MFARepo implementa repository.MFARepository sobre postgres.
type MFARepo struct{ pool *pgxpool.Pool }

const mfaCols = `id, identity_id, method, enabled, secret, backup_code_hashes, last_used_at, created_at, updated_at`

func (r *MFARepo) Create(ctx context.Context, cfg *domain.MFAConfiguration) error {
	const q = `
INSERT INTO mfa_configurations (` + mfaCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := r.pool.Exec(ctx, q,
		cfg.ID, cfg.IdentityID, string(cfg.Method), cfg.Enabled, cfg.Secret,
		cfg.BackupCodeHashes, cfg.LastUsedAt, cfg.CreatedAt, cfg.UpdatedAt,
	)
	if isUnique(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *MFARepo) GetByIdentityAndMethod(ctx context.Context, identityID string, method domain.MFAMethod) (*domain.MFAConfiguration, error) {
	const q = `SELECT ` + mfaCols + ` FROM mfa_configurations WHERE identity_id = $1 AND method = $2 LIMIT 1`
	return scanMFA(r.pool.QueryRow(ctx, q, identityID, string(method)))
}

func (r *MFARepo) ListByIdentity(ctx context.Context, identityID string) ([]*domain.MFAConfiguration, error) {
	const q = `SELECT ` + mfaCols + ` FROM mfa_configurations WHERE identity_id = $1 ORDER BY method`
	rows, err := r.pool.Query(ctx, q, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.MFAConfiguration
	for rows.Next() {
		var cfg domain.MFAConfiguration
		var method string
		if err := rows.Scan(&cfg.ID, &cfg.IdentityID, &method, &cfg.Enabled, &cfg.Secret,
			&cfg.BackupCodeHashes, &cfg.LastUsedAt, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
			return nil, err
		}
		cfg.Method = domain.MFAMethod(method)
		out = append(out, &cfg)
	}
	return out, rows.Err()
}

func (r *MFARepo) Update(ctx context.Context, cfg *domain.MFAConfiguration) error {
	const q = `
UPDATE mfa_configurations
SET enabled=$3, secret=$4, backup_code_hashes=$5, last_used_at=$6, updated_at=$7
WHERE identity_id = $1 AND method = $2`
	tag, err := r.pool.Exec(ctx, q,
		cfg.IdentityID, string(cfg.Method),
		cfg.Enabled, cfg.Secret, cfg.BackupCodeHashes, cfg.LastUsedAt, cfg.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *MFARepo) Delete(ctx context.Context, identityID string, method domain.MFAMethod) error {
	const q = `DELETE FROM mfa_configurations WHERE identity_id = $1 AND method = $2`
	tag, err := r.pool.Exec(ctx, q, identityID, string(method))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanMFA(row pgx.Row) (*domain.MFAConfiguration, error) {
	var cfg domain.MFAConfiguration
	var method string
	err := row.Scan(&cfg.ID, &cfg.IdentityID, &method, &cfg.Enabled, &cfg.Secret,
		&cfg.BackupCodeHashes, &cfg.LastUsedAt, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	cfg.Method = domain.MFAMethod(method)
	return &cfg, nil
}
