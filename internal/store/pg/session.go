package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/halcyonlabs/idcore/internal/domain"
	"github.com/halcyonlabs/idcore/internal/domain/repository"
)

// SessionRepo implementa repository.SessionRepository sobre postgres.
type SessionRepo struct{ pool *pgxpool.Pool }

const sessionCols = `id, identity_id, access_token, refresh_token_hash, expires_at, ip, user_agent, revoked, created_at, updated_at`

func (r *SessionRepo) Create(ctx context.Context, s *domain.Session) error {
	const q = `
INSERT INTO sessions (` + sessionCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := r.pool.Exec(ctx, q,
		s.ID, s.IdentityID, s.AccessToken, s.RefreshTokenHash, s.ExpiresAt,
		s.IP, s.UserAgent, s.Revoked, s.CreatedAt, s.UpdatedAt,
	)
	if isUnique(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *SessionRepo) Get(ctx context.Context, id string) (*domain.Session, error) {
	const q = `SELECT ` + sessionCols + ` FROM sessions WHERE id = $1 LIMIT 1`
	return scanSession(r.pool.QueryRow(ctx, q, id))
}

func (r *SessionRepo) GetByRefreshHash(ctx context.Context, refreshHash string) (*domain.Session, error) {
	const q = `SELECT ` + sessionCols + ` FROM sessions WHERE refresh_token_hash = $1 LIMIT 1`
	return scanSession(r.pool.QueryRow(ctx, q, refreshHash))
}

func (r *SessionRepo) Update(ctx context.Context, s *domain.Session) error {
	const q = `
UPDATE sessions SET access_token=$2, refresh_token_hash=$3, expires_at=$4, revoked=$5, updated_at=$6
WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, s.ID, s.AccessToken, s.RefreshTokenHash, s.ExpiresAt, s.Revoked, s.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Rotate es compare-and-swap: la fila solo se escribe si el hash vigente
// coincide. RowsAffected == 0 distingue "no existe" de "perdió la carrera".
func (r *SessionRepo) Rotate(ctx context.Context, sessionID, expectedRefreshHash string, rotated *domain.Session) error {
	const q = `
UPDATE sessions SET access_token=$3, refresh_token_hash=$4, expires_at=$5, updated_at=$6
WHERE id = $1 AND refresh_token_hash = $2 AND NOT revoked`
	tag, err := r.pool.Exec(ctx, q,
		sessionID, expectedRefreshHash,
		rotated.AccessToken, rotated.RefreshTokenHash, rotated.ExpiresAt, rotated.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, sessionID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	return nil
}

func (r *SessionRepo) ListByIdentity(ctx context.Context, identityID string) ([]*domain.Session, error) {
	const q = `SELECT ` + sessionCols + ` FROM sessions WHERE identity_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.ID, &s.IdentityID, &s.AccessToken, &s.RefreshTokenHash,
			&s.ExpiresAt, &s.IP, &s.UserAgent, &s.Revoked, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.IdentityID, &s.AccessToken, &s.RefreshTokenHash,
		&s.ExpiresAt, &s.IP, &s.UserAgent, &s.Revoked, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}
