package pg

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/halcyonlabs/idcore/internal/domain"
	"github.com/halcyonlabs/idcore/internal/domain/repository"
)

// IdentityRepo implementa repository.IdentityRepository sobre postgres.
type IdentityRepo struct{ pool *pgxpool.Pool }

const identityCols = `id, username, display_name, email, phone, password_hash,
	email_confirmed, phone_confirmed, status, did, federated_subject, service_id,
	biometric, failed_login_attempts, locked_until, last_login_at, enabled_mfa_methods,
	prov_address, prov_currency, prov_created_at, prov_failed, prov_last_error,
	prov_failed_attempts, prov_last_failed_at, prov_last_retry_at, created_at, updated_at`

func (r *IdentityRepo) Create(ctx context.Context, identity *domain.Identity) error {
	bio, err := marshalBiometric(identity.Biometric)
	if err != nil {
		return err
	}
	prov := identity.Provisioning
	if prov == nil {
		prov = &domain.ProvisioningState{}
	}
	const q = `
INSERT INTO identities (` + identityCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)`
	_, err = r.pool.Exec(ctx, q,
		identity.ID, identity.Username, identity.DisplayName, identity.Email, identity.Phone,
		identity.PasswordHash, identity.EmailConfirmed, identity.PhoneConfirmed,
		string(identity.Status), identity.DID, identity.FederatedSubject, identity.ServiceID,
		bio, identity.FailedLoginAttempts, identity.LockedUntil, identity.LastLoginAt,
		methodsToStrings(identity.EnabledMFAMethods),
		prov.Address, prov.Currency, prov.CreatedAt, prov.Failed, prov.LastError,
		prov.FailedAttempts, prov.LastFailedAt, prov.LastRetryAt,
		identity.CreatedAt, identity.UpdatedAt,
	)
	if isUnique(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *IdentityRepo) Get(ctx context.Context, id string) (*domain.Identity, error) {
	return r.getWhere(ctx, "id = $1", id)
}

func (r *IdentityRepo) GetByUsername(ctx context.Context, username string) (*domain.Identity, error) {
	return r.getWhere(ctx, "username = $1", username)
}

func (r *IdentityRepo) GetByDID(ctx context.Context, did string) (*domain.Identity, error) {
	return r.getWhere(ctx, "did = $1 AND did <> ''", did)
}

func (r *IdentityRepo) GetByFederatedSubject(ctx context.Context, subject string) (*domain.Identity, error) {
	return r.getWhere(ctx, "federated_subject = $1 AND federated_subject <> ''", subject)
}

func (r *IdentityRepo) GetByServiceID(ctx context.Context, serviceID string) (*domain.Identity, error) {
	return r.getWhere(ctx, "service_id = $1 AND service_id <> ''", serviceID)
}

func (r *IdentityRepo) Update(ctx context.Context, identity *domain.Identity) error {
	bio, err := marshalBiometric(identity.Biometric)
	if err != nil {
		return err
	}
	prov := identity.Provisioning
	if prov == nil {
		prov = &domain.ProvisioningState{}
	}
	const q = `
UPDATE identities SET
	display_name=$2, email=$3, phone=$4, password_hash=$5,
	email_confirmed=$6, phone_confirmed=$7, status=$8, did=$9,
	federated_subject=$10, service_id=$11, biometric=$12,
	failed_login_attempts=$13, locked_until=$14, last_login_at=$15,
	enabled_mfa_methods=$16,
	prov_address=$17, prov_currency=$18, prov_created_at=$19, prov_failed=$20,
	prov_last_error=$21, prov_failed_attempts=$22, prov_last_failed_at=$23,
	prov_last_retry_at=$24, updated_at=$25
WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q,
		identity.ID, identity.DisplayName, identity.Email, identity.Phone, identity.PasswordHash,
		identity.EmailConfirmed, identity.PhoneConfirmed, string(identity.Status), identity.DID,
		identity.FederatedSubject, identity.ServiceID, bio,
		identity.FailedLoginAttempts, identity.LockedUntil, identity.LastLoginAt,
		methodsToStrings(identity.EnabledMFAMethods),
		prov.Address, prov.Currency, prov.CreatedAt, prov.Failed,
		prov.LastError, prov.FailedAttempts, prov.LastFailedAt,
		prov.LastRetryAt, identity.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *IdentityRepo) ListProvisioningFailed(ctx context.Context, limit int) ([]*domain.Identity, error) {
	q := `SELECT ` + identityCols + ` FROM identities WHERE prov_failed AND prov_address = '' ORDER BY prov_last_failed_at`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Identity
	for rows.Next() {
		i, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *IdentityRepo) getWhere(ctx context.Context, where string, args ...any) (*domain.Identity, error) {
	q := `SELECT ` + identityCols + ` FROM identities WHERE ` + where + ` LIMIT 1`
	row := r.pool.QueryRow(ctx, q, args...)
	i, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return i, nil
}

func scanIdentity(row pgx.Row) (*domain.Identity, error) {
	var i domain.Identity
	var status string
	var bio []byte
	var methods []string
	var prov domain.ProvisioningState

	err := row.Scan(
		&i.ID, &i.Username, &i.DisplayName, &i.Email, &i.Phone, &i.PasswordHash,
		&i.EmailConfirmed, &i.PhoneConfirmed, &status, &i.DID, &i.FederatedSubject, &i.ServiceID,
		&bio, &i.FailedLoginAttempts, &i.LockedUntil, &i.LastLoginAt, &methods,
		&prov.Address, &prov.Currency, &prov.CreatedAt, &prov.Failed, &prov.LastError,
		&prov.FailedAttempts, &prov.LastFailedAt, &prov.LastRetryAt,
		&i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	i.Status = domain.IdentityStatus(status)
	i.EnabledMFAMethods = stringsToMethods(methods)
	if len(bio) > 0 {
		var b domain.BiometricData
		if err := json.Unmarshal(bio, &b); err != nil {
			return nil, err
		}
		i.Biometric = &b
	}
	if prov.Address != "" || prov.Failed || prov.FailedAttempts > 0 {
		i.Provisioning = &prov
	}
	return &i, nil
}

func marshalBiometric(b *domain.BiometricData) ([]byte, error) {
	if b == nil {
		return nil, nil
	}
	return json.Marshal(b)
}

func methodsToStrings(ms []domain.MFAMethod) []string {
	out := make([]string, len(ms))
	for idx, m := range ms {
		out[idx] = string(m)
	}
	return out
}

func stringsToMethods(ss []string) []domain.MFAMethod {
	if len(ss) == 0 {
		return nil
	}
	out := make([]domain.MFAMethod, len(ss))
	for idx, s := range ss {
		out[idx] = domain.MFAMethod(s)
	}
	return out
}
