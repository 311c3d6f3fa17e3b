// Package memory implementa los repositorios sobre mapas en memoria con
// RWMutex. Es el store del perfil dev y de los tests; el contrato es el
// mismo que el del adapter postgres.
package memory

import (
	"context"
	"sync"

	"github.com/halcyonlabs/idcore/internal/domain"
	"github.com/halcyonlabs/idcore/internal/domain/repository"
)

// Store agrupa los repositorios en memoria compartiendo un lock por agregado.
type Store struct {
	Identities *IdentityRepo
	Sessions   *SessionRepo
	MFA        *MFARepo
	RBAC       *RBACRepo
}

// New crea un Store vacío.
func New() *Store {
	return &Store{
		Identities: NewIdentityRepo(),
		Sessions:   NewSessionRepo(),
		MFA:        NewMFARepo(),
		RBAC:       NewRBACRepo(),
	}
}

// ─── Identities ───

// IdentityRepo es el repositorio de identidades en memoria.
type IdentityRepo struct {
	mu   sync.RWMutex
	byID map[string]*domain.Identity
}

// NewIdentityRepo crea el repositorio vacío.
func NewIdentityRepo() *IdentityRepo {
	return &IdentityRepo{byID: make(map[string]*domain.Identity)}
}

func (r *IdentityRepo) Create(ctx context.Context, identity *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[identity.ID]; ok {
		return repository.ErrConflict
	}
	for _, other := range r.byID {
		if other.Username == identity.Username {
			return repository.ErrConflict
		}
	}
	cp := cloneIdentity(identity)
	r.byID[identity.ID] = cp
	return nil
}

func (r *IdentityRepo) Get(ctx context.Context, id string) (*domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i, ok := r.byID[id]; ok {
		return cloneIdentity(i), nil
	}
	return nil, repository.ErrNotFound
}

func (r *IdentityRepo) GetByUsername(ctx context.Context, username string) (*domain.Identity, error) {
	return r.find(func(i *domain.Identity) bool { return i.Username == username })
}

func (r *IdentityRepo) GetByDID(ctx context.Context, did string) (*domain.Identity, error) {
	return r.find(func(i *domain.Identity) bool { return did != "" && i.DID == did })
}

func (r *IdentityRepo) GetByFederatedSubject(ctx context.Context, subject string) (*domain.Identity, error) {
	return r.find(func(i *domain.Identity) bool { return subject != "" && i.FederatedSubject == subject })
}

func (r *IdentityRepo) GetByServiceID(ctx context.Context, serviceID string) (*domain.Identity, error) {
	return r.find(func(i *domain.Identity) bool { return serviceID != "" && i.ServiceID == serviceID })
}

func (r *IdentityRepo) Update(ctx context.Context, identity *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[identity.ID]; !ok {
		return repository.ErrNotFound
	}
	r.byID[identity.ID] = cloneIdentity(identity)
	return nil
}

func (r *IdentityRepo) ListProvisioningFailed(ctx context.Context, limit int) ([]*domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Identity
	for _, i := range r.byID {
		if i.Provisioning != nil && i.Provisioning.Failed && !i.Provisioning.Provisioned() {
			out = append(out, cloneIdentity(i))
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *IdentityRepo) find(match func(*domain.Identity) bool) (*domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, i := range r.byID {
		if match(i) {
			return cloneIdentity(i), nil
		}
	}
	return nil, repository.ErrNotFound
}

func cloneIdentity(i *domain.Identity) *domain.Identity {
	cp := *i
	if i.LockedUntil != nil {
		t := *i.LockedUntil
		cp.LockedUntil = &t
	}
	if i.LastLoginAt != nil {
		t := *i.LastLoginAt
		cp.LastLoginAt = &t
	}
	if i.Biometric != nil {
		b := *i.Biometric
		b.Template = append([]byte(nil), i.Biometric.Template...)
		cp.Biometric = &b
	}
	if i.Provisioning != nil {
		p := *i.Provisioning
		cp.Provisioning = &p
	}
	cp.EnabledMFAMethods = append([]domain.MFAMethod(nil), i.EnabledMFAMethods...)
	return &cp
}

// ─── Sessions ───

// SessionRepo es el repositorio de sesiones en memoria.
type SessionRepo struct {
	mu   sync.RWMutex
	byID map[string]*domain.Session
}

// NewSessionRepo crea el repositorio vacío.
func NewSessionRepo() *SessionRepo {
	return &SessionRepo{byID: make(map[string]*domain.Session)}
}

func (r *SessionRepo) Create(ctx context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[session.ID]; ok {
		return repository.ErrConflict
	}
	cp := *session
	r.byID[session.ID] = &cp
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.byID[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (r *SessionRepo) GetByRefreshHash(ctx context.Context, refreshHash string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.byID {
		if s.RefreshTokenHash == refreshHash {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *SessionRepo) Update(ctx context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[session.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *session
	r.byID[session.ID] = &cp
	return nil
}

// Rotate es el compare-and-swap de la rotación: la escritura solo procede si
// el hash vigente sigue siendo expectedRefreshHash.
func (r *SessionRepo) Rotate(ctx context.Context, sessionID, expectedRefreshHash string, rotated *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.RefreshTokenHash != expectedRefreshHash {
		return repository.ErrConflict
	}
	cp := *rotated
	r.byID[sessionID] = &cp
	return nil
}

func (r *SessionRepo) ListByIdentity(ctx context.Context, identityID string) ([]*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Session
	for _, s := range r.byID {
		if s.IdentityID == identityID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ─── MFA ───

// MFARepo es el repositorio de configuraciones MFA en memoria.
type MFARepo struct {
	mu    sync.RWMutex
	byKey map[string]*domain.MFAConfiguration // identityID + "/" + method
}

// NewMFARepo crea el repositorio vacío.
func NewMFARepo() *MFARepo {
	return &MFARepo{byKey: make(map[string]*domain.MFAConfiguration)}
}

func mfaKey(identityID string, method domain.MFAMethod) string {
	return identityID + "/" + string(method)
}

func (r *MFARepo) Create(ctx context.Context, cfg *domain.MFAConfiguration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := mfaKey(cfg.IdentityID, cfg.Method)
	if _, ok := r.byKey[key]; ok {
		return repository.ErrConflict
	}
	r.byKey[key] = cloneMFA(cfg)
	return nil
}

func (r *MFARepo) GetByIdentityAndMethod(ctx context.Context, identityID string, method domain.MFAMethod) (*domain.MFAConfiguration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cfg, ok := r.byKey[mfaKey(identityID, method)]; ok {
		return cloneMFA(cfg), nil
	}
	return nil, repository.ErrNotFound
}

func (r *MFARepo) ListByIdentity(ctx context.Context, identityID string) ([]*domain.MFAConfiguration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.MFAConfiguration
	for _, cfg := range r.byKey {
		if cfg.IdentityID == identityID {
			out = append(out, cloneMFA(cfg))
		}
	}
	return out, nil
}

func (r *MFARepo) Update(ctx context.Context, cfg *domain.MFAConfiguration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := mfaKey(cfg.IdentityID, cfg.Method)
	if _, ok := r.byKey[key]; !ok {
		return repository.ErrNotFound
	}
	r.byKey[key] = cloneMFA(cfg)
	return nil
}

func (r *MFARepo) Delete(ctx context.Context, identityID string, method domain.MFAMethod) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := mfaKey(identityID, method)
	if _, ok := r.byKey[key]; !ok {
		return repository.ErrNotFound
	}
	delete(r.byKey, key)
	return nil
}

func cloneMFA(cfg *domain.MFAConfiguration) *domain.MFAConfiguration {
	cp := *cfg
	cp.BackupCodeHashes = append([]string(nil), cfg.BackupCodeHashes...)
	if cfg.LastUsedAt != nil {
		t := *cfg.LastUsedAt
		cp.LastUsedAt = &t
	}
	return &cp
}
