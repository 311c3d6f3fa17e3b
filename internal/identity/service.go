// Package identity orquesta el ciclo de vida de las identidades: alta con
// provisioning best-effort de la cuenta externa, revocación, confirmaciones
// de contacto y enrolamiento biométrico con evidencia firmada.
package identity

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/halcyonlabs/idcore/internal/domain"
	"github.com/halcyonlabs/idcore/internal/domain/repository"
	"github.com/halcyonlabs/idcore/internal/evidence"
	"github.com/halcyonlabs/idcore/internal/ledger"
	"github.com/halcyonlabs/idcore/internal/observability/logger"
	"github.com/halcyonlabs/idcore/internal/provision"
	"github.com/halcyonlabs/idcore/internal/security/password"
)

// Deps son las dependencias del servicio de identidades.
type Deps struct {
	Identities repository.IdentityRepository
	Password   password.Policy
	Ledger     ledger.Client

	// Provisioner es opcional: nil deshabilita el alta de cuenta externa.
	Provisioner *provision.Provisioner

	// Evidence es opcional: nil omite la emisión de evidencia biométrica.
	Evidence *evidence.Signer

	// BiometricThreshold es la similitud mínima para re-enroll/verificación.
	BiometricThreshold float64

	Now func() time.Time
}

// Service implementa las operaciones administrativas sobre identidades.
type Service struct {
	identities  repository.IdentityRepository
	password    password.Policy
	ledger      ledger.Client
	provisioner *provision.Provisioner
	evidence    *evidence.Signer
	threshold   float64
	now         func() time.Time
}

// NewService crea el servicio.
func NewService(d Deps) *Service {
	if d.Ledger == nil {
		d.Ledger = ledger.Noop{}
	}
	if d.BiometricThreshold <= 0 {
		d.BiometricThreshold = domain.DefaultMatchThreshold
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Service{
		identities:  d.Identities,
		password:    d.Password,
		ledger:      d.Ledger,
		provisioner: d.Provisioner,
		evidence:    d.Evidence,
		threshold:   d.BiometricThreshold,
		now:         d.Now,
	}
}

// CreateInput son los datos de alta de una identidad.
type CreateInput struct {
	Username    string
	Password    string
	DisplayName string
	Email       string
	Phone       string
	DID         string
}

// Create da de alta una identidad y dispara el provisioning de la cuenta
// externa. El alta tiene que funcionar con el servicio de cuentas caído: un
// fallo de provisioning queda registrado en la identidad para el sweep
// posterior y nunca se propaga al caller.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Identity, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("identity"),
		logger.Op("Create"),
	)

	username := domain.NormalizeUsername(in.Username)
	if _, err := s.identities.GetByUsername(ctx, username); err == nil {
		return nil, domain.ErrIdentityExists
	} else if !repository.IsNotFound(err) {
		return nil, err
	}

	hash, err := s.password.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ident := &domain.Identity{
		ID:           uuid.NewString(),
		Username:     username,
		DisplayName:  in.DisplayName,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: hash,
		Status:       domain.IdentityUnverified,
		DID:          in.DID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.identities.Create(ctx, ident); err != nil {
		if repository.IsConflict(err) {
			return nil, domain.ErrIdentityExists
		}
		return nil, err
	}
	log.Info("identidad creada",
		logger.IdentityID(ident.ID),
		logger.Username(ident.Username),
	)

	if s.provisioner != nil {
		if res := s.provisioner.EnsureAccount(ctx, ident); !res.Success {
			log.Warn("provisioning de cuenta externa pendiente",
				logger.IdentityID(ident.ID),
				logger.Err(res.Err),
			)
		}
	}

	s.audit(ctx, "identity.created", ident.ID, map[string]string{"username": ident.Username})
	return ident, nil
}

// Get busca una identidad por id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Identity, error) {
	ident, err := s.identities.Get(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, err
	}
	return ident, nil
}

// Revoke da de baja lógica la identidad. Nunca hay borrado físico.
func (s *Service) Revoke(ctx context.Context, id string) error {
	ident, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	ident.Revoke(s.now().UTC())
	if err := s.identities.Update(ctx, ident); err != nil {
		return err
	}
	logger.From(ctx).Info("identidad revocada",
		logger.Layer("service"),
		logger.Component("identity"),
		logger.IdentityID(id),
	)
	s.audit(ctx, "identity.revoked", id, nil)
	return nil
}

// Unlock limpia un lockout activo (operación administrativa).
func (s *Service) Unlock(ctx context.Context, id string) error {
	ident, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	ident.Unlock(s.now().UTC())
	return s.identities.Update(ctx, ident)
}

// ConfirmEmail marca el email como confirmado.
func (s *Service) ConfirmEmail(ctx context.Context, id string) error {
	ident, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	ident.ConfirmEmail(s.now().UTC())
	return s.identities.Update(ctx, ident)
}

// ConfirmPhone marca el teléfono como confirmado.
func (s *Service) ConfirmPhone(ctx context.Context, id string) error {
	ident, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	ident.ConfirmPhone(s.now().UTC())
	return s.identities.Update(ctx, ident)
}

// UpdateBiometric enrola o re-enrola el template biométrico. Un re-enroll
// exige verificación contra el template vigente. Si hay signer configurado se
// emite evidencia de enrolamiento firmada.
func (s *Service) UpdateBiometric(ctx context.Context, id string, newData, verification *domain.BiometricData) (string, error) {
	ident, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}

	if err := ident.UpdateBiometric(newData, verification, s.threshold, s.now().UTC()); err != nil {
		return "", err
	}
	if err := s.identities.Update(ctx, ident); err != nil {
		return "", err
	}

	var token string
	if s.evidence != nil {
		decision := "FAIL"
		if newData.LivenessScore >= s.threshold {
			decision = "PASS"
		}
		token, err = s.evidence.CreateEnrollmentEvidence(ctx, evidence.EnrollmentInput{
			SubjectID: ident.ID,
			DID:       ident.DID,
			Liveness: evidence.Liveness{
				Score:     newData.LivenessScore,
				Decision:  decision,
				Algorithm: "pad-v2",
			},
			Quality: evidence.Quality{
				Quality: newData.LivenessScore,
				Format:  newData.Format,
			},
			Policy: evidence.Policy{
				LivenessThreshold: s.threshold,
				MatchThreshold:    s.threshold,
			},
			Provenance: evidence.Provenance{
				Source:           "biometric-service",
				TemplateID:       ident.ID,
				AlgorithmVersion: "1",
			},
		})
		if err != nil {
			logger.From(ctx).Warn("no se pudo emitir evidencia de enrolamiento",
				logger.Component("identity"),
				logger.IdentityID(id),
				logger.Err(err),
			)
			token = ""
		}
	}

	s.audit(ctx, "identity.biometric_updated", id, nil)
	return token, nil
}

// RetryProvisioning reintenta el alta de cuenta externa de una identidad con
// provisioning fallido (entrada del sweep administrativo).
func (s *Service) RetryProvisioning(ctx context.Context, id string) error {
	if s.provisioner == nil {
		return nil
	}
	ident, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if res := s.provisioner.RetryFailed(ctx, ident); !res.Success {
		return res.Err
	}
	return nil
}

func (s *Service) audit(ctx context.Context, txType, identityID string, meta map[string]string) {
	err := s.ledger.LogTransaction(ctx, ledger.Transaction{
		Type:       txType,
		EntityType: "identity",
		EntityID:   identityID,
		Metadata:   meta,
		Timestamp:  s.now().UTC(),
	})
	if err != nil {
		logger.From(ctx).Warn("fallo al registrar transacción de auditoría",
			logger.Component("identity"),
			logger.IdentityID(identityID),
			logger.Err(err),
		)
	}
}
