package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/halcyonlabs/idcore/internal/domain"
	"github.com/halcyonlabs/idcore/internal/domain/repository"
	"github.com/halcyonlabs/idcore/internal/jwt"
	"github.com/halcyonlabs/idcore/internal/observability/logger"
)

// ClaimsDecoder extrae las claims de un token federado. El default decodifica
// sin verificar firma (trust boundary interno detrás del gateway); ver config
// auth.verify_federated_tokens para exigir verificación.
type ClaimsDecoder func(token string) (map[string]any, error)

// federatedStrategy autentica tokens de IdPs externos: extrae el subject,
// resuelve o auto-provisiona la identidad y emite una sesión de 8h.
type federatedStrategy struct {
	identities repository.IdentityRepository
	decode     ClaimsDecoder
	sessionTTL time.Duration
	now        func() time.Time
}

func (s *federatedStrategy) authenticate(ctx context.Context, cred Credential) (*domain.Identity, time.Duration, error) {
	c, ok := cred.(FederatedCredential)
	if !ok {
		return nil, 0, domain.ErrInvalidCredentials
	}
	if c.Token == "" {
		return nil, 0, domain.ErrInvalidCredentials
	}

	claims, err := s.decode(c.Token)
	if err != nil {
		return nil, 0, domain.ErrInvalidCredentials
	}
	subject := jwt.StringClaim(claims, "oid", "sub")
	if subject == "" {
		return nil, 0, domain.ErrInvalidCredentials
	}

	ident, err := s.identities.GetByFederatedSubject(ctx, subject)
	if err != nil {
		if !repository.IsNotFound(err) {
			return nil, 0, err
		}
		ident, err = s.provision(ctx, subject, claims)
		if err != nil {
			return nil, 0, err
		}
	}
	if ident.Status != domain.IdentityVerified {
		return nil, 0, domain.ErrIdentityNotActive
	}
	return ident, s.sessionTTL, nil
}

// provision auto-crea la identidad federada en el primer sign-in. El IdP ya
// verificó al principal, así que nace Verified y con el email confirmado.
func (s *federatedStrategy) provision(ctx context.Context, subject string, claims map[string]any) (*domain.Identity, error) {
	now := s.now().UTC()
	email := jwt.StringClaim(claims, "email", "preferred_username", "upn")
	name := jwt.StringClaim(claims, "name")
	username := email
	if username == "" {
		username = subject
	}

	ident := &domain.Identity{
		ID:               uuid.NewString(),
		Username:         domain.NormalizeUsername(username),
		DisplayName:      name,
		Email:            email,
		EmailConfirmed:   email != "",
		Status:           domain.IdentityVerified,
		FederatedSubject: subject,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.identities.Create(ctx, ident); err != nil {
		if repository.IsConflict(err) {
			// Otro sign-in federado concurrente ganó el alta.
			return s.identities.GetByFederatedSubject(ctx, subject)
		}
		return nil, err
	}

	logger.From(ctx).Info("identidad federada auto-provisionada",
		logger.Layer("service"),
		logger.Component("auth"),
		logger.IdentityID(ident.ID),
		logger.Username(ident.Username),
	)
	return ident, nil
}

// serviceStrategy autentica cuentas de servicio via token service-to-service.
// La sesión resultante es corta (1h por defecto).
type serviceStrategy struct {
	identities repository.IdentityRepository
	decode     ClaimsDecoder
	sessionTTL time.Duration
}

func (s *serviceStrategy) authenticate(ctx context.Context, cred Credential) (*domain.Identity, time.Duration, error) {
	c, ok := cred.(ServiceCredential)
	if !ok {
		return nil, 0, domain.ErrInvalidCredentials
	}
	if c.Token == "" {
		return nil, 0, domain.ErrInvalidCredentials
	}

	claims, err := s.decode(c.Token)
	if err != nil {
		return nil, 0, domain.ErrInvalidCredentials
	}
	serviceID := jwt.StringClaim(claims, "service_id", "appid", "sub")
	if serviceID == "" {
		return nil, 0, domain.ErrInvalidCredentials
	}

	ident, err := s.identities.GetByServiceID(ctx, serviceID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, 0, domain.ErrInvalidCredentials
		}
		return nil, 0, err
	}
	if ident.Status != domain.IdentityVerified {
		return nil, 0, domain.ErrIdentityNotActive
	}
	return ident, s.sessionTTL, nil
}
