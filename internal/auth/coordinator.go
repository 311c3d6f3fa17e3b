// Package auth implementa el coordinator de autenticación: despacha cada
// credencial a su strategy (password, biometric, DID, federated, service) y
// comparte la cola de emisión de sesión, el sign-out y el refresh.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/halcyonlabs/idcore/internal/domain"
	"github.com/halcyonlabs/idcore/internal/domain/repository"
	"github.com/halcyonlabs/idcore/internal/jwt"
	"github.com/halcyonlabs/idcore/internal/ledger"
	"github.com/halcyonlabs/idcore/internal/metrics"
	"github.com/halcyonlabs/idcore/internal/observability/logger"
	"github.com/halcyonlabs/idcore/internal/security/password"
	"github.com/halcyonlabs/idcore/internal/session"
)

// AuthenticationResult es el resultado común de todo sign-in y refresh.
type AuthenticationResult struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	SessionID    string    `json:"session_id"`
	IdentityID   string    `json:"identity_id"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Options son las políticas del coordinator.
type Options struct {
	// TTLs de sesión por estrategia.
	AccessTTL    time.Duration // password y biometric
	DIDTTL       time.Duration
	FederatedTTL time.Duration
	ServiceTTL   time.Duration

	// Lockout: umbral de intentos fallidos y duración. Threshold 0 deshabilita.
	LockoutThreshold int
	LockoutDuration  time.Duration

	// BiometricThreshold es la similitud mínima aceptada.
	BiometricThreshold float64
}

// Deps son las dependencias del coordinator.
type Deps struct {
	Identities repository.IdentityRepository
	Sessions   *session.Manager
	Issuer     *jwt.Issuer
	Ledger     ledger.Client
	Password   password.Policy

	// FederatedDecoder decodifica tokens federados/service. Default:
	// jwt.DecodeUnverified (trust boundary interno).
	FederatedDecoder ClaimsDecoder

	Options Options
	Now     func() time.Time
}

// Coordinator es el punto de entrada de autenticación.
type Coordinator struct {
	identities repository.IdentityRepository
	sessions   *session.Manager
	issuer     *jwt.Issuer
	ledger     ledger.Client
	locks      *keyedMutex
	strategies map[Method]strategy
	opts       Options
	now        func() time.Time
}

// NewCoordinator crea el coordinator y registra el set cerrado de strategies.
func NewCoordinator(d Deps) *Coordinator {
	if d.Options.AccessTTL <= 0 {
		d.Options.AccessTTL = time.Hour
	}
	if d.Options.DIDTTL <= 0 {
		d.Options.DIDTTL = 24 * time.Hour
	}
	if d.Options.FederatedTTL <= 0 {
		d.Options.FederatedTTL = 8 * time.Hour
	}
	if d.Options.ServiceTTL <= 0 {
		d.Options.ServiceTTL = time.Hour
	}
	if d.Options.BiometricThreshold <= 0 {
		d.Options.BiometricThreshold = domain.DefaultMatchThreshold
	}
	if d.Ledger == nil {
		d.Ledger = ledger.Noop{}
	}
	if d.FederatedDecoder == nil {
		d.FederatedDecoder = jwt.DecodeUnverified
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	c := &Coordinator{
		identities: d.Identities,
		sessions:   d.Sessions,
		issuer:     d.Issuer,
		ledger:     d.Ledger,
		locks:      newKeyedMutex(),
		opts:       d.Options,
		now:        d.Now,
	}
	c.strategies = map[Method]strategy{
		MethodPassword: &passwordStrategy{
			identities:       d.Identities,
			policy:           d.Password,
			locks:            c.locks,
			lockoutThreshold: d.Options.LockoutThreshold,
			lockoutDuration:  d.Options.LockoutDuration,
			sessionTTL:       d.Options.AccessTTL,
			now:              d.Now,
		},
		MethodBiometric: &biometricStrategy{
			identities: d.Identities,
			threshold:  d.Options.BiometricThreshold,
			sessionTTL: d.Options.AccessTTL,
			now:        d.Now,
		},
		MethodDID: &didStrategy{
			identities: d.Identities,
			sessionTTL: d.Options.DIDTTL,
		},
		MethodFederated: &federatedStrategy{
			identities: d.Identities,
			decode:     d.FederatedDecoder,
			sessionTTL: d.Options.FederatedTTL,
			now:        d.Now,
		},
		MethodService: &serviceStrategy{
			identities: d.Identities,
			decode:     d.FederatedDecoder,
			sessionTTL: d.Options.ServiceTTL,
		},
	}
	return c
}

// SignIn autentica la credencial con el strategy de su método y, en éxito,
// emite la sesión. Todo fallo de negocio llega como sentinel de domain.
func (c *Coordinator) SignIn(ctx context.Context, cred Credential) (*AuthenticationResult, error) {
	method := cred.Method()
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth"),
		logger.Op("SignIn"),
		logger.String("auth_method", string(method)),
	)

	strat, ok := c.strategies[method]
	if !ok {
		return nil, fmt.Errorf("auth: método desconocido: %s", method)
	}

	ident, ttl, err := strat.authenticate(ctx, cred)
	if err != nil {
		metrics.SignInTotal.WithLabelValues(string(method), "failure").Inc()
		log.Info("sign-in rechazado", logger.Err(err))
		return nil, err
	}

	ip, userAgent := clientMeta(cred)
	res, err := c.issueSession(ctx, ident, ttl, ip, userAgent)
	if err != nil {
		metrics.SignInTotal.WithLabelValues(string(method), "failure").Inc()
		return nil, err
	}

	metrics.SignInTotal.WithLabelValues(string(method), "success").Inc()
	log.Info("sign-in exitoso",
		logger.IdentityID(res.IdentityID),
		logger.SessionID(res.SessionID),
	)
	c.audit(ctx, "identity.sign_in", ident.ID, string(method))
	return res, nil
}

// SignOut revoca la sesión. Idempotente: una sesión inexistente o ya
// revocada no es un error.
func (c *Coordinator) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	// Se revoca lo que exista, vencido o no: una sesión expirada pero nunca
	// revocada igual deja su marca y su registro de auditoría.
	s, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOrExpiredToken) {
			return nil
		}
		return err
	}
	if err := c.sessions.Revoke(ctx, sessionID); err != nil {
		return err
	}

	logger.From(ctx).Info("sign-out",
		logger.Layer("service"),
		logger.Component("auth"),
		logger.Op("SignOut"),
		logger.SessionID(sessionID),
		logger.IdentityID(s.IdentityID),
	)
	c.audit(ctx, "identity.sign_out", s.IdentityID, "")
	return nil
}

// Refresh canjea el refresh token por tokens nuevos sobre la misma sesión.
// La rotación es atómica: de dos refrescos concurrentes con el mismo token,
// exactamente uno obtiene el par nuevo.
func (c *Coordinator) Refresh(ctx context.Context, refreshToken string) (*AuthenticationResult, error) {
	if refreshToken == "" {
		return nil, domain.ErrInvalidOrExpiredToken
	}

	s, err := c.sessions.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	ident, err := c.identities.Get(ctx, s.IdentityID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.ErrInvalidOrExpiredToken
		}
		return nil, err
	}
	if ident.Status == domain.IdentityRevoked {
		return nil, domain.ErrInvalidOrExpiredToken
	}

	tok, err := c.issuer.CreateToken(ident.ID, "", "", c.claims(ident), c.opts.AccessTTL)
	if err != nil {
		return nil, err
	}
	rotated, newRefresh, err := c.sessions.Rotate(ctx, refreshToken, tok.AccessToken, time.Unix(tok.ExpiresAt, 0).UTC())
	if err != nil {
		return nil, err
	}

	logger.From(ctx).Info("sesión refrescada",
		logger.Layer("service"),
		logger.Component("auth"),
		logger.Op("Refresh"),
		logger.SessionID(rotated.ID),
		logger.IdentityID(rotated.IdentityID),
	)
	return &AuthenticationResult{
		AccessToken:  rotated.AccessToken,
		RefreshToken: newRefresh,
		SessionID:    rotated.ID,
		IdentityID:   rotated.IdentityID,
		ExpiresAt:    rotated.ExpiresAt,
	}, nil
}

// issueSession es la cola común de emisión: registra el sign-in en el
// agregado, emite el bearer con las claims visibles y crea la sesión.
func (c *Coordinator) issueSession(ctx context.Context, ident *domain.Identity, ttl time.Duration, ip, userAgent string) (*AuthenticationResult, error) {
	unlock := c.locks.Lock("identity:" + ident.ID)
	defer unlock()

	if err := ident.SignIn(c.now().UTC()); err != nil {
		return nil, err
	}

	tok, err := c.issuer.CreateToken(ident.ID, "", "", c.claims(ident), ttl)
	if err != nil {
		return nil, err
	}
	sess, refresh, err := c.sessions.Create(ctx, session.CreateInput{
		IdentityID:  ident.ID,
		AccessToken: tok.AccessToken,
		ExpiresAt:   time.Unix(tok.ExpiresAt, 0).UTC(),
		IP:          ip,
		UserAgent:   userAgent,
	})
	if err != nil {
		return nil, err
	}

	if err := c.identities.Update(ctx, ident); err != nil {
		logger.From(ctx).Warn("no se pudo persistir el sign-in",
			logger.Component("auth"),
			logger.IdentityID(ident.ID),
			logger.Err(err),
		)
	}

	metrics.SessionsIssuedTotal.Inc()
	return &AuthenticationResult{
		AccessToken:  tok.AccessToken,
		RefreshToken: refresh,
		SessionID:    sess.ID,
		IdentityID:   ident.ID,
		ExpiresAt:    sess.ExpiresAt,
	}, nil
}

// claims son las claims visibles para resource servers downstream.
func (c *Coordinator) claims(ident *domain.Identity) map[string]any {
	out := map[string]any{}
	if ident.DisplayName != "" {
		out["name"] = ident.DisplayName
	}
	if ident.Email != "" {
		out["email"] = ident.Email
	}
	return out
}

// audit registra la transacción en el ledger. Fire-and-forget: un ledger
// caído jamás afecta el resultado de la autenticación.
func (c *Coordinator) audit(ctx context.Context, txType, identityID, method string) {
	tx := ledger.Transaction{
		Type:       txType,
		EntityType: "identity",
		EntityID:   identityID,
		Timestamp:  c.now().UTC(),
	}
	if method != "" {
		tx.Metadata = map[string]string{"method": method}
	}
	if err := c.ledger.LogTransaction(ctx, tx); err != nil {
		logger.From(ctx).Warn("fallo al registrar transacción de auditoría",
			logger.Component("auth"),
			logger.IdentityID(identityID),
			logger.Err(err),
		)
	}
}

func clientMeta(cred Credential) (ip, userAgent string) {
	switch c := cred.(type) {
	case PasswordCredential:
		return c.IP, c.UserAgent
	case BiometricCredential:
		return c.IP, c.UserAgent
	case DIDCredential:
		return c.IP, c.UserAgent
	case FederatedCredential:
		return c.IP, c.UserAgent
	case ServiceCredential:
		return c.IP, c.UserAgent
	}
	return "", ""
}
