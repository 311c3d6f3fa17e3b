package mfa

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/halcyonlabs/idcore/internal/cache"
	"github.com/halcyonlabs/idcore/internal/domain"
	"github.com/halcyonlabs/idcore/internal/domain/repository"
	"github.com/halcyonlabs/idcore/internal/notify"
	"github.com/halcyonlabs/idcore/internal/observability/logger"
	"github.com/halcyonlabs/idcore/internal/security/randstr"
)

// Options parametriza el engine MFA.
type Options struct {
	// Issuer aparece en la URI otpauth que escanea la app TOTP.
	Issuer string

	// ChallengeTTL es la vigencia de los códigos SMS/email en cache.
	ChallengeTTL time.Duration

	// ChallengeDigits es el largo del código numérico de challenge.
	ChallengeDigits int

	// BackupCodeCount es cuántos backup codes se generan por tanda.
	BackupCodeCount int

	// TOTPWindow es cuántos períodos de 30s de desfase se toleran.
	TOTPWindow uint
}

// Deps son las dependencias del engine.
type Deps struct {
	Identities repository.IdentityRepository
	Configs    repository.MFARepository
	Cache      cache.Cache
	Email      notify.EmailSender
	SMS        notify.SMSSender
	Random     *randstr.Provider
	Options    Options
	Now        func() time.Time
}

// Engine implementa el ciclo de vida MFA: setup, enable tras verificación,
// disable, challenges out-of-band y backup codes de un solo uso.
type Engine struct {
	identities repository.IdentityRepository
	configs    repository.MFARepository
	cache      cache.Cache
	email      notify.EmailSender
	sms        notify.SMSSender
	random     *randstr.Provider
	opts       Options
	now        func() time.Time
}

// NewEngine crea el engine.
func NewEngine(d Deps) *Engine {
	if d.Options.Issuer == "" {
		d.Options.Issuer = "idcore"
	}
	if d.Options.ChallengeTTL <= 0 {
		d.Options.ChallengeTTL = 10 * time.Minute
	}
	if d.Options.ChallengeDigits <= 0 {
		d.Options.ChallengeDigits = 6
	}
	if d.Options.BackupCodeCount <= 0 {
		d.Options.BackupCodeCount = 10
	}
	if d.Random == nil {
		d.Random = randstr.New()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Engine{
		identities: d.Identities,
		configs:    d.Configs,
		cache:      d.Cache,
		email:      d.Email,
		sms:        d.SMS,
		random:     d.Random,
		opts:       d.Options,
		now:        d.Now,
	}
}

// SetupResult es el material de enrolamiento entregado una sola vez.
type SetupResult struct {
	Method domain.MFAMethod

	// Secret y OTPAuthURL solo se llenan para TOTP.
	Secret     string
	OTPAuthURL string
}

// Setup crea la configuración de un método en estado deshabilitado. Si el
// método ya está habilitado para la identidad retorna ErrMFAAlreadyConfigured;
// el enable real ocurre recién al verificar un código con Enable.
func (e *Engine) Setup(ctx context.Context, identityID string, method domain.MFAMethod) (*SetupResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("mfa"),
		logger.Op("Setup"),
		logger.IdentityID(identityID),
		logger.MFAMethod(string(method)),
	)

	ident, err := e.identities.Get(ctx, identityID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, err
	}

	existing, err := e.configs.GetByIdentityAndMethod(ctx, identityID, method)
	if err != nil && !repository.IsNotFound(err) {
		return nil, err
	}
	if existing != nil && existing.Enabled {
		return nil, domain.ErrMFAAlreadyConfigured
	}

	res := &SetupResult{Method: method}
	now := e.now().UTC()
	cfg := existing
	if cfg == nil {
		cfg = &domain.MFAConfiguration{
			ID:         uuid.NewString(),
			IdentityID: identityID,
			Method:     method,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}

	switch method {
	case domain.MFATOTP:
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      e.opts.Issuer,
			AccountName: ident.Username,
		})
		if err != nil {
			return nil, err
		}
		cfg.Secret = key.Secret()
		res.Secret = key.Secret()
		res.OTPAuthURL = key.URL()
	case domain.MFASMS:
		if ident.Phone == "" {
			return nil, fmt.Errorf("mfa: la identidad no tiene teléfono registrado")
		}
	case domain.MFAEmail:
		if ident.Email == "" {
			return nil, fmt.Errorf("mfa: la identidad no tiene email registrado")
		}
	case domain.MFABiometric:
		if ident.Biometric == nil {
			return nil, fmt.Errorf("mfa: la identidad no tiene template biométrico enrolado")
		}
	default:
		return nil, fmt.Errorf("mfa: método no soportado: %s", method)
	}

	cfg.UpdatedAt = now
	if existing == nil {
		err = e.configs.Create(ctx, cfg)
	} else {
		err = e.configs.Update(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}

	log.Info("setup MFA iniciado")
	return res, nil
}

// Enable habilita un método ya configurado tras verificar un código válido.
func (e *Engine) Enable(ctx context.Context, identityID string, method domain.MFAMethod, code string) error {
	cfg, err := e.configs.GetByIdentityAndMethod(ctx, identityID, method)
	if err != nil {
		if repository.IsNotFound(err) {
			return domain.ErrMFANotConfigured
		}
		return err
	}
	if cfg.Enabled {
		return domain.ErrMFAAlreadyConfigured
	}

	ok, err := e.verifyCode(ctx, cfg, code)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidVerificationCode
	}

	now := e.now().UTC()
	cfg.Enable(now)
	if err := e.configs.Update(ctx, cfg); err != nil {
		return err
	}

	ident, err := e.identities.Get(ctx, identityID)
	if err != nil {
		return err
	}
	ident.EnableMFAMethod(method, now)
	if err := e.identities.Update(ctx, ident); err != nil {
		return err
	}

	logger.From(ctx).Info("método MFA habilitado",
		logger.Layer("service"),
		logger.Component("mfa"),
		logger.IdentityID(identityID),
		logger.MFAMethod(string(method)),
	)
	return nil
}

// Disable deshabilita un método habilitado.
func (e *Engine) Disable(ctx context.Context, identityID string, method domain.MFAMethod) error {
	cfg, err := e.configs.GetByIdentityAndMethod(ctx, identityID, method)
	if err != nil {
		if repository.IsNotFound(err) {
			return domain.ErrMFANotConfigured
		}
		return err
	}
	if !cfg.Enabled {
		return domain.ErrMFANotConfigured
	}

	now := e.now().UTC()
	cfg.Disable(now)
	if err := e.configs.Update(ctx, cfg); err != nil {
		return err
	}

	ident, err := e.identities.Get(ctx, identityID)
	if err != nil {
		return err
	}
	ident.DisableMFAMethod(method, now)
	if err := e.identities.Update(ctx, ident); err != nil {
		return err
	}

	logger.From(ctx).Info("método MFA deshabilitado",
		logger.Layer("service"),
		logger.Component("mfa"),
		logger.IdentityID(identityID),
		logger.MFAMethod(string(method)),
	)
	return nil
}

// CreateChallenge genera y entrega un código de challenge para sms/email.
// Para TOTP no hay nada que entregar: el código vive en la app del usuario.
func (e *Engine) CreateChallenge(ctx context.Context, identityID string, method domain.MFAMethod) error {
	cfg, err := e.configs.GetByIdentityAndMethod(ctx, identityID, method)
	if err != nil {
		if repository.IsNotFound(err) {
			return domain.ErrMFANotConfigured
		}
		return err
	}
	switch method {
	case domain.MFATOTP, domain.MFABiometric, domain.MFABackupCode:
		if !cfg.Enabled {
			return domain.ErrMFANotConfigured
		}
		return nil
	case domain.MFASMS, domain.MFAEmail:
		// Con configuración pendiente también se emite: el enable requiere
		// verificar un código entregado por este mismo canal.
	default:
		return fmt.Errorf("mfa: método no soportado: %s", method)
	}

	ident, err := e.identities.Get(ctx, identityID)
	if err != nil {
		return err
	}

	code, err := e.random.NumericCode(e.opts.ChallengeDigits)
	if err != nil {
		return err
	}
	e.cache.Set(challengeKey(identityID, method), []byte(e.random.Hash(code)), e.opts.ChallengeTTL)

	switch method {
	case domain.MFASMS:
		err = e.sms.SendSMS(ctx, ident.Phone, fmt.Sprintf("Tu código de verificación es %s", code))
	case domain.MFAEmail:
		err = e.email.SendEmail(ctx, ident.Email, "Código de verificación",
			fmt.Sprintf("Tu código de verificación es %s. Expira en %d minutos.", code, int(e.opts.ChallengeTTL.Minutes())))
	}
	if err != nil {
		e.cache.Delete(challengeKey(identityID, method))
		return err
	}

	logger.From(ctx).Info("challenge MFA enviado",
		logger.Layer("service"),
		logger.Component("mfa"),
		logger.IdentityID(identityID),
		logger.MFAMethod(string(method)),
	)
	return nil
}

// VerifyChallenge valida un código contra un método habilitado. Retorna
// false (sin error) ante un código incorrecto; error solo por fallas de
// infraestructura o método sin configurar.
func (e *Engine) VerifyChallenge(ctx context.Context, identityID string, method domain.MFAMethod, code string) (bool, error) {
	cfg, err := e.configs.GetByIdentityAndMethod(ctx, identityID, method)
	if err != nil {
		if repository.IsNotFound(err) {
			return false, domain.ErrMFANotConfigured
		}
		return false, err
	}
	if !cfg.Enabled {
		return false, domain.ErrMFANotConfigured
	}

	ok, err := e.verifyCode(ctx, cfg, code)
	if err != nil || !ok {
		return false, err
	}

	cfg.TouchUsed(e.now().UTC())
	if err := e.configs.Update(ctx, cfg); err != nil {
		return false, err
	}
	return true, nil
}

// GenerateBackupCodes emite una tanda nueva de backup codes de un solo uso,
// invalidando los anteriores. Los códigos en claro se retornan una sola vez;
// solo sus hashes quedan persistidos.
func (e *Engine) GenerateBackupCodes(ctx context.Context, identityID string) ([]string, error) {
	ident, err := e.identities.Get(ctx, identityID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, err
	}
	if len(ident.EnabledMFAMethods) == 0 {
		return nil, domain.ErrMFANotConfigured
	}

	now := e.now().UTC()
	cfg, err := e.configs.GetByIdentityAndMethod(ctx, identityID, domain.MFABackupCode)
	if err != nil {
		if !repository.IsNotFound(err) {
			return nil, err
		}
		cfg = &domain.MFAConfiguration{
			ID:         uuid.NewString(),
			IdentityID: identityID,
			Method:     domain.MFABackupCode,
			Enabled:    true,
			CreatedAt:  now,
		}
		if err := e.configs.Create(ctx, cfg); err != nil {
			return nil, err
		}
	}

	codes := make([]string, 0, e.opts.BackupCodeCount)
	hashes := make([]string, 0, e.opts.BackupCodeCount)
	for i := 0; i < e.opts.BackupCodeCount; i++ {
		code, err := e.random.RandomString(8)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
		hashes = append(hashes, e.random.Hash(code))
	}

	cfg.Enabled = true
	cfg.SetBackupCodes(hashes, now)
	if err := e.configs.Update(ctx, cfg); err != nil {
		return nil, err
	}

	logger.From(ctx).Info("backup codes regenerados",
		logger.Layer("service"),
		logger.Component("mfa"),
		logger.IdentityID(identityID),
		logger.Count(len(codes)),
	)
	return codes, nil
}

// ListMethods retorna las configuraciones MFA de una identidad.
func (e *Engine) ListMethods(ctx context.Context, identityID string) ([]*domain.MFAConfiguration, error) {
	return e.configs.ListByIdentity(ctx, identityID)
}

func (e *Engine) verifyCode(ctx context.Context, cfg *domain.MFAConfiguration, code string) (bool, error) {
	switch cfg.Method {
	case domain.MFATOTP:
		return totp.ValidateCustom(code, cfg.Secret, e.now().UTC(), totp.ValidateOpts{
			Period:    30,
			Skew:      e.opts.TOTPWindow,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
	case domain.MFASMS, domain.MFAEmail:
		key := challengeKey(cfg.IdentityID, cfg.Method)
		stored, ok := e.cache.Get(key)
		if !ok {
			return false, nil
		}
		if string(stored) != e.random.Hash(code) {
			return false, nil
		}
		// Un challenge se consume con su primera verificación exitosa.
		e.cache.Delete(key)
		return true, nil
	case domain.MFABiometric:
		// La comparación biométrica ocurre en la capa de evidencia; acá solo
		// se exige que el método esté habilitado.
		return true, nil
	case domain.MFABackupCode:
		if !cfg.ConsumeBackupCode(e.random.Hash(code), e.now().UTC()) {
			return false, nil
		}
		if err := e.configs.Update(ctx, cfg); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, fmt.Errorf("mfa: método no soportado: %s", cfg.Method)
	}
}

func challengeKey(identityID string, method domain.MFAMethod) string {
	return fmt.Sprintf("mfa:challenge:%s:%s", identityID, method)
}
