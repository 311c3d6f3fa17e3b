package mfa

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	cachemem "github.com/halcyonlabs/idcore/internal/cache/memory"
	"github.com/halcyonlabs/idcore/internal/domain"
	"github.com/halcyonlabs/idcore/internal/security/randstr"
	"github.com/halcyonlabs/idcore/internal/store/memory"
)

// capturingSender guarda el último mensaje enviado para que el test pueda
// extraer el código entregado.
type capturingSender struct {
	lastTo   string
	lastBody string
}

func (c *capturingSender) SendSMS(ctx context.Context, to, message string) error {
	c.lastTo, c.lastBody = to, message
	return nil
}

func (c *capturingSender) SendEmail(ctx context.Context, to, subject, body string) error {
	c.lastTo, c.lastBody = to, body
	return nil
}

func (c *capturingSender) code() string {
	// Los cuerpos tienen la forma "Tu código de verificación es NNNNNN...".
	fields := strings.Fields(c.lastBody)
	for _, f := range fields {
		f = strings.TrimSuffix(f, ".")
		if len(f) == 6 && strings.IndexFunc(f, func(r rune) bool { return r < '0' || r > '9' }) == -1 {
			return f
		}
	}
	return ""
}

type testEnv struct {
	engine     *Engine
	identities *memory.IdentityRepo
	sender     *capturingSender
	now        time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		identities: memory.NewIdentityRepo(),
		sender:     &capturingSender{},
		now:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	env.engine = NewEngine(Deps{
		Identities: env.identities,
		Configs:    memory.NewMFARepo(),
		Cache:      cachemem.New(10 * time.Minute),
		Email:      env.sender,
		SMS:        env.sender,
		Random:     randstr.New(),
		Now:        func() time.Time { return env.now },
	})
	return env
}

func (env *testEnv) seed(t *testing.T, ident *domain.Identity) {
	t.Helper()
	if err := env.identities.Create(context.Background(), ident); err != nil {
		t.Fatalf("seed identity: %v", err)
	}
}

func TestTOTPLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, &domain.Identity{ID: "id-1", Username: "u1"})
	ctx := context.Background()

	res, err := env.engine.Setup(ctx, "id-1", domain.MFATOTP)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if res.Secret == "" || res.OTPAuthURL == "" {
		t.Fatal("setup TOTP sin secret/URL")
	}

	// Código inválido: el método no se habilita.
	if err := env.engine.Enable(ctx, "id-1", domain.MFATOTP, "000000"); !errors.Is(err, domain.ErrInvalidVerificationCode) {
		t.Fatalf("Enable con código inválido: err = %v", err)
	}

	code, err := totp.GenerateCode(res.Secret, env.now)
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if err := env.engine.Enable(ctx, "id-1", domain.MFATOTP, code); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	// Re-setup de un método habilitado se rechaza.
	if _, err := env.engine.Setup(ctx, "id-1", domain.MFATOTP); !errors.Is(err, domain.ErrMFAAlreadyConfigured) {
		t.Fatalf("Setup repetido: err = %v", err)
	}

	ok, err := env.engine.VerifyChallenge(ctx, "id-1", domain.MFATOTP, code)
	if err != nil {
		t.Fatalf("VerifyChallenge: %v", err)
	}
	if !ok {
		t.Fatal("código TOTP válido rechazado")
	}
	ok, err = env.engine.VerifyChallenge(ctx, "id-1", domain.MFATOTP, "111111")
	if err != nil {
		t.Fatalf("VerifyChallenge: %v", err)
	}
	if ok {
		t.Fatal("código TOTP inválido aceptado")
	}

	if err := env.engine.Disable(ctx, "id-1", domain.MFATOTP); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if err := env.engine.Disable(ctx, "id-1", domain.MFATOTP); !errors.Is(err, domain.ErrMFANotConfigured) {
		t.Fatalf("Disable repetido: err = %v", err)
	}
	if _, err := env.engine.VerifyChallenge(ctx, "id-1", domain.MFATOTP, code); !errors.Is(err, domain.ErrMFANotConfigured) {
		t.Fatalf("verify tras disable: err = %v", err)
	}

	ident, _ := env.identities.Get(ctx, "id-1")
	if len(ident.EnabledMFAMethods) != 0 {
		t.Fatalf("EnabledMFAMethods = %v tras disable", ident.EnabledMFAMethods)
	}
}

func TestSetupUnknownIdentity(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.Setup(context.Background(), "nope", domain.MFATOTP); !errors.Is(err, domain.ErrIdentityNotFound) {
		t.Fatalf("Setup sin identidad: err = %v", err)
	}
}

func TestSetupSMSRequiresPhone(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, &domain.Identity{ID: "id-1", Username: "u1"})
	if _, err := env.engine.Setup(context.Background(), "id-1", domain.MFASMS); err == nil {
		t.Fatal("setup SMS sin teléfono debía fallar")
	}
}

func TestSMSChallengeFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, &domain.Identity{ID: "id-1", Username: "u1", Phone: "+5491100000000"})
	ctx := context.Background()

	if _, err := env.engine.Setup(ctx, "id-1", domain.MFASMS); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	// El enable se verifica con un código entregado por el mismo canal.
	if err := env.engine.CreateChallenge(ctx, "id-1", domain.MFASMS); err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}
	code := env.sender.code()
	if code == "" {
		t.Fatalf("no se pudo extraer el código del mensaje %q", env.sender.lastBody)
	}
	if err := env.engine.Enable(ctx, "id-1", domain.MFASMS, code); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	// Challenge post-enable: un código es de un solo uso.
	if err := env.engine.CreateChallenge(ctx, "id-1", domain.MFASMS); err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}
	code = env.sender.code()
	ok, err := env.engine.VerifyChallenge(ctx, "id-1", domain.MFASMS, code)
	if err != nil || !ok {
		t.Fatalf("VerifyChallenge: ok=%v err=%v", ok, err)
	}
	ok, err = env.engine.VerifyChallenge(ctx, "id-1", domain.MFASMS, code)
	if err != nil {
		t.Fatalf("VerifyChallenge: %v", err)
	}
	if ok {
		t.Fatal("un challenge consumido no puede verificar de nuevo")
	}
}

func TestBackupCodesSingleUse(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, &domain.Identity{ID: "id-1", Username: "u1"})
	ctx := context.Background()

	// Sin ningún método habilitado no se emiten backup codes.
	if _, err := env.engine.GenerateBackupCodes(ctx, "id-1"); !errors.Is(err, domain.ErrMFANotConfigured) {
		t.Fatalf("GenerateBackupCodes sin MFA: err = %v", err)
	}

	res, err := env.engine.Setup(ctx, "id-1", domain.MFATOTP)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	code, _ := totp.GenerateCode(res.Secret, env.now)
	if err := env.engine.Enable(ctx, "id-1", domain.MFATOTP, code); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	codes, err := env.engine.GenerateBackupCodes(ctx, "id-1")
	if err != nil {
		t.Fatalf("GenerateBackupCodes: %v", err)
	}
	if len(codes) != 10 {
		t.Fatalf("codes = %d, quería 10", len(codes))
	}

	ok, err := env.engine.VerifyChallenge(ctx, "id-1", domain.MFABackupCode, codes[0])
	if err != nil || !ok {
		t.Fatalf("backup code válido: ok=%v err=%v", ok, err)
	}
	ok, err = env.engine.VerifyChallenge(ctx, "id-1", domain.MFABackupCode, codes[0])
	if err != nil {
		t.Fatalf("VerifyChallenge: %v", err)
	}
	if ok {
		t.Fatal("un backup code es de un solo uso")
	}

	// El resto de la tanda sigue siendo válido.
	ok, err = env.engine.VerifyChallenge(ctx, "id-1", domain.MFABackupCode, codes[1])
	if err != nil || !ok {
		t.Fatalf("segundo backup code: ok=%v err=%v", ok, err)
	}

	// Una tanda nueva invalida la anterior.
	fresh, err := env.engine.GenerateBackupCodes(ctx, "id-1")
	if err != nil {
		t.Fatalf("GenerateBackupCodes: %v", err)
	}
	ok, err = env.engine.VerifyChallenge(ctx, "id-1", domain.MFABackupCode, codes[2])
	if err != nil {
		t.Fatalf("VerifyChallenge: %v", err)
	}
	if ok {
		t.Fatal("la tanda vieja debía quedar invalidada")
	}
	ok, err = env.engine.VerifyChallenge(ctx, "id-1", domain.MFABackupCode, fresh[0])
	if err != nil || !ok {
		t.Fatalf("tanda nueva: ok=%v err=%v", ok, err)
	}
}
