package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/halcyonlabs/idcore/internal/domain"
	"github.com/halcyonlabs/idcore/internal/jwt"
	"github.com/halcyonlabs/idcore/internal/security/password"
	"github.com/halcyonlabs/idcore/internal/session"
	"github.com/halcyonlabs/idcore/internal/store/memory"
)

type testEnv struct {
	coord      *Coordinator
	identities *memory.IdentityRepo
	sessions   *memory.SessionRepo
	policy     password.Policy
	now        time.Time
}

func newTestEnv(t *testing.T, decoder ClaimsDecoder) *testEnv {
	t.Helper()
	issuer, err := jwt.NewIssuer("idcore-test", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	// El issuer firma con el reloj real: el reloj inyectado parte de ahora
	// para que los TTL de sesión sean comparables.
	env := &testEnv{
		identities: memory.NewIdentityRepo(),
		sessions:   memory.NewSessionRepo(),
		policy:     password.ForScheme("sha512"),
		now:        time.Now().UTC(),
	}
	clock := func() time.Time { return env.now }
	env.coord = NewCoordinator(Deps{
		Identities: env.identities,
		Sessions:   session.NewManager(session.Deps{Sessions: env.sessions, Now: clock}),
		Issuer:     issuer,
		Password:   env.policy,
		Options: Options{
			LockoutThreshold: 3,
			LockoutDuration:  15 * time.Minute,
		},
		FederatedDecoder: decoder,
		Now:              clock,
	})
	return env
}

func (env *testEnv) seedPasswordIdentity(t *testing.T, username, plain string) *domain.Identity {
	t.Helper()
	hash, err := env.policy.Hash(plain)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	ident := &domain.Identity{
		ID:           "id-" + username,
		Username:     username,
		PasswordHash: hash,
		Status:       domain.IdentityVerified,
	}
	if err := env.identities.Create(context.Background(), ident); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return ident
}

func TestPasswordSignIn(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedPasswordIdentity(t, "alice", "hunter2")
	ctx := context.Background()

	res, err := env.coord.SignIn(ctx, PasswordCredential{Username: "alice", Password: "hunter2"})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" || res.SessionID == "" {
		t.Fatalf("resultado incompleto: %+v", res)
	}
	if res.IdentityID != "id-alice" {
		t.Fatalf("IdentityID = %q", res.IdentityID)
	}

	stored, _ := env.identities.Get(ctx, "id-alice")
	if stored.LastLoginAt == nil {
		t.Fatal("LastLoginAt sin registrar")
	}
}

func TestPasswordSignInWrongPassword(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedPasswordIdentity(t, "alice", "hunter2")
	ctx := context.Background()

	if _, err := env.coord.SignIn(ctx, PasswordCredential{Username: "alice", Password: "nope"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("password incorrecto: err = %v", err)
	}
	stored, _ := env.identities.Get(ctx, "id-alice")
	if stored.FailedLoginAttempts != 1 {
		t.Fatalf("FailedLoginAttempts = %d", stored.FailedLoginAttempts)
	}

	// Username desconocido y credencial vacía dan el mismo sentinel.
	if _, err := env.coord.SignIn(ctx, PasswordCredential{Username: "ghost", Password: "x"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("username desconocido: err = %v", err)
	}
	if _, err := env.coord.SignIn(ctx, PasswordCredential{}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("credencial vacía: err = %v", err)
	}
}

func TestPasswordLockout(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedPasswordIdentity(t, "alice", "hunter2")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := env.coord.SignIn(ctx, PasswordCredential{Username: "alice", Password: "nope"}); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("intento %d: err = %v", i, err)
		}
	}

	// Con lockout vigente el password correcto revela el bloqueo...
	if _, err := env.coord.SignIn(ctx, PasswordCredential{Username: "alice", Password: "hunter2"}); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("password correcto bloqueado: err = %v", err)
	}
	// ...y el incorrecto sigue reportando credenciales inválidas.
	if _, err := env.coord.SignIn(ctx, PasswordCredential{Username: "alice", Password: "nope"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("password incorrecto bloqueado: err = %v", err)
	}

	// Vencido el lockout, el sign-in pasa y resetea el contador.
	env.now = env.now.Add(20 * time.Minute)
	if _, err := env.coord.SignIn(ctx, PasswordCredential{Username: "alice", Password: "hunter2"}); err != nil {
		t.Fatalf("SignIn tras lockout vencido: %v", err)
	}
	stored, _ := env.identities.Get(ctx, "id-alice")
	if stored.FailedLoginAttempts != 0 || stored.LockedUntil != nil {
		t.Fatalf("estado tras sign-in: attempts=%d locked=%v", stored.FailedLoginAttempts, stored.LockedUntil)
	}
}

func TestSignOutIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedPasswordIdentity(t, "alice", "hunter2")
	ctx := context.Background()

	res, err := env.coord.SignIn(ctx, PasswordCredential{Username: "alice", Password: "hunter2"})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	if err := env.coord.SignOut(ctx, res.SessionID); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if err := env.coord.SignOut(ctx, res.SessionID); err != nil {
		t.Fatalf("SignOut repetido: %v", err)
	}
	if err := env.coord.SignOut(ctx, "no-such-session"); err != nil {
		t.Fatalf("SignOut de sesión inexistente: %v", err)
	}
	if err := env.coord.SignOut(ctx, ""); err != nil {
		t.Fatalf("SignOut vacío: %v", err)
	}
}

func TestSignOutExpiredSessionStillRevokes(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedPasswordIdentity(t, "alice", "hunter2")
	ctx := context.Background()

	res, err := env.coord.SignIn(ctx, PasswordCredential{Username: "alice", Password: "hunter2"})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	// Vencida pero nunca revocada: el sign-out igual tiene que marcarla.
	env.now = env.now.Add(2 * time.Hour)
	if err := env.coord.SignOut(ctx, res.SessionID); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	s, err := env.sessions.Get(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !s.Revoked {
		t.Fatal("la sesión vencida quedó sin revocar")
	}
}

func TestRefreshRotates(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedPasswordIdentity(t, "alice", "hunter2")
	ctx := context.Background()

	res, err := env.coord.SignIn(ctx, PasswordCredential{Username: "alice", Password: "hunter2"})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	refreshed, err := env.coord.Refresh(ctx, res.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.SessionID != res.SessionID {
		t.Fatal("el refresh debe preservar la sesión")
	}
	if refreshed.RefreshToken == res.RefreshToken || refreshed.AccessToken == res.AccessToken {
		t.Fatal("ambos tokens deben rotar")
	}

	// El refresh viejo queda canjeado.
	if _, err := env.coord.Refresh(ctx, res.RefreshToken); !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("refresh canjeado: err = %v", err)
	}
	if _, err := env.coord.Refresh(ctx, ""); !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("refresh vacío: err = %v", err)
	}
}

func TestRefreshRevokedIdentity(t *testing.T) {
	env := newTestEnv(t, nil)
	ident := env.seedPasswordIdentity(t, "alice", "hunter2")
	ctx := context.Background()

	res, err := env.coord.SignIn(ctx, PasswordCredential{Username: "alice", Password: "hunter2"})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	ident.Revoke(env.now)
	if err := env.identities.Update(ctx, ident); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := env.coord.Refresh(ctx, res.RefreshToken); !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("refresh de identidad revocada: err = %v", err)
	}
}

func TestDIDSignIn(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	verified := &domain.Identity{ID: "id-1", Username: "u1", DID: "did:example:1", Status: domain.IdentityVerified}
	pending := &domain.Identity{ID: "id-2", Username: "u2", DID: "did:example:2", Status: domain.IdentityUnverified}
	_ = env.identities.Create(ctx, verified)
	_ = env.identities.Create(ctx, pending)

	res, err := env.coord.SignIn(ctx, DIDCredential{DID: "did:example:1"})
	if err != nil {
		t.Fatalf("SignIn DID: %v", err)
	}
	// Sesión de 24 horas para DID.
	if got := res.ExpiresAt.Sub(env.now); got < 23*time.Hour || got > 25*time.Hour {
		t.Fatalf("TTL DID = %v", got)
	}

	if _, err := env.coord.SignIn(ctx, DIDCredential{DID: "did:example:2"}); !errors.Is(err, domain.ErrIdentityNotActive) {
		t.Fatalf("DID sin verificar: err = %v", err)
	}
	if _, err := env.coord.SignIn(ctx, DIDCredential{DID: "did:example:999"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("DID desconocido: err = %v", err)
	}
}

func TestBiometricSignIn(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	template := []byte("template-bytes-000000000000000000")
	ident := &domain.Identity{
		ID:       "id-1",
		Username: "u1",
		Status:   domain.IdentityUnverified,
		Biometric: &domain.BiometricData{
			Type:     domain.BiometricFacial,
			Template: template,
		},
	}
	_ = env.identities.Create(ctx, ident)

	sample := &domain.BiometricData{Type: domain.BiometricFacial, Template: template}
	if _, err := env.coord.SignIn(ctx, BiometricCredential{IdentityID: "id-1", Sample: sample}); err != nil {
		t.Fatalf("SignIn biométrico: %v", err)
	}
	// El match exitoso promueve la identidad a Verified.
	stored, _ := env.identities.Get(ctx, "id-1")
	if stored.Status != domain.IdentityVerified {
		t.Fatalf("Status = %q tras match", stored.Status)
	}

	bad := &domain.BiometricData{Type: domain.BiometricFacial, Template: make([]byte, len(template))}
	if _, err := env.coord.SignIn(ctx, BiometricCredential{IdentityID: "id-1", Sample: bad}); !errors.Is(err, domain.ErrBiometricMismatch) {
		t.Fatalf("muestra ajena: err = %v", err)
	}
}

func TestFederatedAutoProvision(t *testing.T) {
	decoder := func(token string) (map[string]any, error) {
		return map[string]any{
			"oid":   "ext-sub-1",
			"email": "carol@example.com",
			"name":  "Carol",
		}, nil
	}
	env := newTestEnv(t, decoder)
	ctx := context.Background()

	res, err := env.coord.SignIn(ctx, FederatedCredential{Token: "idp-token"})
	if err != nil {
		t.Fatalf("SignIn federado: %v", err)
	}

	ident, err := env.identities.GetByFederatedSubject(ctx, "ext-sub-1")
	if err != nil {
		t.Fatalf("GetByFederatedSubject: %v", err)
	}
	if ident.Status != domain.IdentityVerified {
		t.Fatal("la identidad federada nace Verified")
	}
	if ident.Email != "carol@example.com" {
		t.Fatalf("Email = %q", ident.Email)
	}
	// Sesión de 8 horas para federado.
	if got := res.ExpiresAt.Sub(env.now); got < 7*time.Hour || got > 9*time.Hour {
		t.Fatalf("TTL federado = %v", got)
	}

	// El segundo sign-in reutiliza la identidad.
	res2, err := env.coord.SignIn(ctx, FederatedCredential{Token: "idp-token"})
	if err != nil {
		t.Fatalf("segundo SignIn federado: %v", err)
	}
	if res2.IdentityID != res.IdentityID {
		t.Fatal("el subject federado debe mapear siempre a la misma identidad")
	}
}

func TestServiceSignIn(t *testing.T) {
	decoder := func(token string) (map[string]any, error) {
		return map[string]any{"service_id": "svc-1"}, nil
	}
	env := newTestEnv(t, decoder)
	ctx := context.Background()

	_ = env.identities.Create(ctx, &domain.Identity{
		ID:        "id-svc",
		Username:  "svc",
		ServiceID: "svc-1",
		Status:    domain.IdentityVerified,
	})

	res, err := env.coord.SignIn(ctx, ServiceCredential{Token: "svc-token"})
	if err != nil {
		t.Fatalf("SignIn service: %v", err)
	}
	if res.IdentityID != "id-svc" {
		t.Fatalf("IdentityID = %q", res.IdentityID)
	}
	// Sesión de 1 hora para cuentas de servicio.
	if got := res.ExpiresAt.Sub(env.now); got < 50*time.Minute || got > 70*time.Minute {
		t.Fatalf("TTL service = %v", got)
	}
}

func TestKeyedMutexSerializes(t *testing.T) {
	km := newKeyedMutex()
	counter := 0
	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		go func() {
			unlock := km.Lock("k")
			counter++
			unlock()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 50; i++ {
		<-done
	}
	if counter != 50 {
		t.Fatalf("counter = %d", counter)
	}
}
