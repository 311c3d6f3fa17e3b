package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/halcyonlabs/idcore/internal/auth"
	cachemem "github.com/halcyonlabs/idcore/internal/cache/memory"
	"github.com/halcyonlabs/idcore/internal/identity"
	"github.com/halcyonlabs/idcore/internal/jwt"
	"github.com/halcyonlabs/idcore/internal/mfa"
	"github.com/halcyonlabs/idcore/internal/notify"
	"github.com/halcyonlabs/idcore/internal/rbac"
	"github.com/halcyonlabs/idcore/internal/security/password"
	"github.com/halcyonlabs/idcore/internal/session"
	storemem "github.com/halcyonlabs/idcore/internal/store/memory"
)

// newTestServer levanta el router completo sobre el store en memoria, sin
// provisioner ni evidence signer (ambos opcionales).
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := storemem.New()
	issuer, err := jwt.NewIssuer("idcore-test", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	pol := password.ForScheme("sha512")

	sessions := session.NewManager(session.Deps{Sessions: store.Sessions})
	coord := auth.NewCoordinator(auth.Deps{
		Identities: store.Identities,
		Sessions:   sessions,
		Issuer:     issuer,
		Password:   pol,
		Options: auth.Options{
			LockoutThreshold: 3,
			LockoutDuration:  15 * time.Minute,
		},
	})
	idents := identity.NewService(identity.Deps{
		Identities: store.Identities,
		Password:   pol,
	})
	engine := mfa.NewEngine(mfa.Deps{
		Identities: store.Identities,
		Configs:    store.MFA,
		Cache:      cachemem.New(time.Minute),
		Email:      notify.NewEmailSender("", 0, "", "", ""),
		SMS:        notify.NewHTTPSMSSender("", ""),
		Options:    mfa.Options{TOTPWindow: 1},
	})

	srv := httptest.NewServer(NewRouter(Deps{
		Auth:      coord,
		Identity:  idents,
		MFA:       engine,
		Resolver:  rbac.NewResolver(store.RBAC),
		RBACAdmin: rbac.NewAdmin(store.RBAC),
		Registry:  prometheus.NewRegistry(),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err, "POST %s", url)
	return resp
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "%s %s", method, url)
	return resp
}

func wantStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status=%d want=%d body=%s", resp.StatusCode, want, b)
	}
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v), "decode body")
}

func wantErrorCode(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	if resp.StatusCode != status {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status=%d want=%d body=%s", resp.StatusCode, status, b)
	}
	var e apiError
	decodeBody(t, resp, &e)
	if e.Error != code {
		t.Fatalf("error=%q want=%q (%s)", e.Error, code, e.ErrorDescription)
	}
}

type tokensResp struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	SessionID    string `json:"session_id"`
	IdentityID   string `json:"identity_id"`
}

func createTestIdentity(t *testing.T, base, username, pwd string) identityResp {
	t.Helper()
	resp := postJSON(t, base+"/v1/identities", createIdentityReq{
		Username: username,
		Password: pwd,
		Email:    username + "@example.com",
	})
	wantStatus(t, resp, http.StatusCreated)
	var out identityResp
	decodeBody(t, resp, &out)
	return out
}

// Flujo completo password: alta, sign-in, refresh con rotación, sign-out.
func TestPasswordAuthFlow(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL

	ident := createTestIdentity(t, base, "alice", "S3creta!larga")
	if ident.Status != "unverified" {
		t.Fatalf("status=%q want unverified", ident.Status)
	}

	var first tokensResp
	t.Run("sign-in", func(t *testing.T) {
		resp := postJSON(t, base+"/v1/auth/sign-in/password", signInPasswordReq{
			Username: "Alice", // el username se normaliza
			Password: "S3creta!larga",
		})
		wantStatus(t, resp, http.StatusOK)
		decodeBody(t, resp, &first)
		if first.AccessToken == "" || first.RefreshToken == "" || first.SessionID == "" {
			t.Fatalf("tokens incompletos: %+v", first)
		}
		if first.IdentityID != ident.ID {
			t.Fatalf("identity_id=%q want=%q", first.IdentityID, ident.ID)
		}
	})

	var rotated tokensResp
	t.Run("refresh rota ambos tokens y conserva la sesión", func(t *testing.T) {
		resp := postJSON(t, base+"/v1/auth/refresh", refreshReq{RefreshToken: first.RefreshToken})
		wantStatus(t, resp, http.StatusOK)
		decodeBody(t, resp, &rotated)
		if rotated.SessionID != first.SessionID {
			t.Fatalf("session_id cambió: %q -> %q", first.SessionID, rotated.SessionID)
		}
		if rotated.RefreshToken == first.RefreshToken || rotated.AccessToken == first.AccessToken {
			t.Fatal("los tokens no rotaron")
		}
	})

	t.Run("el refresh anterior queda muerto", func(t *testing.T) {
		resp := postJSON(t, base+"/v1/auth/refresh", refreshReq{RefreshToken: first.RefreshToken})
		wantErrorCode(t, resp, http.StatusUnauthorized, "invalid_token")
	})

	t.Run("sign-out idempotente", func(t *testing.T) {
		resp := postJSON(t, base+"/v1/auth/sign-out", signOutReq{SessionID: first.SessionID})
		wantStatus(t, resp, http.StatusNoContent)
		resp.Body.Close()

		resp = postJSON(t, base+"/v1/auth/sign-out", signOutReq{SessionID: first.SessionID})
		wantStatus(t, resp, http.StatusNoContent)
		resp.Body.Close()
	})

	t.Run("refresh tras sign-out", func(t *testing.T) {
		resp := postJSON(t, base+"/v1/auth/refresh", refreshReq{RefreshToken: rotated.RefreshToken})
		wantErrorCode(t, resp, http.StatusUnauthorized, "invalid_token")
	})
}

func TestSignInFailuresAndLockout(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL

	ident := createTestIdentity(t, base, "bob", "Correct0!")

	t.Run("password incorrecto", func(t *testing.T) {
		resp := postJSON(t, base+"/v1/auth/sign-in/password", signInPasswordReq{
			Username: "bob", Password: "nope",
		})
		wantErrorCode(t, resp, http.StatusUnauthorized, "invalid_credentials")
	})

	t.Run("usuario inexistente", func(t *testing.T) {
		resp := postJSON(t, base+"/v1/auth/sign-in/password", signInPasswordReq{
			Username: "ghost", Password: "whatever",
		})
		wantErrorCode(t, resp, http.StatusUnauthorized, "invalid_credentials")
	})

	t.Run("lockout tras el umbral", func(t *testing.T) {
		// Ya hubo un fallo; dos más alcanzan el umbral de 3.
		for i := 0; i < 2; i++ {
			resp := postJSON(t, base+"/v1/auth/sign-in/password", signInPasswordReq{
				Username: "bob", Password: "nope",
			})
			wantErrorCode(t, resp, http.StatusUnauthorized, "invalid_credentials")
		}
		// El password correcto no saltea el lockout vigente.
		resp := postJSON(t, base+"/v1/auth/sign-in/password", signInPasswordReq{
			Username: "bob", Password: "Correct0!",
		})
		wantErrorCode(t, resp, http.StatusLocked, "account_locked")
	})

	t.Run("unlock administrativo restaura el acceso", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, base+"/v1/identities/"+ident.ID+"/unlock", nil)
		wantStatus(t, resp, http.StatusNoContent)
		resp.Body.Close()

		resp = postJSON(t, base+"/v1/auth/sign-in/password", signInPasswordReq{
			Username: "bob", Password: "Correct0!",
		})
		wantStatus(t, resp, http.StatusOK)
		resp.Body.Close()
	})
}

func TestIdentityEndpoints(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL

	ident := createTestIdentity(t, base, "carol", "S3creta!")

	t.Run("username duplicado", func(t *testing.T) {
		resp := postJSON(t, base+"/v1/identities", createIdentityReq{
			Username: "CAROL", Password: "otra",
		})
		wantErrorCode(t, resp, http.StatusConflict, "conflict")
	})

	t.Run("alta sin password", func(t *testing.T) {
		resp := postJSON(t, base+"/v1/identities", createIdentityReq{Username: "dave"})
		wantErrorCode(t, resp, http.StatusBadRequest, "invalid_request")
	})

	t.Run("get inexistente", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, base+"/v1/identities/no-such-id", nil)
		wantErrorCode(t, resp, http.StatusNotFound, "not_found")
	})

	t.Run("confirmaciones de contacto", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, base+"/v1/identities/"+ident.ID+"/confirm-email", nil)
		wantStatus(t, resp, http.StatusNoContent)
		resp.Body.Close()

		resp = doJSON(t, http.MethodGet, base+"/v1/identities/"+ident.ID, nil)
		wantStatus(t, resp, http.StatusOK)
		var got identityResp
		decodeBody(t, resp, &got)
		if !got.EmailConfirmed {
			t.Fatal("email_confirmed debería ser true")
		}
	})

	t.Run("revoke es terminal", func(t *testing.T) {
		resp := doJSON(t, http.MethodDelete, base+"/v1/identities/"+ident.ID, nil)
		wantStatus(t, resp, http.StatusNoContent)
		resp.Body.Close()

		resp = postJSON(t, base+"/v1/auth/sign-in/password", signInPasswordReq{
			Username: "carol", Password: "S3creta!",
		})
		wantErrorCode(t, resp, http.StatusForbidden, "identity_not_active")
	})
}

func TestRBACEndpoints(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL

	ident := createTestIdentity(t, base, "erin", "S3creta!")

	var perm permissionResp
	t.Run("crear permiso", func(t *testing.T) {
		resp := postJSON(t, base+"/v1/rbac/permissions", permissionReq{
			Name: "ledger.read", Description: "lectura del ledger",
		})
		wantStatus(t, resp, http.StatusCreated)
		decodeBody(t, resp, &perm)
		if perm.ID == "" || perm.Status != "active" {
			t.Fatalf("permiso inesperado: %+v", perm)
		}
	})

	t.Run("permiso duplicado", func(t *testing.T) {
		resp := postJSON(t, base+"/v1/rbac/permissions", permissionReq{Name: "Ledger.Read"})
		wantErrorCode(t, resp, http.StatusConflict, "conflict")
	})

	t.Run("permiso sin nombre", func(t *testing.T) {
		resp := postJSON(t, base+"/v1/rbac/permissions", permissionReq{})
		wantErrorCode(t, resp, http.StatusBadRequest, "invalid_request")
	})

	var role roleResp
	t.Run("crear rol con el permiso", func(t *testing.T) {
		resp := postJSON(t, base+"/v1/rbac/roles", roleReq{
			Name:          "auditor",
			PermissionIDs: []string{perm.ID},
		})
		wantStatus(t, resp, http.StatusCreated)
		decodeBody(t, resp, &role)
	})

	t.Run("rol con permiso inexistente", func(t *testing.T) {
		resp := postJSON(t, base+"/v1/rbac/roles", roleReq{
			Name: "broken", PermissionIDs: []string{"no-such-perm"},
		})
		wantErrorCode(t, resp, http.StatusNotFound, "not_found")
	})

	t.Run("grant de rol y resolución", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, base+"/v1/rbac/identities/"+ident.ID+"/roles/"+role.ID, nil)
		wantStatus(t, resp, http.StatusNoContent)
		resp.Body.Close()

		resp = doJSON(t, http.MethodGet, base+"/v1/identities/"+ident.ID+"/permissions", nil)
		wantStatus(t, resp, http.StatusOK)
		var perms []permissionResp
		decodeBody(t, resp, &perms)
		if len(perms) != 1 || perms[0].Name != "ledger.read" {
			t.Fatalf("permisos resueltos: %+v", perms)
		}
	})

	t.Run("check de permiso", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, base+"/v1/identities/"+ident.ID+"/permissions/ledger.read/check", nil)
		wantStatus(t, resp, http.StatusOK)
		var out map[string]bool
		decodeBody(t, resp, &out)
		if !out["allowed"] {
			t.Fatal("allowed debería ser true")
		}

		resp = doJSON(t, http.MethodGet, base+"/v1/identities/"+ident.ID+"/permissions/ledger.write/check", nil)
		wantStatus(t, resp, http.StatusOK)
		decodeBody(t, resp, &out)
		if out["allowed"] {
			t.Fatal("allowed debería ser false para un permiso no otorgado")
		}
	})

	t.Run("no se borra un permiso en uso", func(t *testing.T) {
		resp := doJSON(t, http.MethodDelete, base+"/v1/rbac/permissions/"+perm.ID, nil)
		wantErrorCode(t, resp, http.StatusConflict, "conflict")
	})

	t.Run("revoke de rol limpia la resolución", func(t *testing.T) {
		resp := doJSON(t, http.MethodDelete, base+"/v1/rbac/identities/"+ident.ID+"/roles/"+role.ID, nil)
		wantStatus(t, resp, http.StatusNoContent)
		resp.Body.Close()

		resp = doJSON(t, http.MethodGet, base+"/v1/identities/"+ident.ID+"/permissions", nil)
		wantStatus(t, resp, http.StatusOK)
		var perms []permissionResp
		decodeBody(t, resp, &perms)
		if len(perms) != 0 {
			t.Fatalf("permisos tras revoke: %+v", perms)
		}
	})

	t.Run("revoke repetido es estricto", func(t *testing.T) {
		resp := doJSON(t, http.MethodDelete, base+"/v1/rbac/identities/"+ident.ID+"/roles/"+role.ID, nil)
		wantErrorCode(t, resp, http.StatusNotFound, "not_found")
	})
}

func TestMFAEndpoints(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL

	ident := createTestIdentity(t, base, "frank", "S3creta!")

	var secret string
	t.Run("setup TOTP", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, base+"/v1/identities/"+ident.ID+"/mfa/totp/setup", nil)
		wantStatus(t, resp, http.StatusOK)
		var out map[string]string
		decodeBody(t, resp, &out)
		secret = out["secret"]
		if secret == "" || out["otpauth_url"] == "" {
			t.Fatalf("setup incompleto: %+v", out)
		}
	})

	t.Run("enable con código inválido", func(t *testing.T) {
		resp := postJSON(t, base+"/v1/identities/"+ident.ID+"/mfa/totp/enable", mfaCodeReq{Code: "000000"})
		wantErrorCode(t, resp, http.StatusUnauthorized, "invalid_credentials")
	})

	t.Run("enable con código válido", func(t *testing.T) {
		code, err := totp.GenerateCode(secret, time.Now())
		if err != nil {
			t.Fatalf("GenerateCode: %v", err)
		}
		resp := postJSON(t, base+"/v1/identities/"+ident.ID+"/mfa/totp/enable", mfaCodeReq{Code: code})
		wantStatus(t, resp, http.StatusNoContent)
		resp.Body.Close()
	})

	t.Run("listado refleja el método habilitado", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, base+"/v1/identities/"+ident.ID+"/mfa/", nil)
		wantStatus(t, resp, http.StatusOK)
		var out []struct {
			Method  string `json:"method"`
			Enabled bool   `json:"enabled"`
		}
		decodeBody(t, resp, &out)
		found := false
		for _, m := range out {
			if m.Method == "totp" && m.Enabled {
				found = true
			}
		}
		if !found {
			t.Fatalf("totp no figura habilitado: %+v", out)
		}
	})

	t.Run("verify de challenge TOTP", func(t *testing.T) {
		code, err := totp.GenerateCode(secret, time.Now())
		if err != nil {
			t.Fatalf("GenerateCode: %v", err)
		}
		resp := postJSON(t, base+"/v1/identities/"+ident.ID+"/mfa/totp/verify", mfaCodeReq{Code: code})
		wantStatus(t, resp, http.StatusOK)
		var out map[string]bool
		decodeBody(t, resp, &out)
		if !out["valid"] {
			t.Fatal("el código TOTP debería validar")
		}
	})

	t.Run("backup codes de un solo uso", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, base+"/v1/identities/"+ident.ID+"/mfa/backup-codes", nil)
		wantStatus(t, resp, http.StatusOK)
		var out map[string][]string
		decodeBody(t, resp, &out)
		codes := out["backup_codes"]
		if len(codes) == 0 {
			t.Fatal("sin backup codes")
		}

		resp = postJSON(t, base+"/v1/identities/"+ident.ID+"/mfa/backup_code/verify", mfaCodeReq{Code: codes[0]})
		wantStatus(t, resp, http.StatusOK)
		var ok map[string]bool
		decodeBody(t, resp, &ok)
		if !ok["valid"] {
			t.Fatal("el backup code debería validar la primera vez")
		}

		resp = postJSON(t, base+"/v1/identities/"+ident.ID+"/mfa/backup_code/verify", mfaCodeReq{Code: codes[0]})
		wantStatus(t, resp, http.StatusOK)
		decodeBody(t, resp, &ok)
		if ok["valid"] {
			t.Fatal("el backup code no debería validar dos veces")
		}
	})

	t.Run("disable", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, base+"/v1/identities/"+ident.ID+"/mfa/totp/disable", nil)
		wantStatus(t, resp, http.StatusNoContent)
		resp.Body.Close()
	})

	t.Run("setup para identidad inexistente", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, base+"/v1/identities/no-such-id/mfa/totp/setup", nil)
		wantErrorCode(t, resp, http.StatusNotFound, "not_found")
	})
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL

	resp := doJSON(t, http.MethodGet, base+"/healthz", nil)
	wantStatus(t, resp, http.StatusOK)
	var out map[string]string
	decodeBody(t, resp, &out)
	if out["status"] != "ok" {
		t.Fatalf("healthz: %+v", out)
	}

	// Sin provisioner configurado el health de provisioning reporta disabled.
	resp = doJSON(t, http.MethodGet, base+"/healthz/provisioning", nil)
	wantStatus(t, resp, http.StatusOK)
	decodeBody(t, resp, &out)
	if out["status"] != "disabled" {
		t.Fatalf("provisioning health: %+v", out)
	}

	resp = doJSON(t, http.MethodGet, base+"/metrics", nil)
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestRequestValidation(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL

	t.Run("content-type incorrecto", func(t *testing.T) {
		resp, err := http.Post(base+"/v1/auth/sign-in/password", "text/plain", bytes.NewReader([]byte("{}")))
		if err != nil {
			t.Fatal(err)
		}
		wantErrorCode(t, resp, http.StatusBadRequest, "invalid_json")
	})

	t.Run("body malformado", func(t *testing.T) {
		resp, err := http.Post(base+"/v1/auth/refresh", "application/json", bytes.NewReader([]byte("{nope")))
		if err != nil {
			t.Fatal(err)
		}
		wantErrorCode(t, resp, http.StatusBadRequest, "invalid_json")
	})

	t.Run("request-id propagado", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, base+"/healthz", nil)
		defer resp.Body.Close()
		if resp.Header.Get("X-Request-ID") == "" {
			t.Fatal("falta X-Request-ID en la respuesta")
		}
	})
}
