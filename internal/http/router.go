// Package http expone el core por JSON sobre chi. Es una capa fina: valida
// entrada, delega en los servicios y mapea la taxonomía de errores a status
// codes. El framing no es contrato; la semántica vive en los servicios.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/halcyonlabs/idcore/internal/auth"
	"github.com/halcyonlabs/idcore/internal/identity"
	"github.com/halcyonlabs/idcore/internal/mfa"
	"github.com/halcyonlabs/idcore/internal/provision"
	"github.com/halcyonlabs/idcore/internal/rate"
	"github.com/halcyonlabs/idcore/internal/rbac"
)

// Deps son los servicios que el router expone.
type Deps struct {
	Auth        *auth.Coordinator
	Identity    *identity.Service
	MFA         *mfa.Engine
	Resolver    *rbac.Resolver
	RBACAdmin   *rbac.Admin
	Provisioner *provision.Provisioner

	// Limiter frena fuerza bruta sobre /v1/auth; nil deshabilita el límite.
	Limiter rate.Limiter

	// Registry para /metrics; nil usa el registry global.
	Registry *prometheus.Registry
}

// NewRouter arma el router con la cadena de middleware estándar.
func NewRouter(d Deps) http.Handler {
	h := &handlers{d: d}

	r := chi.NewRouter()
	r.Use(WithRequestID)
	r.Use(WithLogging)
	r.Use(WithRecover)
	r.Use(WithSecurityHeaders)

	r.Get("/healthz", h.health)
	r.Get("/healthz/provisioning", h.provisioningHealth)
	if d.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	} else {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			if d.Limiter != nil {
				r.Use(WithRateLimit(d.Limiter))
			}
			r.Post("/sign-in/password", h.signInPassword)
			r.Post("/sign-in/biometric", h.signInBiometric)
			r.Post("/sign-in/did", h.signInDID)
			r.Post("/sign-in/federated", h.signInFederated)
			r.Post("/sign-in/service", h.signInService)
			r.Post("/sign-out", h.signOut)
			r.Post("/refresh", h.refresh)
		})

		r.Route("/identities", func(r chi.Router) {
			r.Post("/", h.createIdentity)
			r.Get("/{id}", h.getIdentity)
			r.Delete("/{id}", h.revokeIdentity)
			r.Post("/{id}/unlock", h.unlockIdentity)
			r.Post("/{id}/confirm-email", h.confirmEmail)
			r.Post("/{id}/confirm-phone", h.confirmPhone)
			r.Put("/{id}/biometric", h.updateBiometric)
			r.Post("/{id}/provisioning/retry", h.retryProvisioning)

			r.Route("/{id}/mfa", func(r chi.Router) {
				r.Get("/", h.listMFA)
				r.Post("/{method}/setup", h.setupMFA)
				r.Post("/{method}/enable", h.enableMFA)
				r.Post("/{method}/disable", h.disableMFA)
				r.Post("/{method}/challenge", h.createChallenge)
				r.Post("/{method}/verify", h.verifyChallenge)
				r.Post("/backup-codes", h.generateBackupCodes)
			})

			r.Get("/{id}/permissions", h.identityPermissions)
			r.Get("/{id}/permissions/{name}/check", h.checkPermission)
			r.Get("/{id}/roles", h.identityRoles)
		})

		r.Route("/rbac", func(r chi.Router) {
			r.Post("/permissions", h.createPermission)
			r.Get("/permissions", h.listPermissions)
			r.Get("/permissions/{id}", h.getPermission)
			r.Put("/permissions/{id}", h.updatePermission)
			r.Delete("/permissions/{id}", h.deletePermission)

			r.Post("/roles", h.createRole)
			r.Get("/roles", h.listRoles)
			r.Get("/roles/{id}", h.getRole)
			r.Put("/roles/{id}", h.updateRole)
			r.Delete("/roles/{id}", h.deleteRole)

			r.Post("/identities/{id}/permissions/{permissionID}", h.grantPermission)
			r.Delete("/identities/{id}/permissions/{permissionID}", h.revokePermission)
			r.Post("/identities/{id}/roles/{roleID}", h.grantRole)
			r.Delete("/identities/{id}/roles/{roleID}", h.revokeRole)
		})
	})
	return r
}

type handlers struct{ d Deps }
