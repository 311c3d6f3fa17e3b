package provision

import (
	"context"
	"math/rand"
	"time"

	"github.com/halcyonlabs/idcore/internal/domain"
	"github.com/halcyonlabs/idcore/internal/domain/repository"
	"github.com/halcyonlabs/idcore/internal/metrics"
	"github.com/halcyonlabs/idcore/internal/observability/logger"
)

// AccountClient crea la cuenta externa asociada a una identidad.
type AccountClient interface {
	CreateAccount(ctx context.Context, identityID, currency string) (address string, err error)
}

// Options controla reintentos y breaker del provisioner.
type Options struct {
	Currency          string
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            bool
}

// Result es el desenlace de un intento de provisioning.
type Result struct {
	Success            bool
	Address            string
	AlreadyProvisioned bool
	Attempts           int
	Err                error
}

// HealthStatus resume la salud del canal de provisioning.
type HealthStatus struct {
	IsHealthy           bool       `json:"is_healthy"`
	CircuitOpen         bool       `json:"circuit_open"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
	LastFailure         *time.Time `json:"last_failure,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
}

// Deps son las dependencias del provisioner.
type Deps struct {
	Identities repository.IdentityRepository
	Client     AccountClient
	Breaker    *Breaker
	Options    Options
}

// Provisioner crea cuentas externas con reintentos, backoff exponencial y
// circuit breaker. El resultado de cada intento queda registrado en el
// ProvisioningState de la identidad para que el sweeper pueda reintentar.
type Provisioner struct {
	identities repository.IdentityRepository
	client     AccountClient
	breaker    *Breaker
	opts       Options
}

// NewProvisioner crea el provisioner.
func NewProvisioner(d Deps) *Provisioner {
	if d.Options.MaxAttempts <= 0 {
		d.Options.MaxAttempts = 1
	}
	if d.Options.InitialDelay <= 0 {
		d.Options.InitialDelay = 500 * time.Millisecond
	}
	if d.Options.MaxDelay <= 0 {
		d.Options.MaxDelay = 10 * time.Second
	}
	if d.Options.BackoffMultiplier < 1 {
		d.Options.BackoffMultiplier = 2
	}
	if d.Options.Currency == "" {
		d.Options.Currency = "USD"
	}
	if d.Breaker == nil {
		d.Breaker = NewBreaker(5, time.Minute)
	}
	return &Provisioner{
		identities: d.Identities,
		client:     d.Client,
		breaker:    d.Breaker,
		opts:       d.Options,
	}
}

// EnsureAccount garantiza que la identidad tenga cuenta externa. Es
// idempotente: si ya está aprovisionada retorna la dirección existente sin
// tocar al cliente. Con el breaker abierto falla rápido sin invocarlo.
func (p *Provisioner) EnsureAccount(ctx context.Context, ident *domain.Identity) Result {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("provision"),
		logger.Op("EnsureAccount"),
		logger.IdentityID(ident.ID),
	)

	if ident.Provisioning.Provisioned() {
		return Result{Success: true, Address: ident.Provisioning.Address, AlreadyProvisioned: true}
	}

	if !p.breaker.Allow() {
		log.Warn("circuito abierto, provisioning rechazado sin invocar al cliente")
		metrics.ProvisionAttemptsTotal.WithLabelValues("circuit_open").Inc()
		p.markFailure(ctx, ident, domain.ErrCircuitOpen.Error())
		return Result{Success: false, Err: domain.ErrCircuitOpen}
	}

	start := time.Now()
	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		attempts = attempt
		address, err := p.client.CreateAccount(ctx, ident.ID, p.opts.Currency)
		if err == nil {
			p.breaker.RecordSuccess()
			metrics.ProvisionAttemptsTotal.WithLabelValues("success").Inc()
			metrics.ProvisionDuration.Observe(time.Since(start).Seconds())
			p.markSuccess(ctx, ident, address)
			log.Info("cuenta externa creada",
				logger.Address(address),
				logger.Attempt(attempt),
			)
			return Result{Success: true, Address: address, Attempts: attempt}
		}

		lastErr = err
		p.breaker.RecordFailure(err.Error())
		log.Warn("intento de provisioning fallido",
			logger.Attempt(attempt),
			logger.Err(err),
		)

		if p.breaker.IsOpen() {
			// El umbral se alcanzó durante los reintentos; no insistimos.
			break
		}
		if attempt == p.opts.MaxAttempts {
			break
		}

		metrics.ProvisionRetriesTotal.Inc()
		select {
		case <-ctx.Done():
			p.markFailure(ctx, ident, ctx.Err().Error())
			metrics.ProvisionAttemptsTotal.WithLabelValues("failed").Inc()
			return Result{Success: false, Attempts: attempt, Err: ctx.Err()}
		case <-time.After(p.backoff(attempt)):
		}
	}

	metrics.ProvisionAttemptsTotal.WithLabelValues("failed").Inc()
	metrics.ProvisionDuration.Observe(time.Since(start).Seconds())
	p.markFailure(ctx, ident, lastErr.Error())
	return Result{Success: false, Attempts: attempts, Err: domain.ErrProvisioningFailed}
}

// RetryFailed reintenta el provisioning de una identidad marcada como fallida.
func (p *Provisioner) RetryFailed(ctx context.Context, ident *domain.Identity) Result {
	if ident.Provisioning != nil {
		now := time.Now().UTC()
		ident.Provisioning.LastRetryAt = &now
	}
	return p.EnsureAccount(ctx, ident)
}

// SweepFailed recorre identidades con provisioning fallido y las reintenta.
// Retorna cuántas quedaron aprovisionadas en esta pasada.
func (p *Provisioner) SweepFailed(ctx context.Context, limit int) (recovered int, err error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("provision"),
		logger.Op("SweepFailed"),
	)

	failed, err := p.identities.ListProvisioningFailed(ctx, limit)
	if err != nil {
		return 0, err
	}
	for _, ident := range failed {
		res := p.RetryFailed(ctx, ident)
		if res.Success {
			recovered++
			continue
		}
		if res.Err == domain.ErrCircuitOpen {
			// Sin sentido seguir barriendo con el circuito abierto.
			break
		}
	}
	log.Info("barrido de provisioning completado",
		logger.Int("pending", len(failed)),
		logger.Int("recovered", recovered),
	)
	return recovered, nil
}

// GetFailedAccountCreations lista identidades con provisioning pendiente de reintento.
func (p *Provisioner) GetFailedAccountCreations(ctx context.Context, limit int) ([]*domain.Identity, error) {
	return p.identities.ListProvisioningFailed(ctx, limit)
}

// Health reporta el estado del breaker para el endpoint de salud.
func (p *Provisioner) Health() HealthStatus {
	snap := p.breaker.Snapshot()
	open := snap.State == BreakerOpen
	healthy := !open && (snap.Threshold <= 0 || snap.ConsecutiveFailures < snap.Threshold/2+1)
	return HealthStatus{
		IsHealthy:           healthy,
		CircuitOpen:         open,
		ConsecutiveFailures: snap.ConsecutiveFailures,
		LastSuccess:         snap.LastSuccess,
		LastFailure:         snap.LastFailure,
		LastError:           snap.LastError,
	}
}

func (p *Provisioner) backoff(attempt int) time.Duration {
	d := float64(p.opts.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= p.opts.BackoffMultiplier
	}
	if max := float64(p.opts.MaxDelay); d > max {
		d = max
	}
	if p.opts.Jitter {
		// ±25% para desincronizar reintentos concurrentes.
		d = d * (0.75 + rand.Float64()*0.5)
	}
	return time.Duration(d)
}

func (p *Provisioner) markSuccess(ctx context.Context, ident *domain.Identity, address string) {
	if ident.Provisioning == nil {
		ident.Provisioning = &domain.ProvisioningState{}
	}
	ident.Provisioning.RecordSuccess(address, p.opts.Currency, time.Now().UTC())
	if err := p.identities.Update(ctx, ident); err != nil {
		logger.From(ctx).Warn("no se pudo persistir el estado de provisioning",
			logger.Component("provision"),
			logger.IdentityID(ident.ID),
			logger.Err(err),
		)
	}
}

func (p *Provisioner) markFailure(ctx context.Context, ident *domain.Identity, msg string) {
	if ident.Provisioning == nil {
		ident.Provisioning = &domain.ProvisioningState{}
	}
	ident.Provisioning.RecordFailure(msg, time.Now().UTC())
	if err := p.identities.Update(ctx, ident); err != nil {
		logger.From(ctx).Warn("no se pudo persistir el estado de provisioning",
			logger.Component("provision"),
			logger.IdentityID(ident.ID),
			logger.Err(err),
		)
	}
}
