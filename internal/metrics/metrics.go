// Package metrics define los colectores Prometheus del core. Paquete
// standalone para evitar ciclos de import entre provision/auth y HTTP.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ─── Provisioning ───

	ProvisionAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "idcore_provision_account_creation_total",
		Help: "Intentos de creación de cuenta externa por resultado",
	}, []string{"status"}) // success | failed | circuit_open

	ProvisionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "idcore_provision_account_creation_duration_seconds",
		Help:    "Duración de la creación de cuenta externa",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	ProvisionRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "idcore_provision_retry_total",
		Help: "Reintentos de provisioning",
	})

	ProvisionBreakerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "idcore_provision_circuit_breaker_state",
		Help: "Estado del circuit breaker (0=closed, 1=open)",
	})

	ProvisionConsecutiveFailures = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "idcore_provision_consecutive_failures",
		Help: "Fallos consecutivos de provisioning",
	})

	// ─── Autenticación ───

	SignInTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "idcore_signin_total",
		Help: "Intentos de sign-in por método y resultado",
	}, []string{"method", "result"})

	SessionsIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "idcore_sessions_issued_total",
		Help: "Sesiones emitidas",
	})
)

// Register registra todos los colectores en el registry dado (default si nil).
// Tolera AlreadyRegisteredError para permitir re-wiring en tests.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		ProvisionAttemptsTotal,
		ProvisionDuration,
		ProvisionRetriesTotal,
		ProvisionBreakerState,
		ProvisionConsecutiveFailures,
		SignInTotal,
		SessionsIssuedTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
