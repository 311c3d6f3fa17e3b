package provision

import (
	"sync"
	"time"

	"github.com/halcyonlabs/idcore/internal/metrics"
)

// BreakerState es el estado del circuit breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker es el circuit breaker de provisioning. Es un objeto explícito e
// inyectable (no estado global): los tests lo resetean creando uno nuevo y
// un despliegue multi-instancia puede reemplazarlo por uno respaldado en un
// store compartido.
//
// Transiciones: closed → open al llegar a threshold fallos consecutivos;
// open → half-open al vencer el cooldown (se permite exactamente una llamada
// de prueba); half-open → closed con éxito, half-open → open con fallo.
type Breaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration

	state       BreakerState
	openedAt    time.Time
	consecutive int

	lastSuccess *time.Time
	lastFailure *time.Time
	lastError   string

	now func() time.Time
}

// NewBreaker crea un breaker cerrado.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow decide si una llamada puede salir. En open, al vencer el cooldown
// transiciona a half-open y deja pasar una sola llamada de prueba; las demás
// siguen bloqueadas hasta que esa prueba resuelva.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if b.now().Sub(b.openedAt) >= b.cooldown {
			b.state = BreakerHalfOpen
			return true
		}
		return false
	case BreakerHalfOpen:
		// Prueba en vuelo: una sola llamada a la vez.
		return false
	}
	return true
}

// RecordSuccess cierra el breaker y resetea el contador.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutive = 0
	b.state = BreakerClosed
	t := b.now()
	b.lastSuccess = &t

	metrics.ProvisionBreakerState.Set(0)
	metrics.ProvisionConsecutiveFailures.Set(0)
}

// RecordFailure acumula un fallo. Un fallo en half-open reabre de inmediato;
// en closed abre al alcanzar el umbral.
func (b *Breaker) RecordFailure(errMsg string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutive++
	t := b.now()
	b.lastFailure = &t
	b.lastError = errMsg
	metrics.ProvisionConsecutiveFailures.Set(float64(b.consecutive))

	switch {
	case b.state == BreakerHalfOpen:
		b.state = BreakerOpen
		b.openedAt = t
		metrics.ProvisionBreakerState.Set(1)
	case b.state == BreakerClosed && b.threshold > 0 && b.consecutive >= b.threshold:
		b.state = BreakerOpen
		b.openedAt = t
		metrics.ProvisionBreakerState.Set(1)
	}
}

// IsOpen indica si el breaker está abierto (fail-fast vigente).
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == BreakerOpen && b.now().Sub(b.openedAt) < b.cooldown
}

// Snapshot retorna una copia consistente del estado para health/observabilidad.
func (b *Breaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{
		State:               b.state,
		ConsecutiveFailures: b.consecutive,
		LastSuccess:         b.lastSuccess,
		LastFailure:         b.lastFailure,
		LastError:           b.lastError,
		Threshold:           b.threshold,
	}
}

// BreakerSnapshot es una vista inmutable del breaker.
type BreakerSnapshot struct {
	State               BreakerState
	ConsecutiveFailures int
	LastSuccess         *time.Time
	LastFailure         *time.Time
	LastError           string
	Threshold           int
}
