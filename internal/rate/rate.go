// Package rate limita la tasa de intentos sobre los endpoints de
// autenticación. El algoritmo es ventana fija: barato, suficiente para
// frenar fuerza bruta distribuida por encima del lockout por identidad.
package rate

import (
	"context"
	"time"
)

// Result es el veredicto de un intento.
type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter decide si un intento identificado por key (típicamente la IP del
// cliente) se admite dentro de la ventana vigente.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}
