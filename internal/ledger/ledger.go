// Package ledger define el cliente del transaction-log externo. Desde la
// perspectiva del core es fire-and-forget: los fallos se loguean y jamás se
// propagan — crear una identidad tiene que funcionar con el ledger caído.
package ledger

import (
	"context"
	"time"
)

// Transaction es el registro de auditoría enviado al ledger.
type Transaction struct {
	Type          string            `json:"type"`
	EntityType    string            `json:"entity_type"`
	EntityID      string            `json:"entity_id"`
	Description   string            `json:"description"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	CorrelationID string            `json:"correlation_id,omitempty"`
}

// Client es el contrato del transaction-log.
type Client interface {
	// LogTransaction registra una transacción. Los implementadores pueden
	// retornar error, pero los callers del core lo tratan como best-effort.
	LogTransaction(ctx context.Context, tx Transaction) error
}

// Noop descarta todas las transacciones (dev/tests, o ledger no configurado).
type Noop struct{}

func (Noop) LogTransaction(ctx context.Context, tx Transaction) error { return nil }
