// Package notify define los senders out-of-band (email, SMS) usados para
// entregar códigos de challenge MFA. Son colaboradores externos: acá viven
// las interfaces y adapters concretos.
package notify

import "context"

// EmailSender envía un email a un destinatario.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender envía un SMS a un número.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}
