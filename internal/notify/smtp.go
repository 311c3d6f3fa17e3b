package notify

import (
	"context"
	"crypto/tls"

	mail "github.com/go-mail/mail"

	"github.com/halcyonlabs/idcore/internal/observability/logger"
	"github.com/halcyonlabs/idcore/internal/util"
)

// SMTPSender implementa EmailSender sobre SMTP.
type SMTPSender struct {
	Host               string
	Port               int
	From               string
	User               string
	Pass               string
	InsecureSkipVerify bool
}

// NewSMTPSender crea un sender SMTP.
func NewSMTPSender(host string, port int, from, user, pass string) *SMTPSender {
	return &SMTPSender{Host: host, Port: port, From: from, User: user, Pass: pass}
}

// NewEmailSender retorna SMTP si hay host configurado; log-only si no (dev).
func NewEmailSender(host string, port int, from, user, pass string) EmailSender {
	if host == "" {
		return logOnlyEmail{}
	}
	return NewSMTPSender(host, port, from, user, pass)
}

// logOnlyEmail solo loguea; dev/testing sin SMTP configurado.
type logOnlyEmail struct{}

func (logOnlyEmail) SendEmail(ctx context.Context, to, subject, body string) error {
	logger.From(ctx).Info("email (log-only)",
		logger.Component("notify.email"),
		logger.String("to", util.MaskEmail(to)),
		logger.String("subject", subject),
	)
	return nil
}

// SendEmail envía el mensaje como texto plano.
func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) error {
	log := logger.From(ctx).With(
		logger.Component("notify.smtp"),
		logger.String("to", util.MaskEmail(to)),
	)

	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.TLSConfig = &tls.Config{
		ServerName:         s.Host,
		InsecureSkipVerify: s.InsecureSkipVerify, // solo dev
	}

	if err := d.DialAndSend(m); err != nil {
		log.Warn("email send failed", logger.Err(err))
		return err
	}
	log.Debug("email sent")
	return nil
}
