package alert

import (
	"context"
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail"
	"go.uber.org/zap"

	"github.com/dropDatabas3/posbridge/internal/observability/logger"
	"github.com/dropDatabas3/posbridge/internal/util"
)

// SMTPSender manda la alerta en texto plano al operador del local.
type SMTPSender struct {
	Host               string
	Port               int
	From               string
	User               string
	Pass               string
	To                 string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool

	log *zap.Logger
}

func NewSMTPSender(host string, port int, from, user, pass, to string) *SMTPSender {
	return &SMTPSender{
		Host:    host,
		Port:    port,
		From:    from,
		User:    user,
		Pass:    pass,
		To:      to,
		TLSMode: "auto",
		log:     logger.Named("alert.smtp"),
	}
}

func (s *SMTPSender) Send(ctx context.Context, subject, body string) error {
	s.log.Info("smtp send",
		zap.String("host", s.Host),
		zap.String("to", util.MaskEmail(s.To)),
		zap.String("subject", subject))

	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", s.To)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.TLSConfig = &tls.Config{
		ServerName:         s.Host,
		InsecureSkipVerify: s.InsecureSkipVerify, // sólo dev
	}

	switch s.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: s.InsecureSkipVerify}
	default:
		// "auto"/"starttls": go-mail negocia STARTTLS si corresponde
	}

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
