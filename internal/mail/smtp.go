package mail

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/mailflow/mailflow/internal/config"
	gomail "gopkg.in/gomail.v2"
)

// SMTPSender implements Sender over an authenticated SMTP relay. The relay
// account is identified by the message's From address together with the
// configured app password, matching how Gmail app passwords work.
type SMTPSender struct {
	host          string
	port          int
	appPassword   string
	skipTLSVerify bool
}

// NewSMTPSender creates a new SMTPSender.
func NewSMTPSender(cfg config.SMTPConfig, appPassword string) (*SMTPSender, error) {
	if appPassword == "" {
		return nil, fmt.Errorf("smtp: app password is required")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp: relay host is required")
	}
	return &SMTPSender{
		host:          cfg.Host,
		port:          cfg.Port,
		appPassword:   appPassword,
		skipTLSVerify: cfg.SkipTLSVerify,
	}, nil
}

// Send dials the relay and delivers one message. The dial happens per send
// because the authenticating user is the per-job sender address.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	d := gomail.NewDialer(s.host, s.port, msg.From, s.appPassword)
	d.TLSConfig = &tls.Config{
		ServerName:         s.host,
		InsecureSkipVerify: s.skipTLSVerify,
	}
	if s.port == 465 {
		d.SSL = true
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("could not send email: %w", err)
	}
	return nil
}
