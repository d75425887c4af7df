package mail

import (
	"context"
	"fmt"

	"github.com/mailflow/mailflow/internal/config"
)

// Sender is the interface all mail transports implement. Errors are
// surfaced verbatim into the delivery log, so implementations should return
// messages meaningful to the operator.
type Sender interface {
	// Send delivers one message to one recipient.
	Send(ctx context.Context, msg Message) error
}

// Message represents a single plain-text email to be sent.
type Message struct {
	From    string // sender address, supplied per job
	To      string // recipient email address
	Subject string
	Body    string
}

// New constructs the configured transport. It fails when the transport
// credential for the selected provider is missing.
func New(ctx context.Context, cfg config.MailConfig) (Sender, error) {
	switch cfg.Provider {
	case "smtp":
		return NewSMTPSender(cfg.SMTP, cfg.AppPassword)
	case "gmail":
		return NewGmailSender(ctx, cfg.Gmail)
	default:
		return nil, fmt.Errorf("unknown mail provider: %q", cfg.Provider)
	}
}
