package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/mailflow/mailflow/internal/config"
)

// GmailSender implements Sender using the Gmail API. The API client
// impersonates the per-message From address, so a service account with
// domain-wide delegation is required.
type GmailSender struct {
	credentialsJSON []byte
	senderName      string
}

// NewGmailSender creates a new GmailSender.
func NewGmailSender(ctx context.Context, cfg config.GmailConfig) (*GmailSender, error) {
	if cfg.CredentialsJSON == "" {
		return nil, fmt.Errorf("gmail: credentials JSON is required")
	}

	// Validate the credentials up front so a bad deployment fails at
	// startup rather than on the first send.
	if _, err := google.JWTConfigFromJSON([]byte(cfg.CredentialsJSON), gmail.GmailSendScope); err != nil {
		return nil, fmt.Errorf("gmail: failed to parse credentials: %w", err)
	}

	return &GmailSender{
		credentialsJSON: []byte(cfg.CredentialsJSON),
		senderName:      cfg.SenderName,
	}, nil
}

// Send sends one message via the Gmail API as the message's From address.
func (g *GmailSender) Send(ctx context.Context, msg Message) error {
	jwtConfig, err := google.JWTConfigFromJSON(g.credentialsJSON, gmail.GmailSendScope)
	if err != nil {
		return fmt.Errorf("gmail: failed to parse credentials: %w", err)
	}
	jwtConfig.Subject = msg.From

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return fmt.Errorf("gmail: failed to create service: %w", err)
	}

	from := msg.From
	if g.senderName != "" {
		from = fmt.Sprintf("%s <%s>", g.senderName, msg.From)
	}

	raw := strings.Join([]string{
		"From: " + from,
		"To: " + msg.To,
		"Subject: " + msg.Subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		msg.Body,
	}, "\r\n")

	gmailMsg := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw)),
	}

	if _, err := svc.Users.Messages.Send("me", gmailMsg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gmail: failed to send message: %w", err)
	}
	return nil
}
