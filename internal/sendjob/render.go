package sendjob

import (
	"strings"

	"github.com/mailflow/mailflow/internal/model"
)

// PlaceholderToken is the only personalization token recognized in subject
// and body templates.
const PlaceholderToken = "{Name}"

// previewLimit is how much of a rendered body is kept in a log entry.
const previewLimit = 100

// Render substitutes every placeholder occurrence with the recipient's
// name. Templates without the token pass through unchanged; rendering has
// no failure modes.
func Render(tmpl model.MessageTemplate, rcpt model.Recipient) model.RenderedMessage {
	return model.RenderedMessage{
		Subject: strings.ReplaceAll(tmpl.Subject, PlaceholderToken, rcpt.Name),
		Body:    strings.ReplaceAll(tmpl.Body, PlaceholderToken, rcpt.Name),
	}
}

// bodyPreview truncates a rendered body to the first previewLimit
// characters, marking truncation with an ellipsis. The cut counts runes,
// never splitting a multibyte character.
func bodyPreview(body string) string {
	runes := []rune(body)
	if len(runes) > previewLimit {
		return string(runes[:previewLimit]) + "..."
	}
	return body
}
