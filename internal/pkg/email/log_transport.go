package email

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogTransport logs envelopes instead of sending them. Used in development.
type LogTransport struct{}

// Deliver logs env and never fails.
func (LogTransport) Deliver(_ context.Context, env *Envelope) error {
	log.Info().
		Str("to", env.To.Email).
		Str("subject", env.Subject).
		Str("template", env.Template).
		Int("html_bytes", len(env.HTMLContent)).
		Msg("Email delivery skipped, log transport")
	return nil
}
