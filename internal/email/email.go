package email

import (
	"context"
	"fmt"

	"github.com/Domenick1991/travelquotes/internal/kafka"
	"github.com/rs/zerolog"
)

// Sender turns quote notifications into outbound messages for the quote's creator.
// Delivery is a log line until an SMTP relay is configured.
type Sender struct {
	log *zerolog.Logger
}

func NewSender(log *zerolog.Logger) *Sender {
	slog := log.With().Str("component", "EmailSender").Logger()
	return &Sender{log: &slog}
}

func (s *Sender) Send(ctx context.Context, event kafka.QuoteEvent) error {
	if event.CreatedBy == "" {
		s.log.Debug().Str("quote_id", event.QuoteID).Msg("no recipient, skipping notification")
		return nil
	}
	s.log.Info().
		Str("to", event.CreatedBy).
		Str("quote_id", event.QuoteID).
		Str("subject", Subject(event)).
		Msg("send email")
	return nil
}

// Subject renders the notification subject line for an event.
func Subject(event kafka.QuoteEvent) string {
	switch event.Type {
	case kafka.EventQuoteCreated:
		return fmt.Sprintf("Travel quote %s created", event.QuoteID)
	case kafka.EventQuoteExpired:
		return fmt.Sprintf("Travel quote %s expired", event.QuoteID)
	default:
		if event.PreviousState != "" {
			return fmt.Sprintf("Travel quote %s moved from %s to %s", event.QuoteID, event.PreviousState, event.State)
		}
		return fmt.Sprintf("Travel quote %s is now %s", event.QuoteID, event.State)
	}
}
