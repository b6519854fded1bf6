package mailer

import (
	"context"
	"log/slog"
)

// LogSender implements Sender for local development: it logs the email
// instead of dispatching it.
type LogSender struct {
	log *slog.Logger
}

// NewLogSender creates a development sender writing to the given logger.
func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	s.log.InfoContext(ctx, "email (dev sender, not dispatched)",
		slog.String("to", params.SendTo),
		slog.String("subject", params.Subject),
		slog.String("tag", params.Tag),
	)
	return nil
}
