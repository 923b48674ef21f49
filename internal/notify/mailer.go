package notify

import (
	"context"

	"go.uber.org/zap"
)

// Email — a plain-text outbound message. Template rendering lives in
// the external mail service; this layer only carries content.
type Email struct {
	To      string
	Subject string
	Body    string
}

// Mailer is the outbound mail transport seam.
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// LogMailer logs instead of sending. Used in dev and as a safe default
// when no transport is configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, e Email) error {
	zap.L().Info("mail (log transport)",
		zap.String("to", e.To),
		zap.String("subject", e.Subject))
	return nil
}
