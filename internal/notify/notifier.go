package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Notifier abstracts outbound result delivery. Implementations are
// fire-and-forget from the service's perspective: a failed send never rolls
// back session state.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogNotifier writes the message to the log instead of sending it. Used
// when no SMTP transport is configured (dev mode).
type LogNotifier struct {
	log *logrus.Logger
}

func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(_ context.Context, to, subject, body string) error {
	n.log.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("email transport not configured, logging message")
	n.log.Debug(body)
	return nil
}
