package email

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// NoopSender is a no-op email sender for development and testing.
// It logs sends but does not actually deliver emails.
type NoopSender struct {
	sent atomic.Int64
}

// NewNoopSender creates a new NoopSender.
func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

// Send logs the email but does not deliver it.
// PRE: req is a valid SendRequest
// POST: Returns a noop result without actual delivery
func (s *NoopSender) Send(_ context.Context, req SendRequest) (SendResult, error) {
	n := s.sent.Add(1)
	slog.Info("noop_email_send", "to", req.To, "subject", req.Subject)
	return SendResult{
		MessageID: fmt.Sprintf("noop-%d-%d", time.Now().UnixNano(), n),
		SentAt:    time.Now(),
	}, nil
}

// Sent returns how many messages were accepted.
func (s *NoopSender) Sent() int64 {
	return s.sent.Load()
}
