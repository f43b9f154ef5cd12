package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v2"
)

// ResendSender delivers newsletter mail through the Resend API.
type ResendSender struct {
	client   *resend.Client
	identity Identity
}

// NewResendSender builds a sender that signs every message as id unless a
// request names its own sender.
// PRE: apiKey is a valid Resend API key; id.FromAddress is a verified sender
// POST: Returns a ready-to-use sender
func NewResendSender(apiKey string, id Identity) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey), identity: id}
}

// Send delivers one message.
// PRE: req has at least one recipient and a subject
// POST: Message is accepted by Resend; returns its message ID
func (s *ResendSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	sent, err := s.client.Emails.SendWithContext(ctx, resendRequest(s.identity.apply(req)))
	if err != nil {
		return SendResult{}, fmt.Errorf("resend: %w", err)
	}
	slog.Debug("email_accepted", "provider", "resend", "message_id", sent.Id, "tags", req.Tags)
	return SendResult{MessageID: sent.Id, SentAt: time.Now()}, nil
}

func resendRequest(req SendRequest) *resend.SendEmailRequest {
	params := &resend.SendEmailRequest{
		From:    req.From,
		To:      req.To,
		Subject: req.Subject,
		Html:    req.HTML,
		ReplyTo: req.ReplyTo,
		Headers: req.Headers,
	}
	for _, name := range sortedKeys(req.Tags) {
		params.Tags = append(params.Tags, resend.Tag{Name: name, Value: req.Tags[name]})
	}
	return params
}
