package email

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"
)

// SendRequest contains the data needed to send an email via an external provider.
type SendRequest struct {
	To      []string // Recipient email addresses
	From    string   // Sender, e.g. "The Newsroom <news@example.com>"; empty uses the sender default
	Subject string
	HTML    string // HTML body
	ReplyTo string // Reply-to address; empty uses the sender default

	Headers map[string]string // Extra message headers, e.g. List-Unsubscribe
	Tags    map[string]string // Provider-side labels for tracking, e.g. newsletter_id
}

// SendResult contains the response from the email provider.
type SendResult struct {
	MessageID string    // Provider's message ID for tracking
	SentAt    time.Time // When the send was accepted
}

// Sender is the interface for sending emails via an external provider.
// Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}

// Identity is the configured sender display name and addresses.
type Identity struct {
	FromName    string
	FromAddress string
	ReplyTo     string
}

// From formats the RFC 5322 sender, falling back to the bare address.
func (id Identity) From() string {
	if id.FromName == "" {
		return id.FromAddress
	}
	return fmt.Sprintf("%s <%s>", id.FromName, id.FromAddress)
}

// apply fills the sender and reply-to fields req leaves empty.
func (id Identity) apply(req SendRequest) SendRequest {
	if req.From == "" {
		req.From = id.From()
	}
	if req.ReplyTo == "" {
		req.ReplyTo = id.ReplyTo
	}
	return req
}

// sortedKeys keeps provider payloads stable for a given map.
func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
