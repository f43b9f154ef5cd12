package subscriber

import (
	"errors"
	"strings"
	"time"
)

// MaxEmailLength matches the account limit.
const MaxEmailLength = 254

// Domain errors
var (
	ErrEmptyEmail        = errors.New("Email is required")
	ErrInvalidEmail      = errors.New("email must contain '@'")
	ErrEmailTooLong      = errors.New("email cannot exceed 254 characters")
	ErrAlreadySubscribed = errors.New("This email is already subscribed")
)

// Subscriber is a newsletter recipient.
// Verified is intended to be set by an email verification flow that lives
// outside this service; until then new subscribers are not eligible.
type Subscriber struct {
	ID         string
	Email      string
	Name       string
	Verified   bool
	Subscribed bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NormalizeEmail trims and lower-cases an address for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks a normalized address.
// PRE: email has been passed through NormalizeEmail
// POST: Returns nil if the address is acceptable
func ValidateEmail(email string) error {
	if email == "" {
		return ErrEmptyEmail
	}
	if len(email) > MaxEmailLength {
		return ErrEmailTooLong
	}
	if !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}
	return nil
}

// New creates an active, unverified subscriber.
// PRE: email is normalized and valid
// POST: Subscribed is true, Verified is false
func New(id, email, name string, now time.Time) Subscriber {
	return Subscriber{
		ID:         id,
		Email:      email,
		Name:       strings.TrimSpace(name),
		Verified:   false,
		Subscribed: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsEligible reports whether the subscriber should receive newsletters.
// INVARIANT: Subscriber fields are not mutated
func (s *Subscriber) IsEligible() bool {
	return s.Verified && s.Subscribed
}

// Reactivate turns a lapsed subscription back on.
// PRE: Subscriber exists
// POST: Subscribed is true, or ErrAlreadySubscribed if it already was
func (s *Subscriber) Reactivate(now time.Time) error {
	if s.Subscribed {
		return ErrAlreadySubscribed
	}
	s.Subscribed = true
	s.UpdatedAt = now
	return nil
}

// Unsubscribe turns the subscription off. Calling it twice is harmless.
// POST: Subscribed is false; returns whether anything changed
func (s *Subscriber) Unsubscribe(now time.Time) bool {
	if !s.Subscribed {
		return false
	}
	s.Subscribed = false
	s.UpdatedAt = now
	return true
}

// DisplayName returns the name to greet the subscriber with.
func (s *Subscriber) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return "there"
}

// FilterEligible returns the subscribers that should receive a dispatch.
func FilterEligible(subs []Subscriber) []Subscriber {
	var out []Subscriber
	for _, s := range subs {
		if s.IsEligible() {
			out = append(out, s)
		}
	}
	return out
}
