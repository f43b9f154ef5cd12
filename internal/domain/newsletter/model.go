package newsletter

import (
	"errors"
	"strings"
	"time"
)

// Status constants for the newsletter lifecycle.
// SENDING is held only while a dispatch is in progress.
const (
	StatusDraft     = "DRAFT"
	StatusScheduled = "SCHEDULED"
	StatusSending   = "SENDING"
	StatusSent      = "SENT"
	StatusFailed    = "FAILED"
)

// Template constants select the layout a newsletter is rendered with.
const (
	TemplateDefault  = "DEFAULT"
	TemplateMinimal  = "MINIMAL"
	TemplateFeatured = "FEATURED"
)

// ValidTemplates contains all valid template values.
var ValidTemplates = []string{TemplateDefault, TemplateMinimal, TemplateFeatured}

// MaxTitleLength bounds the title, which doubles as the email subject.
const MaxTitleLength = 200

// Domain errors
var (
	ErrEmptyTitle         = errors.New("title is required")
	ErrTitleTooLong       = errors.New("title cannot exceed 200 characters")
	ErrEmptyContent       = errors.New("content is required")
	ErrEmptyAuthor        = errors.New("author is required")
	ErrInvalidTemplate    = errors.New("template must be one of: DEFAULT, MINIMAL, FEATURED")
	ErrScheduleInPast     = errors.New("scheduledFor must be in the future")
	ErrNotDispatchable    = errors.New("newsletter can only be sent from DRAFT or SCHEDULED")
	ErrNotEditable        = errors.New("newsletter can only be edited while DRAFT or SCHEDULED")
	ErrAlreadyDispatching = errors.New("newsletter is already being sent")
)

// Newsletter is a composed issue that can be sent to eligible subscribers.
type Newsletter struct {
	ID           string
	Title        string
	Content      string // rich-text HTML body
	ScheduledFor time.Time
	Template     string
	Status       string
	SentAt       time.Time
	AuthorID     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Analytics holds delivery counters for one dispatched newsletter.
// Counters start at zero; nothing in this service increments them.
type Analytics struct {
	ID           string
	NewsletterID string
	Opens        int
	Clicks       int
	Bounces      int
	Unsubscribes int
	CreatedAt    time.Time
}

// WithAnalytics pairs a newsletter with its analytics row, if any.
type WithAnalytics struct {
	Newsletter
	Analytics *Analytics
}

// Validate checks that the Newsletter has valid data.
// PRE: Newsletter struct is populated
// POST: Returns nil if valid, error otherwise
func (n *Newsletter) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return ErrEmptyTitle
	}
	if len(n.Title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if strings.TrimSpace(n.Content) == "" {
		return ErrEmptyContent
	}
	if n.AuthorID == "" {
		return ErrEmptyAuthor
	}
	if !IsValidTemplate(n.Template) {
		return ErrInvalidTemplate
	}
	if n.CreatedAt.IsZero() {
		return errors.New("created_at must be set")
	}
	return nil
}

// ApplySchedule derives the status from scheduledFor: a zero time leaves the
// newsletter a DRAFT, a future time makes it SCHEDULED.
// PRE: now is the current time
// POST: ScheduledFor and Status are set, or ErrScheduleInPast is returned
func (n *Newsletter) ApplySchedule(scheduledFor, now time.Time) error {
	if scheduledFor.IsZero() {
		n.ScheduledFor = time.Time{}
		n.Status = StatusDraft
		return nil
	}
	if !scheduledFor.After(now) {
		return ErrScheduleInPast
	}
	n.ScheduledFor = scheduledFor
	n.Status = StatusScheduled
	return nil
}

// CanDispatch reports whether a dispatch may start from the current status.
// INVARIANT: Status field is not mutated
func (n *Newsletter) CanDispatch() bool {
	return n.Status == StatusDraft || n.Status == StatusScheduled
}

// CheckDispatchable returns the reason a dispatch may not start, or nil.
// INVARIANT: Status field is not mutated
func (n *Newsletter) CheckDispatchable() error {
	switch n.Status {
	case StatusDraft, StatusScheduled:
		return nil
	case StatusSending:
		return ErrAlreadyDispatching
	default:
		return ErrNotDispatchable
	}
}

// CanEdit reports whether title, content, template or schedule may change.
// INVARIANT: Status field is not mutated
func (n *Newsletter) CanEdit() bool {
	return n.Status == StatusDraft || n.Status == StatusScheduled
}

// MarkSent records a completed dispatch.
// PRE: Newsletter is SENDING
// POST: Status is SENT, SentAt is set
func (n *Newsletter) MarkSent(sentAt time.Time) {
	n.Status = StatusSent
	n.SentAt = sentAt
	n.UpdatedAt = sentAt
}

// MarkFailed records an aborted or fully failed dispatch.
// PRE: Newsletter is SENDING
// POST: Status is FAILED
func (n *Newsletter) MarkFailed(at time.Time) {
	n.Status = StatusFailed
	n.UpdatedAt = at
}

// NormalizeTemplate upper-cases a template name and defaults empty input to DEFAULT.
func NormalizeTemplate(t string) string {
	t = strings.ToUpper(strings.TrimSpace(t))
	if t == "" {
		return TemplateDefault
	}
	return t
}

// IsValidTemplate reports whether t names a known layout.
func IsValidTemplate(t string) bool {
	for _, v := range ValidTemplates {
		if v == t {
			return true
		}
	}
	return false
}

// NewAnalytics returns a zeroed analytics row for a newsletter.
func NewAnalytics(id, newsletterID string, now time.Time) Analytics {
	return Analytics{
		ID:           id,
		NewsletterID: newsletterID,
		CreatedAt:    now,
	}
}
