package post

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Max length constants for user-editable fields.
const (
	MaxTitleLength = 200
	MaxSlugLength  = 200
	MaxNameLength  = 80
)

// Domain errors
var (
	ErrEmptyTitle   = errors.New("title is required")
	ErrTitleTooLong = errors.New("title cannot exceed 200 characters")
	ErrInvalidSlug  = errors.New("slug may only contain lowercase letters, digits and hyphens")
	ErrEmptyAuthor  = errors.New("author is required")
	ErrEmptyName    = errors.New("name is required")
	ErrNameTooLong  = errors.New("name cannot exceed 80 characters")
)

// Post is a blog entry. Content is markdown.
type Post struct {
	ID          string
	Title       string
	Content     string
	Slug        string
	Published   bool
	AuthorID    string
	AuthorName  string // denormalized for display
	CategoryIDs []string
	Categories  []Category
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Category groups posts. Membership is many-to-many.
type Category struct {
	ID        string
	Name      string
	Slug      string
	CreatedAt time.Time
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL slug from free text.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonSlugChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > MaxSlugLength {
		s = strings.TrimRight(s[:MaxSlugLength], "-")
	}
	return s
}

// ValidSlug reports whether s is an acceptable slug.
func ValidSlug(s string) bool {
	return len(s) <= MaxSlugLength && slugPattern.MatchString(s)
}

// Validate checks if the Post has valid data.
// PRE: Post struct is populated; Slug already derived
// POST: Returns nil if valid, error otherwise
func (p *Post) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return ErrEmptyTitle
	}
	if len(p.Title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if !ValidSlug(p.Slug) {
		return ErrInvalidSlug
	}
	if p.AuthorID == "" {
		return ErrEmptyAuthor
	}
	if p.CreatedAt.IsZero() {
		return errors.New("created_at must be set")
	}
	return nil
}

// IsVisible reports whether the post may be shown on the public blog.
// INVARIANT: Post fields are not mutated
func (p *Post) IsVisible() bool {
	return p.Published
}

// Validate checks if the Category has valid data.
// PRE: Category struct is populated; Slug already derived
// POST: Returns nil if valid, error otherwise
func (c *Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	if !ValidSlug(c.Slug) {
		return ErrInvalidSlug
	}
	return nil
}
