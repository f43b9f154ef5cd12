package post

import (
	"testing"
	"time"
)

var fixedTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// TestSlugify tests slug derivation from titles.
func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Hello, World!":          "hello-world",
		"  Go 1.25 release notes": "go-1-25-release-notes",
		"---":                    "",
		"Ünïcode stays out":      "n-code-stays-out",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestValidSlug tests the slug pattern.
func TestValidSlug(t *testing.T) {
	for _, ok := range []string{"a", "hello-world", "v2-notes"} {
		if !ValidSlug(ok) {
			t.Errorf("expected %q valid", ok)
		}
	}
	for _, bad := range []string{"", "Hello", "double--dash", "-lead", "trail-", "sp ace"} {
		if ValidSlug(bad) {
			t.Errorf("expected %q invalid", bad)
		}
	}
}

// TestPost_Validate tests post validation.
func TestPost_Validate(t *testing.T) {
	valid := Post{Title: "First", Slug: "first", AuthorID: "a1", CreatedAt: fixedTime}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	noTitle := valid
	noTitle.Title = ""
	if err := noTitle.Validate(); err != ErrEmptyTitle {
		t.Errorf("expected ErrEmptyTitle, got %v", err)
	}

	badSlug := valid
	badSlug.Slug = "Not A Slug"
	if err := badSlug.Validate(); err != ErrInvalidSlug {
		t.Errorf("expected ErrInvalidSlug, got %v", err)
	}

	noAuthor := valid
	noAuthor.AuthorID = ""
	if err := noAuthor.Validate(); err != ErrEmptyAuthor {
		t.Errorf("expected ErrEmptyAuthor, got %v", err)
	}
}

// TestCategory_Validate tests category validation.
func TestCategory_Validate(t *testing.T) {
	c := Category{Name: "Engineering", Slug: "engineering"}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	c.Name = ""
	if err := c.Validate(); err != ErrEmptyName {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}
}
