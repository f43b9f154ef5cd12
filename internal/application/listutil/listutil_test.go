package listutil

import (
	"errors"
	"net/url"
	"testing"
)

// TestParsePage_Defaults verifies an empty query yields the store default.
func TestParsePage_Defaults(t *testing.T) {
	p, err := ParsePage(url.Values{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Limit != 0 || p.Offset != 0 {
		t.Errorf("expected zero page, got %+v", p)
	}
}

// TestParsePage_Valid verifies correct parsing of limit and offset.
func TestParsePage_Valid(t *testing.T) {
	p, err := ParsePage(url.Values{"limit": {"25"}, "offset": {"50"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Limit != 25 {
		t.Errorf("expected limit 25, got %d", p.Limit)
	}
	if p.Offset != 50 {
		t.Errorf("expected offset 50, got %d", p.Offset)
	}
}

// TestParsePage_ClampsLimit verifies oversized limits are capped.
func TestParsePage_ClampsLimit(t *testing.T) {
	p, err := ParsePage(url.Values{"limit": {"100000"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Limit != MaxLimit {
		t.Errorf("expected limit %d, got %d", MaxLimit, p.Limit)
	}
}

// TestParsePage_Invalid verifies negative and non-numeric values are rejected.
func TestParsePage_Invalid(t *testing.T) {
	cases := []url.Values{
		{"limit": {"-1"}},
		{"offset": {"-5"}},
		{"limit": {"ten"}},
		{"offset": {"1.5"}},
	}
	for _, q := range cases {
		if _, err := ParsePage(q); !errors.Is(err, ErrInvalidPage) {
			t.Errorf("ParsePage(%v): expected ErrInvalidPage, got %v", q, err)
		}
	}
}

// TestParseBool verifies flag parsing.
func TestParseBool(t *testing.T) {
	q := url.Values{"a": {"true"}, "b": {"1"}, "c": {"yes"}, "d": {"false"}}
	if !ParseBool(q, "a") || !ParseBool(q, "b") {
		t.Error("expected true for 'true' and '1'")
	}
	if ParseBool(q, "c") || ParseBool(q, "d") || ParseBool(q, "missing") {
		t.Error("expected false for 'yes', 'false' and missing")
	}
}
