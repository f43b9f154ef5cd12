package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"newsroom/internal/domain/account"
)

var testKey = bytes.Repeat([]byte("k"), 32)

// TestSessions_RoundTrip verifies an issued token parses back to the same principal.
func TestSessions_RoundTrip(t *testing.T) {
	s := NewSessions(testKey, false)
	want := account.Principal{AccountID: "a1", Email: "admin@example.com", Role: account.RoleAdmin}

	token, err := s.Issue(want)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	got, err := s.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != want {
		t.Errorf("principal = %+v, want %+v", got, want)
	}
}

// TestSessions_RejectsForeignKey verifies tokens signed with another key fail.
func TestSessions_RejectsForeignKey(t *testing.T) {
	token, _ := NewSessions(bytes.Repeat([]byte("x"), 32), false).Issue(account.Principal{AccountID: "a1", Role: account.RoleAdmin})
	if _, err := NewSessions(testKey, false).Parse(token); err != ErrInvalidSession {
		t.Errorf("err = %v, want ErrInvalidSession", err)
	}
	if _, err := NewSessions(testKey, false).Parse("garbage"); err != ErrInvalidSession {
		t.Errorf("garbage err = %v, want ErrInvalidSession", err)
	}
}

// TestAuth_CookieAndBearer verifies both transports resolve the principal.
func TestAuth_CookieAndBearer(t *testing.T) {
	s := NewSessions(testKey, false)
	token, _ := s.Issue(account.Principal{AccountID: "a1", Role: account.RoleAdmin})

	var seen account.Principal
	handler := Auth(s)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PrincipalFrom(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if !seen.IsAdmin() {
		t.Errorf("cookie: principal = %+v", seen)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if !seen.IsAdmin() {
		t.Errorf("bearer: principal = %+v", seen)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen.IsAuthenticated() {
		t.Errorf("bad token: principal = %+v, want anonymous", seen)
	}
}

// TestSetCookie verifies the cookie attributes.
func TestSetCookie(t *testing.T) {
	rr := httptest.NewRecorder()
	NewSessions(testKey, true).SetCookie(rr, "tok")
	c := rr.Result().Cookies()[0]
	if c.Name != SessionCookieName || !c.HttpOnly || !c.Secure || c.MaxAge != 86400 {
		t.Errorf("cookie = %+v", c)
	}
}

// TestRateLimiter_Allow verifies the bucket empties and refills.
func TestRateLimiter_Allow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2, time.Second, func() time.Time { return now })
	defer rl.Stop()

	if !rl.Allow("1.1.1.1") || !rl.Allow("1.1.1.1") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("1.1.1.1") {
		t.Error("third request should be limited")
	}
	if !rl.Allow("2.2.2.2") {
		t.Error("other IPs have their own bucket")
	}

	now = now.Add(time.Second)
	if !rl.Allow("1.1.1.1") {
		t.Error("bucket should refill after an interval")
	}
}

// TestRateLimit_Responds429 verifies the JSON rejection and port stripping.
func TestRateLimit_Responds429(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	defer rl.Stop()
	handler := RateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest("POST", "/api/subscribe", nil)
		req.RemoteAddr = "10.0.0.1:" + []string{"1111", "2222"}[i]
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != want {
			t.Errorf("request %d status = %d, want %d", i, rr.Code, want)
		}
	}
}

// TestSecurityHeaders verifies the headers and HSTS only when secure.
func TestSecurityHeaders(t *testing.T) {
	noop := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rr := httptest.NewRecorder()
	SecurityHeaders(false)(noop).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Header().Get("X-Frame-Options") != "DENY" || rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("headers = %v", rr.Header())
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS set on insecure deployment")
	}

	rr = httptest.NewRecorder()
	SecurityHeaders(true)(noop).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS missing")
	}
}

// TestCSRF_Exemptions verifies JSON and bearer requests bypass the token check
// while a bare form post is rejected.
func TestCSRF_Exemptions(t *testing.T) {
	handler := CSRF(CSRFOptions{AuthKey: testKey})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest("POST", "/api/subscribe", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Errorf("json status = %d, want 204", rr.Code)
	}

	req = httptest.NewRequest("POST", "/api/admin/posts", nil)
	req.Header.Set("Authorization", "Bearer x")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Errorf("bearer status = %d, want 204", rr.Code)
	}

	req = httptest.NewRequest("POST", "/api/auth/login", bytes.NewBufferString("email=a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("form status = %d, want 403", rr.Code)
	}
}
