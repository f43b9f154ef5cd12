package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"

	"newsroom/internal/domain/account"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const principalContextKey contextKey = "principal"

// SessionCookieName is the cookie that carries the signed session token.
const SessionCookieName = "newsroom_session"

// SessionTTL is how long an issued token stays valid.
const SessionTTL = 24 * time.Hour

// ErrInvalidSession is returned for tokens that fail signature or age checks.
var ErrInvalidSession = errors.New("invalid session")

// sessionPayload is the signed content of a token.
type sessionPayload struct {
	AccountID string `json:"sub"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// Sessions issues and verifies stateless signed session tokens.
// Nothing is stored server side; a token is valid until it ages out.
type Sessions struct {
	codec  *securecookie.SecureCookie
	secure bool
}

// NewSessions creates a token codec signed with hashKey.
// PRE: hashKey is at least 32 bytes
// POST: Tokens older than SessionTTL are rejected by Parse
func NewSessions(hashKey []byte, secure bool) *Sessions {
	codec := securecookie.New(hashKey, nil)
	codec.MaxAge(int(SessionTTL.Seconds()))
	codec.SetSerializer(securecookie.JSONEncoder{})
	return &Sessions{codec: codec, secure: secure}
}

// Issue encodes a principal into a token.
// PRE: p is authenticated
// POST: Returns a URL-safe token
func (s *Sessions) Issue(p account.Principal) (string, error) {
	return s.codec.Encode(SessionCookieName, sessionPayload{
		AccountID: p.AccountID,
		Email:     p.Email,
		Role:      p.Role,
	})
}

// Parse verifies a token and returns the principal it carries.
func (s *Sessions) Parse(token string) (account.Principal, error) {
	var payload sessionPayload
	if err := s.codec.Decode(SessionCookieName, token, &payload); err != nil {
		return account.Anonymous, ErrInvalidSession
	}
	if payload.AccountID == "" {
		return account.Anonymous, ErrInvalidSession
	}
	return account.Principal{AccountID: payload.AccountID, Email: payload.Email, Role: payload.Role}, nil
}

// SetCookie writes the session cookie.
func (s *Sessions) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   int(SessionTTL.Seconds()),
	})
}

// ClearCookie removes the session cookie.
func (s *Sessions) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   -1,
	})
}

// tokenFrom reads a bearer token or, failing that, the session cookie.
func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// Auth returns middleware that resolves the session into a Principal on the context.
// It does NOT block unauthenticated requests; orchestrators check the role.
func Auth(sessions *Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := tokenFrom(r); token != "" {
				if p, err := sessions.Parse(token); err == nil {
					r = r.WithContext(ContextWithPrincipal(r.Context(), p))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalFrom returns the request principal, or Anonymous.
func PrincipalFrom(ctx context.Context) account.Principal {
	p, ok := ctx.Value(principalContextKey).(account.Principal)
	if !ok {
		return account.Anonymous
	}
	return p
}

// ContextWithPrincipal returns a context with the given principal set.
// Intended for use in tests.
func ContextWithPrincipal(ctx context.Context, p account.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// hasBearer reports whether the request authenticates with a header token.
// Such requests cannot be forged cross-site and skip CSRF checks.
func hasBearer(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// RequireAdmin blocks requests whose principal is not an admin with
// 401 {"error":"Unauthorized"}. Orchestrators repeat the check.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !PrincipalFrom(r.Context()).IsAdmin() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
