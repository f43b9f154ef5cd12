package middleware

import (
	"errors"
	"strings"

	"github.com/gorilla/securecookie"
)

// unsubscribeTokenName scopes the MAC so a session token never verifies
// as an unsubscribe token, even under the same key.
const unsubscribeTokenName = "newsroom_unsubscribe"

// ErrInvalidUnsubscribeToken is returned for tokens that fail verification.
var ErrInvalidUnsubscribeToken = errors.New("invalid unsubscribe token")

// UnsubscribeTokens signs subscriber addresses for one-click unsubscribe
// links. Tokens do not expire: a link in an old issue must keep working.
type UnsubscribeTokens struct {
	codec *securecookie.SecureCookie
}

// NewUnsubscribeTokens creates a codec signed with hashKey.
// PRE: hashKey is at least 32 bytes
func NewUnsubscribeTokens(hashKey []byte) *UnsubscribeTokens {
	codec := securecookie.New(hashKey, nil)
	codec.MaxAge(0)
	codec.SetSerializer(securecookie.JSONEncoder{})
	return &UnsubscribeTokens{codec: codec}
}

// Issue signs the normalised address.
func (u *UnsubscribeTokens) Issue(email string) (string, error) {
	return u.codec.Encode(unsubscribeTokenName, normaliseEmail(email))
}

// Parse verifies a token and returns the address it was issued for.
func (u *UnsubscribeTokens) Parse(token string) (string, error) {
	var email string
	if err := u.codec.Decode(unsubscribeTokenName, token, &email); err != nil || email == "" {
		return "", ErrInvalidUnsubscribeToken
	}
	return email, nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
