package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the fixed claim set carried by access tokens
type SessionClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Email    string `json:"email"`
	Version  int64  `json:"ver"`
}

// NewSessionClaims builds the claims for account at the given version.
// The token id is left empty, Encode fills it in.
func NewSessionClaims(account *Account, version int64) SessionClaims {
	return SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: strconv.FormatInt(account.ID, 10),
		},
		Username: account.Username,
		Email:    account.Email,
		Version:  version,
	}
}

// UserID coerces the subject back to the account id
func (c *SessionClaims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// TokenID returns the jti claim
func (c *SessionClaims) TokenID() string {
	return c.ID
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IssuedAtTime returns the issued at time
func (c *SessionClaims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}
