package auth

import (
	"context"
	"time"
)

// Logger is the structured logger used across the package.
// Arguments after the message are key/value pairs. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Account is the credential record handed over by a CredentialStore
type Account struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
}

// CredentialStore retrieves and updates persisted credentials.
// Lookups must return ErrIdentityNotFound when there is no match.
type CredentialStore interface {
	// FindByIdentifier resolves identifier against username or email
	FindByIdentifier(ctx context.Context, identifier string) (*Account, error)
	FindByID(ctx context.Context, id int64) (*Account, error)
	UpdatePasswordHash(ctx context.Context, id int64, digest string) error
}

// SessionRegistry tracks token versions and denied tokens
type SessionRegistry interface {
	TokenVersion(ctx context.Context, userID int64) (int64, error)
	IncrementTokenVersion(ctx context.Context, userID int64) (int64, error)
	DenyToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsDenied(ctx context.Context, jti string) (bool, error)
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (*AccessToken, error)
	Authenticate(ctx context.Context, raw string) (*AuthContext, error)
	Logout(ctx context.Context, ac *AuthContext) error
	LogoutAll(ctx context.Context, ac *AuthContext) (int64, error)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSigningKeyID() string
	GetPreviousSigningKeys() map[string]string
	GetSigningMethod() string
	GetIssuer() string
	GetTokenExpiration() time.Duration
}

// AccessToken is the login response
type AccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// AuthContext is the outcome of a successful Authenticate call
type AuthContext struct {
	User      *Account
	JTI       string
	ExpiresAt time.Time
	Version   int64
}

type defLogger struct{}

func (defLogger) Debug(string, ...any) {}
func (defLogger) Info(string, ...any)  {}
func (defLogger) Warn(string, ...any)  {}
func (defLogger) Error(string, ...any) {}
