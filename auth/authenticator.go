package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TokenTypeBearer is the token_type of every issued token
const TokenTypeBearer = "bearer"

// DefaultTokenExpiration applies when the config leaves it unset
const DefaultTokenExpiration = 15 * time.Minute

// Auther ties credentials, tokens and the session registry together
type Auther struct {
	provider *UserProvider
	tokens   *TokenService
	registry SessionRegistry
	ttl      time.Duration
	logger   Logger
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new authenticator
func NewAuthenticator(provider *UserProvider, tokens *TokenService, registry SessionRegistry, cfg Config) *Auther {
	ttl := cfg.GetTokenExpiration()
	if ttl <= 0 {
		ttl = DefaultTokenExpiration
	}
	return &Auther{
		provider: provider,
		tokens:   tokens,
		registry: registry,
		ttl:      ttl,
		logger:   defLogger{},
	}
}

func (a *Auther) WithLogger(l Logger) *Auther {
	if l != nil {
		a.logger = l
	}
	return a
}

// Login checks the credentials and mints a token carrying the current
// token version of the account
func (a *Auther) Login(ctx context.Context, identifier, password string) (*AccessToken, error) {
	account, err := a.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		return nil, err
	}

	version, err := a.registry.TokenVersion(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	raw, err := a.tokens.Encode(NewSessionClaims(account, version), a.ttl)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("login", "user_id", account.ID, "ver", version)

	return &AccessToken{
		AccessToken: raw,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   int64(a.ttl.Seconds()),
	}, nil
}

// Authenticate resolves raw into an AuthContext. Checks run in order:
// signature and expiry, account lookup, denylist, token version.
func (a *Auther) Authenticate(ctx context.Context, raw string) (*AuthContext, error) {
	claims, err := a.tokens.Decode(raw)
	if err != nil {
		if IsTokenExpiredError(err) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	account, err := a.provider.FindIdentityByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	denied, err := a.registry.IsDenied(ctx, claims.TokenID())
	if err != nil {
		return nil, err
	}
	if denied {
		return nil, ErrSessionInvalidated
	}

	current, err := a.registry.TokenVersion(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if current != claims.Version {
		return nil, ErrSessionInvalidated
	}

	return &AuthContext{
		User:      account,
		JTI:       claims.TokenID(),
		ExpiresAt: claims.Expires(),
		Version:   claims.Version,
	}, nil
}

// Logout denies the token described by ac until it expires
func (a *Auther) Logout(ctx context.Context, ac *AuthContext) error {
	if ac == nil {
		return ErrInvalidCredentials
	}
	return a.registry.DenyToken(ctx, ac.JTI, ac.ExpiresAt)
}

// LogoutAll bumps the token version, every token issued so far to the
// account stops authenticating
func (a *Auther) LogoutAll(ctx context.Context, ac *AuthContext) (int64, error) {
	if ac == nil || ac.User == nil {
		return 0, ErrInvalidCredentials
	}

	version, err := a.registry.IncrementTokenVersion(ctx, ac.User.ID)
	if err != nil {
		return 0, err
	}

	a.logger.Info("sessions invalidated", "user_id", ac.User.ID, "ver", version)
	return version, nil
}
