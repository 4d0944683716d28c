package auth

import (
	"context"
	"errors"
	"fmt"
)

// UserProvider resolves accounts and checks their passwords
type UserProvider struct {
	store  CredentialStore
	hasher *PasswordHasher
	logger Logger
	// checked instead of a real digest when the identity is unknown
	decoy string
}

// NewUserProvider will create a new UserProvider. It hashes a random
// secret once and panics if that fails.
func NewUserProvider(store CredentialStore, hasher *PasswordHasher) *UserProvider {
	decoy, err := hasher.RandomPasswordHash()
	if err != nil {
		panic(fmt.Sprintf("auth: new user provider: %v", err))
	}

	return &UserProvider{
		store:  store,
		hasher: hasher,
		logger: defLogger{},
		decoy:  decoy,
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

// VerifyIdentity will find the account by username or email and compare
// the password. Unknown identities and wrong passwords both return
// ErrMismatchedHashAndPassword. A successful check against an outdated
// digest stores the upgraded one, failing to store it does not fail
// the login.
func (u *UserProvider) VerifyIdentity(ctx context.Context, identifier, password string) (*Account, error) {
	account, err := u.store.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			// same amount of work as a wrong password
			_, _, _ = u.hasher.Verify(password, u.decoy)
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, fmt.Errorf("failed to retrieve user during verification: %w", err)
	}

	ok, upgraded, err := u.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		u.logger.Error("password verification failed", "user_id", account.ID, "error", err)
	}
	if !ok {
		return nil, ErrMismatchedHashAndPassword
	}

	if upgraded != "" {
		if err := u.store.UpdatePasswordHash(ctx, account.ID, upgraded); err != nil {
			u.logger.Warn("failed to persist rehashed password", "user_id", account.ID, "error", err)
		} else {
			account.PasswordHash = upgraded
			u.logger.Info("password rehashed", "user_id", account.ID)
		}
	}

	return account, nil
}

// FindIdentityByID returns the account for id
func (u *UserProvider) FindIdentityByID(ctx context.Context, id int64) (*Account, error) {
	return u.store.FindByID(ctx, id)
}
