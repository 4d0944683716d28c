package repository

import (
	"context"
	"fmt"

	"github.com/goliatone/go-madr/auth"
)

// CredentialStore exposes Users to the auth package
type CredentialStore struct {
	users Users
}

var _ auth.CredentialStore = (*CredentialStore)(nil)

// NewCredentialStore adapts users to auth.CredentialStore
func NewCredentialStore(users Users) *CredentialStore {
	return &CredentialStore{users: users}
}

func (s *CredentialStore) FindByIdentifier(ctx context.Context, identifier string) (*auth.Account, error) {
	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, credentialError(err)
	}
	return ToAccount(user), nil
}

func (s *CredentialStore) FindByID(ctx context.Context, id int64) (*auth.Account, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, credentialError(err)
	}
	return ToAccount(user), nil
}

func (s *CredentialStore) UpdatePasswordHash(ctx context.Context, id int64, digest string) error {
	if err := s.users.UpdatePassword(ctx, id, digest); err != nil {
		return credentialError(err)
	}
	return nil
}

// ToAccount maps a stored user to the credential view auth works with
func ToAccount(user *User) *auth.Account {
	if user == nil {
		return nil
	}
	return &auth.Account{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.Password,
	}
}

func credentialError(err error) error {
	if IsNotFound(err) {
		return fmt.Errorf("%w: %w", auth.ErrIdentityNotFound, err)
	}
	return err
}
