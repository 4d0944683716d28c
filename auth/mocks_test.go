package auth_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-madr/auth"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-signing-key-with-enough-bytes-0123456789"

type testConfig struct {
	key      string
	keyID    string
	previous map[string]string
	method   string
	issuer   string
	ttl      time.Duration
}

func (c testConfig) GetSigningKey() string                     { return c.key }
func (c testConfig) GetSigningKeyID() string                   { return c.keyID }
func (c testConfig) GetPreviousSigningKeys() map[string]string { return c.previous }
func (c testConfig) GetSigningMethod() string                  { return c.method }
func (c testConfig) GetIssuer() string                         { return c.issuer }
func (c testConfig) GetTokenExpiration() time.Duration         { return c.ttl }

func defaultTestConfig() testConfig {
	return testConfig{
		key:    testSecret,
		keyID:  "k1",
		method: "HS256",
		ttl:    15 * time.Minute,
	}
}

// MockCredentialStore implements auth.CredentialStore
type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) FindByIdentifier(ctx context.Context, identifier string) (*auth.Account, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Account), args.Error(1)
}

func (m *MockCredentialStore) FindByID(ctx context.Context, id int64) (*auth.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Account), args.Error(1)
}

func (m *MockCredentialStore) UpdatePasswordHash(ctx context.Context, id int64, digest string) error {
	args := m.Called(ctx, id, digest)
	return args.Error(0)
}

// MockSessionRegistry implements auth.SessionRegistry
type MockSessionRegistry struct {
	mock.Mock
}

func (m *MockSessionRegistry) TokenVersion(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSessionRegistry) IncrementTokenVersion(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSessionRegistry) DenyToken(ctx context.Context, jti string, expiresAt time.Time) error {
	args := m.Called(ctx, jti, expiresAt)
	return args.Error(0)
}

func (m *MockSessionRegistry) IsDenied(ctx context.Context, jti string) (bool, error) {
	args := m.Called(ctx, jti)
	return args.Bool(0), args.Error(1)
}

// memStore is an in memory auth.CredentialStore
type memStore struct {
	mu       sync.Mutex
	accounts map[int64]*auth.Account
}

func newMemStore(accounts ...*auth.Account) *memStore {
	s := &memStore{accounts: map[int64]*auth.Account{}}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *memStore) FindByIdentifier(_ context.Context, identifier string) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Username == identifier || strings.EqualFold(a.Email, identifier) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, auth.ErrIdentityNotFound
}

func (s *memStore) FindByID(_ context.Context, id int64) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, auth.ErrIdentityNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memStore) UpdatePasswordHash(_ context.Context, id int64, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return auth.ErrIdentityNotFound
	}
	a.PasswordHash = digest
	return nil
}

func (s *memStore) remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, id)
}

func (s *memStore) digest(id int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id].PasswordHash
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return mr, client
}

func newTokenService(t *testing.T, cfg testConfig) *auth.TokenService {
	t.Helper()

	ts, err := auth.NewTokenService(cfg, nil)
	require.NoError(t, err)
	return ts
}
