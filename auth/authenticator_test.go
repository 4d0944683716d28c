package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-madr/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	auther   *auth.Auther
	store    *memStore
	registry *auth.RedisSessionRegistry
	tokens   *auth.TokenService
	redis    *miniredis.Miniredis
	hasher   *auth.PasswordHasher
}

func setupAuther(t *testing.T) *authFixture {
	t.Helper()

	hasher := newTestHasher()
	digest, err := hasher.Hash("s3cret123")
	require.NoError(t, err)

	store := newMemStore(&auth.Account{
		ID:           1,
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: digest,
	})

	mr, client := setupRedis(t)
	registry := auth.NewRedisSessionRegistry(client)
	cfg := defaultTestConfig()
	tokens := newTokenService(t, cfg)

	auther := auth.NewAuthenticator(auth.NewUserProvider(store, hasher), tokens, registry, cfg)

	return &authFixture{
		auther:   auther,
		store:    store,
		registry: registry,
		tokens:   tokens,
		redis:    mr,
		hasher:   hasher,
	}
}

func TestAuther_Login(t *testing.T) {
	ctx := context.Background()
	f := setupAuther(t)

	t.Run("by username", func(t *testing.T) {
		token, err := f.auther.Login(ctx, "alice", "s3cret123")
		require.NoError(t, err)
		assert.Equal(t, "bearer", token.TokenType)
		assert.Equal(t, int64(900), token.ExpiresIn)
		assert.NotEmpty(t, token.AccessToken)
	})

	t.Run("by email", func(t *testing.T) {
		_, err := f.auther.Login(ctx, "alice@example.com", "s3cret123")
		require.NoError(t, err)
	})

	t.Run("wrong password and unknown user look the same", func(t *testing.T) {
		_, errPwd := f.auther.Login(ctx, "alice", "nope-nope")
		_, errUser := f.auther.Login(ctx, "bob", "s3cret123")

		assert.ErrorIs(t, errPwd, auth.ErrMismatchedHashAndPassword)
		assert.ErrorIs(t, errUser, auth.ErrMismatchedHashAndPassword)
		assert.Equal(t, errPwd.Error(), errUser.Error())
	})
}

func TestAuther_LoginThenAuthenticate(t *testing.T) {
	ctx := context.Background()
	f := setupAuther(t)

	token, err := f.auther.Login(ctx, "alice", "s3cret123")
	require.NoError(t, err)

	ac, err := f.auther.Authenticate(ctx, token.AccessToken)
	require.NoError(t, err)

	assert.Equal(t, int64(1), ac.User.ID)
	assert.Equal(t, "alice", ac.User.Username)
	assert.Equal(t, int64(0), ac.Version)
	assert.NotEmpty(t, ac.JTI)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), ac.ExpiresAt, 2*time.Second)
}

func TestAuther_Authenticate_Rejections(t *testing.T) {
	ctx := context.Background()
	f := setupAuther(t)

	t.Run("garbage", func(t *testing.T) {
		_, err := f.auther.Authenticate(ctx, "garbage")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("unknown subject", func(t *testing.T) {
		raw, err := f.tokens.Encode(auth.NewSessionClaims(&auth.Account{ID: 77}, 0), time.Minute)
		require.NoError(t, err)

		_, err = f.auther.Authenticate(ctx, raw)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("removed account", func(t *testing.T) {
		f := setupAuther(t)
		token, err := f.auther.Login(ctx, "alice", "s3cret123")
		require.NoError(t, err)

		f.store.remove(1)

		_, err = f.auther.Authenticate(ctx, token.AccessToken)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})
}

func TestAuther_ExpiredTakesPrecedence(t *testing.T) {
	ctx := context.Background()
	f := setupAuther(t)

	past := newTokenService(t, defaultTestConfig()).WithClock(func() time.Time {
		return time.Now().Add(-time.Hour)
	})

	claims := auth.NewSessionClaims(&auth.Account{ID: 1, Username: "alice"}, 0)
	claims.ID = "expired-jti"
	raw, err := past.Encode(claims, time.Minute)
	require.NoError(t, err)

	_, err = f.auther.Authenticate(ctx, raw)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)

	// denied and stale at the same time, still reported as expired
	require.NoError(t, f.redis.Set(auth.DenyTokenKey("expired-jti"), "1"))
	_, err = f.registry.IncrementTokenVersion(ctx, 1)
	require.NoError(t, err)

	_, err = f.auther.Authenticate(ctx, raw)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
	assert.NotErrorIs(t, err, auth.ErrSessionInvalidated)
}

func TestAuther_Logout(t *testing.T) {
	ctx := context.Background()
	f := setupAuther(t)

	first, err := f.auther.Login(ctx, "alice", "s3cret123")
	require.NoError(t, err)
	second, err := f.auther.Login(ctx, "alice", "s3cret123")
	require.NoError(t, err)

	ac, err := f.auther.Authenticate(ctx, first.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.auther.Logout(ctx, ac))

	ttl := f.redis.TTL(auth.DenyTokenKey(ac.JTI))
	assert.True(t, ttl > 0 && ttl <= 15*time.Minute, "ttl %s", ttl)

	_, err = f.auther.Authenticate(ctx, first.AccessToken)
	assert.ErrorIs(t, err, auth.ErrSessionInvalidated)

	_, err = f.auther.Authenticate(ctx, second.AccessToken)
	assert.NoError(t, err)

	// the deny itself is idempotent
	assert.NoError(t, f.auther.Logout(ctx, ac))

	assert.ErrorIs(t, f.auther.Logout(ctx, nil), auth.ErrInvalidCredentials)
}

func TestAuther_LogoutAllScenario(t *testing.T) {
	ctx := context.Background()
	f := setupAuther(t)

	tokenA, err := f.auther.Login(ctx, "alice", "s3cret123")
	require.NoError(t, err)

	ac, err := f.auther.Authenticate(ctx, tokenA.AccessToken)
	require.NoError(t, err)

	version, err := f.auther.LogoutAll(ctx, ac)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	_, err = f.auther.Authenticate(ctx, tokenA.AccessToken)
	assert.ErrorIs(t, err, auth.ErrSessionInvalidated)

	tokenB, err := f.auther.Login(ctx, "alice", "s3cret123")
	require.NoError(t, err)

	claims, err := f.tokens.Decode(tokenB.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(1), claims.Version)

	acB, err := f.auther.Authenticate(ctx, tokenB.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(1), acB.Version)

	_, err = f.auther.LogoutAll(ctx, nil)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestAuther_RehashOnLogin(t *testing.T) {
	ctx := context.Background()
	f := setupAuther(t)

	legacy := auth.NewPasswordHasher(auth.Argon2Params{Memory: 512, Iterations: 1, Parallelism: 1})
	oldDigest, err := legacy.Hash("s3cret123")
	require.NoError(t, err)
	require.NoError(t, f.store.UpdatePasswordHash(ctx, 1, oldDigest))

	_, err = f.auther.Login(ctx, "alice", "s3cret123")
	require.NoError(t, err)

	newDigest := f.store.digest(1)
	assert.NotEqual(t, oldDigest, newDigest)

	ok, upgraded, err := f.hasher.Verify("s3cret123", newDigest)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, upgraded)
}

func TestAuther_RegistryFailures(t *testing.T) {
	ctx := context.Background()

	hasher := newTestHasher()
	digest, err := hasher.Hash("s3cret123")
	require.NoError(t, err)

	store := newMemStore(&auth.Account{ID: 1, Username: "alice", PasswordHash: digest})
	cfg := defaultTestConfig()
	tokens := newTokenService(t, cfg)

	registry := new(MockSessionRegistry)
	auther := auth.NewAuthenticator(auth.NewUserProvider(store, hasher), tokens, registry, cfg)

	boom := errors.New("redis down")

	registry.On("TokenVersion", mock.Anything, int64(1)).Return(int64(0), nil).Once()
	token, err := auther.Login(ctx, "alice", "s3cret123")
	require.NoError(t, err)

	registry.On("IsDenied", mock.Anything, mock.AnythingOfType("string")).Return(false, boom).Once()
	_, err = auther.Authenticate(ctx, token.AccessToken)
	assert.ErrorIs(t, err, boom)
	assert.False(t, auth.IsUnauthorized(err))

	registry.On("IsDenied", mock.Anything, mock.AnythingOfType("string")).Return(false, nil).Once()
	registry.On("TokenVersion", mock.Anything, int64(1)).Return(int64(0), boom).Once()
	_, err = auther.Authenticate(ctx, token.AccessToken)
	assert.ErrorIs(t, err, boom)

	registry.On("TokenVersion", mock.Anything, int64(1)).Return(int64(0), boom).Once()
	_, err = auther.Login(ctx, "alice", "s3cret123")
	assert.ErrorIs(t, err, boom)

	registry.AssertExpectations(t)
}

func TestNewAuthenticator_DefaultTTL(t *testing.T) {
	ctx := context.Background()
	f := setupAuther(t)

	cfg := defaultTestConfig()
	cfg.ttl = 0
	auther := auth.NewAuthenticator(auth.NewUserProvider(f.store, f.hasher), f.tokens, f.registry, cfg)

	token, err := auther.Login(ctx, "alice", "s3cret123")
	require.NoError(t, err)
	assert.Equal(t, int64(auth.DefaultTokenExpiration.Seconds()), token.ExpiresIn)
}
