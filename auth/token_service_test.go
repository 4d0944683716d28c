package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-madr/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = &auth.Account{
	ID:       42,
	Username: "alice",
	Email:    "alice@example.com",
}

func TestNewTokenService(t *testing.T) {
	t.Run("rejects unsupported algorithm", func(t *testing.T) {
		cfg := defaultTestConfig()
		cfg.method = "RS256"

		_, err := auth.NewTokenService(cfg, nil)
		assert.Error(t, err)
	})

	t.Run("rejects empty key", func(t *testing.T) {
		cfg := defaultTestConfig()
		cfg.key = ""

		_, err := auth.NewTokenService(cfg, nil)
		assert.Error(t, err)
	})

	t.Run("defaults algorithm and key id", func(t *testing.T) {
		cfg := defaultTestConfig()
		cfg.method = ""
		cfg.keyID = ""

		ts := newTokenService(t, cfg)
		raw, err := ts.Encode(auth.NewSessionClaims(alice, 0), time.Minute)
		require.NoError(t, err)

		token, _, err := jwt.NewParser().ParseUnverified(raw, &auth.SessionClaims{})
		require.NoError(t, err)
		assert.Equal(t, "HS256", token.Method.Alg())
		assert.Equal(t, auth.DefaultSigningKeyID, token.Header["kid"])
	})
}

func TestTokenService_EncodeDecode(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.issuer = "madr"
	ts := newTokenService(t, cfg)

	raw, err := ts.Encode(auth.NewSessionClaims(alice, 3), 10*time.Minute)
	require.NoError(t, err)
	assert.Len(t, strings.Split(raw, "."), 3)

	claims, err := ts.Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, "42", claims.Subject)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, int64(3), claims.Version)
	assert.Equal(t, "madr", claims.Issuer)
	assert.NotEmpty(t, claims.TokenID())
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), claims.Expires(), 2*time.Second)
	assert.WithinDuration(t, time.Now(), claims.IssuedAtTime(), 2*time.Second)
}

func TestTokenService_FreshTokenIDs(t *testing.T) {
	ts := newTokenService(t, defaultTestConfig())

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		raw, err := ts.Encode(auth.NewSessionClaims(alice, 0), time.Minute)
		require.NoError(t, err)

		claims, err := ts.Decode(raw)
		require.NoError(t, err)
		assert.False(t, seen[claims.TokenID()], "jti reused")
		seen[claims.TokenID()] = true
	}
}

func TestTokenService_Expired(t *testing.T) {
	ts := newTokenService(t, defaultTestConfig())

	past := newTokenService(t, defaultTestConfig()).WithClock(func() time.Time {
		return time.Now().Add(-time.Hour)
	})

	raw, err := past.Encode(auth.NewSessionClaims(alice, 0), time.Minute)
	require.NoError(t, err)

	_, err = ts.Decode(raw)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
	assert.True(t, auth.IsTokenExpiredError(err))
	assert.False(t, auth.IsMalformedError(err))
}

func TestTokenService_Malformed(t *testing.T) {
	cfg := defaultTestConfig()
	ts := newTokenService(t, cfg)

	valid, err := ts.Encode(auth.NewSessionClaims(alice, 0), time.Minute)
	require.NoError(t, err)

	otherKey := cfg
	otherKey.key = "another-signing-key-with-enough-bytes-987654"
	forged, err := newTokenService(t, otherKey).Encode(auth.NewSessionClaims(alice, 0), time.Minute)
	require.NoError(t, err)

	otherKID := cfg
	otherKID.keyID = "unknown"
	unknownKID, err := newTokenService(t, otherKID).Encode(auth.NewSessionClaims(alice, 0), time.Minute)
	require.NoError(t, err)

	otherAlg := cfg
	otherAlg.method = "HS512"
	wrongAlg, err := newTokenService(t, otherAlg).Encode(auth.NewSessionClaims(alice, 0), time.Minute)
	require.NoError(t, err)

	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	noneToken := jwt.NewWithClaims(jwt.SigningMethodNone, auth.NewSessionClaims(alice, 0))
	none, err := noneToken.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	nonNumericSub := auth.NewSessionClaims(alice, 0)
	nonNumericSub.Subject = "alice"
	badSub, err := ts.Encode(nonNumericSub, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "garbage", raw: "not.a.token"},
		{name: "wrong key", raw: forged},
		{name: "unknown kid", raw: unknownKID},
		{name: "wrong algorithm", raw: wrongAlg},
		{name: "tampered payload", raw: tampered},
		{name: "alg none", raw: none},
		{name: "non numeric subject", raw: badSub},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Decode(tt.raw)
			assert.ErrorIs(t, err, auth.ErrTokenMalformed)
			assert.True(t, auth.IsMalformedError(err))
			assert.False(t, auth.IsTokenExpiredError(err))
		})
	}
}

func TestTokenService_ExpiredWithBadSignatureIsMalformed(t *testing.T) {
	cfg := defaultTestConfig()
	ts := newTokenService(t, cfg)

	other := cfg
	other.key = "another-signing-key-with-enough-bytes-987654"
	forger := newTokenService(t, other).WithClock(func() time.Time {
		return time.Now().Add(-time.Hour)
	})

	raw, err := forger.Encode(auth.NewSessionClaims(alice, 0), time.Minute)
	require.NoError(t, err)

	_, err = ts.Decode(raw)
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)
}

func TestTokenService_KeyRotation(t *testing.T) {
	oldCfg := defaultTestConfig()
	oldCfg.keyID = "2024"
	oldCfg.key = "old-signing-key-with-enough-bytes-0123456789"
	oldTokens := newTokenService(t, oldCfg)

	raw, err := oldTokens.Encode(auth.NewSessionClaims(alice, 0), time.Minute)
	require.NoError(t, err)

	newCfg := defaultTestConfig()
	newCfg.keyID = "2025"
	newCfg.previous = map[string]string{"2024": oldCfg.key}
	rotated := newTokenService(t, newCfg)

	claims, err := rotated.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)

	fresh, err := rotated.Encode(auth.NewSessionClaims(alice, 0), time.Minute)
	require.NoError(t, err)

	_, err = oldTokens.Decode(fresh)
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)
}

func TestTokenService_Issuer(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.issuer = "madr"
	strict := newTokenService(t, cfg)

	other := defaultTestConfig()
	other.issuer = "someone-else"
	raw, err := newTokenService(t, other).Encode(auth.NewSessionClaims(alice, 0), time.Minute)
	require.NoError(t, err)

	_, err = strict.Decode(raw)
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)
}
