package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultSigningKeyID is used when the config does not name the key
const DefaultSigningKeyID = "primary"

// TokenService signs and verifies session tokens
type TokenService struct {
	method  jwt.SigningMethod
	keyID   string
	key     []byte
	issuer  string
	keyfunc jwt.Keyfunc
	logger  Logger
	now     func() time.Time
}

// NewTokenService creates a new TokenService instance. Previous signing
// keys are only used to verify tokens minted before a key rotation.
func NewTokenService(cfg Config, logger Logger) (*TokenService, error) {
	if logger == nil {
		logger = defLogger{}
	}

	method, err := hmacMethod(cfg.GetSigningMethod())
	if err != nil {
		return nil, err
	}

	if cfg.GetSigningKey() == "" {
		return nil, errors.New("signing key must not be empty")
	}

	kid := cfg.GetSigningKeyID()
	if kid == "" {
		kid = DefaultSigningKeyID
	}

	givenKeys := make(map[string]keyfunc.GivenKey, len(cfg.GetPreviousSigningKeys())+1)
	for id, secret := range cfg.GetPreviousSigningKeys() {
		givenKeys[id] = keyfunc.NewGivenCustom([]byte(secret), keyfunc.GivenKeyOptions{
			Algorithm: method.Alg(),
		})
	}
	givenKeys[kid] = keyfunc.NewGivenCustom([]byte(cfg.GetSigningKey()), keyfunc.GivenKeyOptions{
		Algorithm: method.Alg(),
	})

	return &TokenService{
		method:  method,
		keyID:   kid,
		key:     []byte(cfg.GetSigningKey()),
		issuer:  cfg.GetIssuer(),
		keyfunc: keyfunc.NewGiven(givenKeys).Keyfunc,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// WithClock overrides the time source, used for iat/exp and validation
func (ts *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		ts.now = now
	}
	return ts
}

// Encode stamps iat, exp, jti and iss on claims and signs them
func (ts *TokenService) Encode(claims SessionClaims, ttl time.Duration) (string, error) {
	now := ts.now()

	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	if ts.issuer != "" {
		claims.Issuer = ts.issuer
	}
	ensureTokenID(&claims.RegisteredClaims)

	token := jwt.NewWithClaims(ts.method, claims)
	token.Header["kid"] = ts.keyID

	signed, err := token.SignedString(ts.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, nil
}

// Decode verifies raw and returns its claims. Expired tokens with a
// valid signature yield ErrTokenExpired, every other failure yields an
// error wrapping ErrTokenMalformed.
func (ts *TokenService) Decode(raw string) (*SessionClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{ts.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		opts = append(opts, jwt.WithIssuer(ts.issuer))
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, ts.keyfunc, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		ts.logger.Debug("token rejected", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	if !token.Valid {
		return nil, ErrTokenMalformed
	}

	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%w: subject is not an id", ErrTokenMalformed)
	}

	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrTokenMalformed)
	}

	return claims, nil
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}

func hmacMethod(alg string) (jwt.SigningMethod, error) {
	switch alg {
	case "", jwt.SigningMethodHS256.Alg():
		return jwt.SigningMethodHS256, nil
	case jwt.SigningMethodHS384.Alg():
		return jwt.SigningMethodHS384, nil
	case jwt.SigningMethodHS512.Alg():
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported signing method %q", alg)
	}
}
