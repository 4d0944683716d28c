package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const argon2idPrefix = "$argon2id$"

// Argon2Params are the cost parameters embedded in every digest
type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params follow the OWASP baseline for argon2id
var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

// deriveKey is argon2.IDKey, swapped in tests to count derivations
var deriveKey = argon2.IDKey

// PasswordHasher hashes and verifies passwords
type PasswordHasher struct {
	params Argon2Params
}

// NewPasswordHasher returns a hasher for the given parameters, zero
// values fall back to DefaultArgon2Params
func NewPasswordHasher(params Argon2Params) *PasswordHasher {
	if params.Memory == 0 {
		params.Memory = DefaultArgon2Params.Memory
	}
	if params.Iterations == 0 {
		params.Iterations = DefaultArgon2Params.Iterations
	}
	if params.Parallelism == 0 {
		params.Parallelism = DefaultArgon2Params.Parallelism
	}
	if params.SaltLength == 0 {
		params.SaltLength = DefaultArgon2Params.SaltLength
	}
	if params.KeyLength == 0 {
		params.KeyLength = DefaultArgon2Params.KeyLength
	}
	return &PasswordHasher{params: params}
}

// Params returns the current parameters
func (h *PasswordHasher) Params() Argon2Params {
	return h.params
}

// Hash will generate a password hash
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key := deriveKey([]byte(password), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2idPrefix,
		argon2.Version,
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks password against digest. When the digest is valid but
// was produced with other parameters, or by bcrypt, upgraded holds a
// fresh digest the caller should store. A digest we can not parse is a
// mismatch, not an error.
func (h *PasswordHasher) Verify(password, digest string) (ok bool, upgraded string, err error) {
	switch {
	case strings.HasPrefix(digest, argon2idPrefix):
		return h.verifyArgon2(password, digest)
	case isBcryptDigest(digest):
		return h.verifyBcrypt(password, digest)
	default:
		return false, "", nil
	}
}

func (h *PasswordHasher) verifyArgon2(password, digest string) (bool, string, error) {
	params, salt, key, err := decodeArgon2Digest(digest)
	if err != nil {
		return false, "", nil
	}

	other := deriveKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	if subtle.ConstantTimeCompare(key, other) != 1 {
		return false, "", nil
	}

	if !h.outdated(params) {
		return true, "", nil
	}

	upgraded, err := h.Hash(password)
	if err != nil {
		return true, "", err
	}
	return true, upgraded, nil
}

func (h *PasswordHasher) verifyBcrypt(password, digest string) (bool, string, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)); err != nil {
		return false, "", nil
	}

	upgraded, err := h.Hash(password)
	if err != nil {
		return true, "", err
	}
	return true, upgraded, nil
}

func (h *PasswordHasher) outdated(p Argon2Params) bool {
	return p.Memory != h.params.Memory ||
		p.Iterations != h.params.Iterations ||
		p.Parallelism != h.params.Parallelism ||
		p.KeyLength != h.params.KeyLength
}

// RandomPasswordHash hashes a random secret. Verifying against it costs
// the same as verifying against a real digest with the current params.
func (h *PasswordHasher) RandomPasswordHash() (string, error) {
	d, err := h.Hash(uuid.NewString())
	if err != nil {
		return "", fmt.Errorf("random password hash: %w", err)
	}
	return d, nil
}

var errBadDigest = errors.New("invalid argon2id digest")

func decodeArgon2Digest(digest string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params

	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(digest, "$")
	if len(parts) != 6 {
		return p, nil, nil, errBadDigest
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, errBadDigest
	}
	if version != argon2.Version {
		return p, nil, nil, errBadDigest
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return p, nil, nil, errBadDigest
	}
	if p.Memory == 0 || p.Iterations == 0 || p.Parallelism == 0 {
		return p, nil, nil, errBadDigest
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, errBadDigest
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, errBadDigest
	}

	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))

	return p, salt, key, nil
}

func isBcryptDigest(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") ||
		strings.HasPrefix(digest, "$2b$") ||
		strings.HasPrefix(digest, "$2y$")
}
