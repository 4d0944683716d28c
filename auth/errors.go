package auth

import (
	"errors"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found")

// ErrMismatchedHashAndPassword is returned for any failed login, the
// caller can not tell an unknown identity from a wrong password
var ErrMismatchedHashAndPassword = errors.New("incorrect username or password")

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = errors.New("password can not be empty")

// ErrTokenExpired signature is valid but exp has passed
var ErrTokenExpired = errors.New("token is expired")

// ErrTokenMalformed covers every other token verification failure
var ErrTokenMalformed = errors.New("token is malformed")

// ErrInvalidCredentials token could not be resolved to a user
var ErrInvalidCredentials = errors.New("could not validate credentials")

// ErrSessionInvalidated token was denied or its version is stale
var ErrSessionInvalidated = errors.New("session invalidated")

// ErrSessionStore the session registry backend failed
var ErrSessionStore = errors.New("session store failure")

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return errors.Is(err, ErrTokenExpired)
}

// IsMalformedError will check for malformed or unverifiable tokens
func IsMalformedError(err error) bool {
	return errors.Is(err, ErrTokenMalformed)
}

// IsUnauthorized reports whether err should be surfaced as a 401
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrSessionInvalidated) ||
		errors.Is(err, ErrMismatchedHashAndPassword)
}
