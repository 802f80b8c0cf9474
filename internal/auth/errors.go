package auth

import "errors"

// Orchestrator failure taxonomy. Collaborator failures (store, token
// lifecycle, provider bridge) are wrapped, never swallowed: callers can use
// errors.Is against these sentinels or against token.ErrInvalidToken and the
// oauth.Err* family, which pass through typed.
var (
	// ErrInvalidCredentials covers both "no such identifier" and "wrong
	// password". The two are indistinguishable on purpose so the login
	// endpoint cannot be used to enumerate identifiers.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrUserNotFound means a valid token or id no longer resolves to a
	// user (the token outlived the account, or the id never existed).
	ErrUserNotFound = errors.New("auth: user not found")

	// ErrSignup means the store rejected the creation, typically an
	// identifier conflict.
	ErrSignup = errors.New("auth: signup failed")
)

// IsInvalidCredentials reports whether err is an ErrInvalidCredentials.
func IsInvalidCredentials(err error) bool { return errors.Is(err, ErrInvalidCredentials) }

// IsUserNotFound reports whether err is an ErrUserNotFound.
func IsUserNotFound(err error) bool { return errors.Is(err, ErrUserNotFound) }

// IsSignupError reports whether err is an ErrSignup.
func IsSignupError(err error) bool { return errors.Is(err, ErrSignup) }
