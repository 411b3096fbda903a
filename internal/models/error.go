package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound        = errors.New("principal not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrBadRequest      = errors.New("bad request")
	ErrInternalServer  = errors.New("internal server error")
	ErrAccountDisabled = errors.New("account is disabled")
)

// AccessDenyReason identifies why an IP was refused by the access filter.
type AccessDenyReason string

const (
	DenyBlacklisted    AccessDenyReason = "blacklisted"
	DenyNotWhitelisted AccessDenyReason = "not_whitelisted"
)

// AccessDeniedError is returned when an IP fails blacklist or whitelist
// enforcement before any other gate runs.
type AccessDeniedError struct {
	Reason AccessDenyReason
	IP     string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied (%s): %s", e.Reason, e.IP)
}

// RateLimitedError is returned when the sliding-window throttle rejects a
// request. RetryAfter hints when the window frees up.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// AuthFailureReason identifies why a credential check failed.
type AuthFailureReason string

const (
	AuthNotFound          AuthFailureReason = "not_found"
	AuthIncorrectPassword AuthFailureReason = "incorrect_password"
	AuthLocked            AuthFailureReason = "locked"
)

// AuthenticationError carries the specific failure kind so callers can
// distinguish a bad credential from an active lockout. RetryAfter is set
// only when Reason is AuthLocked.
type AuthenticationError struct {
	Reason     AuthFailureReason
	RetryAfter time.Duration
}

func (e *AuthenticationError) Error() string {
	if e.Reason == AuthLocked {
		return fmt.Sprintf("authentication failed (%s): retry after %s", e.Reason, e.RetryAfter)
	}
	return fmt.Sprintf("authentication failed (%s)", e.Reason)
}

// TokenInvalidReason identifies why a bearer token was rejected.
type TokenInvalidReason string

const (
	TokenExpired      TokenInvalidReason = "expired"
	TokenBadSignature TokenInvalidReason = "bad_signature"
	TokenMalformed    TokenInvalidReason = "malformed"
)

// TokenInvalidError distinguishes "get a fresh token" (expired) from
// "credentials rejected" (bad signature / malformed).
type TokenInvalidError struct {
	Reason TokenInvalidReason
}

func (e *TokenInvalidError) Error() string {
	return fmt.Sprintf("invalid token (%s)", e.Reason)
}
