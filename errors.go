package netrunauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/Netrun-Systems/netrun-auth/kvstore"
	"github.com/Netrun-Systems/netrun-auth/rate"
	"github.com/Netrun-Systems/netrun-auth/rbac"
	"github.com/Netrun-Systems/netrun-auth/token"
)

// Sentinel errors returned by Engine operations. Match with errors.Is;
// returned values may carry additional wrapping context.
var (
	// ErrTokenInvalid covers every token that fails signature,
	// structure or type checks. The reason is deliberately not
	// broken out further on the public surface.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrTokenExpired means the signature verified but the token is
	// outside its validity window.
	ErrTokenExpired = token.ErrExpired

	// ErrTokenRevoked means the token or its session has an active
	// revocation record.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrRefreshReuse is returned when an already-rotated refresh
	// token is presented. The whole session has been revoked by the
	// time the caller sees this error.
	ErrRefreshReuse = errors.New("refresh token reuse detected")

	// ErrSessionNotFound means the refresh token's session no longer
	// has an active record, typically after logout or expiry.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidCredentials covers unknown identifiers and secret
	// mismatches alike.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrStoreUnavailable is the kvstore outage error surfaced
	// through the Engine.
	ErrStoreUnavailable = kvstore.ErrUnavailable

	// ErrRateLimited is returned when a limiter window is exhausted.
	// Engine operations wrap it in a *RateLimitError carrying the
	// retry hint.
	ErrRateLimited = rate.ErrLimited

	// ErrRoleHierarchyCycle is returned by Build and Engine.ReloadRoles
	// when the role table references itself.
	ErrRoleHierarchyCycle = rbac.ErrHierarchyCycle

	// ErrEngineClosed is returned by operations on a closed Engine.
	ErrEngineClosed = errors.New("engine closed")
)

// RateLimitError wraps ErrRateLimited with the time until the current
// window resets.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// RetryAfter extracts the retry hint from an error chain. It returns
// zero and false when err does not carry a *RateLimitError.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}
