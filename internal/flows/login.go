package flows

import (
	"context"
	"errors"
	"time"

	"github.com/Netrun-Systems/netrun-auth/token"
)

// Credential is the material looked up for a login attempt. The user
// database itself is an external collaborator; the engine only ever
// sees this projection.
type Credential struct {
	UserID      string
	TenantID    string
	Roles       []string
	Permissions []string
	SecretHash  string
}

// PairOutput is an issued access+refresh pair sharing one session id.
type PairOutput struct {
	AccessToken   string
	RefreshToken  string
	SessionID     string
	AccessClaims  *token.Claims
	RefreshClaims *token.Claims
}

// LoginFailureKind classifies login failures. The root package
// collapses UnknownUser, Mismatch, and CorruptHash into one uniform
// user-facing error; the kinds exist for logging and audit only.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureUnknownUser
	LoginFailureMismatch
	LoginFailureCorruptHash
	LoginFailureStore
	LoginFailureIssue
)

// LoginResult carries the issued pair or failure metadata.
type LoginResult struct {
	Failure    LoginFailureKind
	Err        error
	RetryAfter time.Duration
	Credential *Credential
	Pair       *PairOutput
}

// LoginDeps captures login collaborators, already bound to the
// attempt's identifier and client IP where relevant.
type LoginDeps struct {
	// CheckLimit charges this attempt against the window and returns
	// the retry hint when limited.
	CheckLimit func(ctx context.Context) (time.Duration, error)
	LimitedErr error
	// ResetLimit clears the attempt counter after success.
	ResetLimit func(ctx context.Context) error
	// Lookup returns ok=false for an unknown identifier.
	Lookup func(ctx context.Context) (*Credential, bool, error)
	Verify func(secret, hash string) (bool, error)
	// IsCorrupt distinguishes a damaged stored hash from a mismatch.
	IsCorrupt func(error) bool
	// DummySecretHash is verified against when the user is unknown, so
	// unknown-user and wrong-secret take indistinguishable time.
	DummySecretHash string
	IssuePair       func(ctx context.Context, cred *Credential) (*PairOutput, error)
}

// RunLogin verifies the secret and issues a token pair. Every exit path
// that involves the secret runs exactly one hash verification.
func RunLogin(ctx context.Context, secret string, deps LoginDeps) LoginResult {
	if deps.CheckLimit != nil {
		retryAfter, err := deps.CheckLimit(ctx)
		if err != nil {
			if deps.LimitedErr != nil && !errors.Is(err, deps.LimitedErr) {
				return LoginResult{Failure: LoginFailureStore, Err: err}
			}
			return LoginResult{Failure: LoginFailureRateLimited, Err: err, RetryAfter: retryAfter}
		}
	}

	cred, found, err := deps.Lookup(ctx)
	if err != nil {
		return LoginResult{Failure: LoginFailureStore, Err: err}
	}
	if !found {
		// Burn a verification anyway; the result is discarded.
		_, _ = deps.Verify(secret, deps.DummySecretHash)
		return LoginResult{Failure: LoginFailureUnknownUser}
	}

	ok, err := deps.Verify(secret, cred.SecretHash)
	if err != nil {
		if deps.IsCorrupt != nil && deps.IsCorrupt(err) {
			return LoginResult{Failure: LoginFailureCorruptHash, Err: err, Credential: cred}
		}
		return LoginResult{Failure: LoginFailureStore, Err: err, Credential: cred}
	}
	if !ok {
		return LoginResult{Failure: LoginFailureMismatch, Credential: cred}
	}

	pair, err := deps.IssuePair(ctx, cred)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, Credential: cred}
	}

	if deps.ResetLimit != nil {
		// Best effort; a failed reset only means a stricter window.
		_ = deps.ResetLimit(ctx)
	}

	return LoginResult{Credential: cred, Pair: pair}
}
