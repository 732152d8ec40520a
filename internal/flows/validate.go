package flows

import (
	"context"
	"errors"

	"github.com/Netrun-Systems/netrun-auth/token"
)

// ValidateFailureKind classifies validation failures for root-level
// error mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureMalformed
	ValidateFailureExpired
	ValidateFailureRevoked
	ValidateFailureStore
)

// ValidateResult carries the decoded claims or failure metadata.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	// RevocationReason is set when Failure is ValidateFailureRevoked.
	RevocationReason string
	// RevocationSkipped marks a fail-open success where the blacklist
	// could not be consulted.
	RevocationSkipped bool
	Claims            *token.Claims
}

// ValidateDeps captures validation collaborators.
type ValidateDeps struct {
	Parse        func(string) (*token.Claims, error)
	CheckRevoked func(ctx context.Context, jti, sessionID string) (bool, string, error)
	// FailOpen admits a structurally valid, unexpired token when the
	// revocation store is unreachable. Default policy is fail-closed.
	FailOpen bool
}

// RunValidate checks signature, expiry, and structure (all inside
// Parse, in that order), then consults the blacklist. The store
// round-trip is paid only for tokens that already passed the
// cryptographic checks.
func RunValidate(ctx context.Context, tokenStr string, deps ValidateDeps) ValidateResult {
	claims, err := deps.Parse(tokenStr)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return ValidateResult{Failure: ValidateFailureExpired, Err: err}
		}
		return ValidateResult{Failure: ValidateFailureMalformed, Err: err}
	}

	revoked, reason, err := deps.CheckRevoked(ctx, claims.JTI(), claims.SessionID)
	if err != nil {
		if deps.FailOpen {
			return ValidateResult{Claims: claims, RevocationSkipped: true}
		}
		return ValidateResult{Failure: ValidateFailureStore, Err: err}
	}
	if revoked {
		return ValidateResult{Failure: ValidateFailureRevoked, RevocationReason: reason}
	}

	return ValidateResult{Claims: claims}
}
