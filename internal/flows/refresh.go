package flows

import (
	"context"
	"errors"

	"github.com/Netrun-Systems/netrun-auth/token"
)

// RefreshFailureKind classifies refresh failures for root-level error
// mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureMalformed
	RefreshFailureExpired
	RefreshFailureRevoked
	RefreshFailureRateLimited
	RefreshFailureReuse
	RefreshFailureSessionGone
	RefreshFailureStore
	RefreshFailureIssue
)

// RefreshResult carries the new pair or failure metadata.
type RefreshResult struct {
	Failure   RefreshFailureKind
	Err       error
	SessionID string
	UserID    string
	TenantID  string
	// SessionRevoked is set when reuse detection revoked the whole
	// session as a side effect.
	SessionRevoked bool
	Pair           *PairOutput
}

// RefreshDeps captures refresh collaborators.
type RefreshDeps struct {
	ParseRefresh func(string) (*token.Claims, error)
	CheckRevoked func(ctx context.Context, jti, sessionID string) (bool, string, error)
	// CheckLimit charges the rotation attempt per session; nil disables.
	CheckLimit func(ctx context.Context, sessionID string) error
	LimitedErr error
	// IssueRefresh mints the successor refresh token from the presented
	// claims, preserving session id and principal material.
	IssueRefresh func(old *token.Claims) (string, *token.Claims, error)
	IssueAccess  func(old *token.Claims) (string, *token.Claims, error)
	// Rotate swaps the session's valid refresh jti; false means the
	// presented jti lost (already rotated or session gone).
	Rotate         func(ctx context.Context, sessionID, fromJTI, toJTI string) (bool, error)
	CurrentRefresh func(ctx context.Context, sessionID string) (string, bool, error)
	// RevokeSession is invoked on reuse detection before surfacing the
	// failure.
	RevokeSession func(ctx context.Context, sessionID, reason string) error
}

// RunRefresh validates the presented refresh token and rotates it. The
// compare-and-swap on the session record is the only store write; it is
// issued after the successor token is already signed, so a cancellation
// after the swap leaves nothing ambiguous — the rotation simply took
// effect.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	claims, err := deps.ParseRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return RefreshResult{Failure: RefreshFailureExpired, Err: err}
		}
		return RefreshResult{Failure: RefreshFailureMalformed, Err: err}
	}
	if claims.SessionID == "" {
		return RefreshResult{Failure: RefreshFailureMalformed, Err: errors.New("refresh token without session id")}
	}

	sid := claims.SessionID
	res := RefreshResult{SessionID: sid, UserID: claims.Subject, TenantID: claims.TenantID}

	revoked, _, err := deps.CheckRevoked(ctx, claims.JTI(), sid)
	if err != nil {
		res.Failure, res.Err = RefreshFailureStore, err
		return res
	}
	if revoked {
		res.Failure = RefreshFailureRevoked
		return res
	}

	if deps.CheckLimit != nil {
		if err := deps.CheckLimit(ctx, sid); err != nil {
			if deps.LimitedErr != nil && errors.Is(err, deps.LimitedErr) {
				res.Failure, res.Err = RefreshFailureRateLimited, err
			} else {
				res.Failure, res.Err = RefreshFailureStore, err
			}
			return res
		}
	}

	newRefresh, newRefreshClaims, err := deps.IssueRefresh(claims)
	if err != nil {
		res.Failure, res.Err = RefreshFailureIssue, err
		return res
	}

	won, err := deps.Rotate(ctx, sid, claims.JTI(), newRefreshClaims.JTI())
	if err != nil {
		res.Failure, res.Err = RefreshFailureStore, err
		return res
	}
	if !won {
		// Either the session record is gone, or someone else already
		// rotated past the presented jti — that is a replay.
		if _, exists, lookErr := deps.CurrentRefresh(ctx, sid); lookErr == nil && !exists {
			res.Failure = RefreshFailureSessionGone
			return res
		}
		if revErr := deps.RevokeSession(ctx, sid, "refresh token reuse"); revErr == nil {
			res.SessionRevoked = true
		}
		res.Failure = RefreshFailureReuse
		return res
	}

	access, accessClaims, err := deps.IssueAccess(claims)
	if err != nil {
		res.Failure, res.Err = RefreshFailureIssue, err
		return res
	}

	res.Pair = &PairOutput{
		AccessToken:   access,
		RefreshToken:  newRefresh,
		SessionID:     sid,
		AccessClaims:  accessClaims,
		RefreshClaims: newRefreshClaims,
	}
	return res
}
