package netrunauth

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Netrun-Systems/netrun-auth/internal/audit"
	"github.com/Netrun-Systems/netrun-auth/internal/flows"
	"github.com/Netrun-Systems/netrun-auth/password"
	"github.com/Netrun-Systems/netrun-auth/rate"
	"github.com/Netrun-Systems/netrun-auth/rbac"
	"github.com/Netrun-Systems/netrun-auth/session"
	"github.com/Netrun-Systems/netrun-auth/token"
)

// Engine is the authentication and authorization core. All methods are
// safe for concurrent use.
type Engine struct {
	cfg       Config
	keys      *token.KeySet
	tokens    *token.Manager
	hasher    *password.Hasher
	dummyHash string
	sessions  *session.Store
	limiter   *rate.Limiter
	local     *rate.LocalLimiter
	roles     *rbac.Engine
	creds     CredentialProvider
	audit     *audit.Dispatcher
	metrics   *metrics
	log       zerolog.Logger
	clock     func() time.Time

	closed atomic.Bool
}

// Close flushes the audit pipeline and marks the engine unusable.
func (e *Engine) Close() {
	if e.closed.CompareAndSwap(false, true) {
		e.audit.Close()
	}
}

func (e *Engine) guard() error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	return nil
}

// Login verifies the identifier's secret and issues a token pair for a
// fresh session. Unknown identifiers and wrong secrets both return
// ErrInvalidCredentials after equivalent argon2 work.
func (e *Engine) Login(ctx context.Context, identifier, secret string) (TokenPair, error) {
	if err := e.guard(); err != nil {
		return TokenPair{}, err
	}
	if e.creds == nil {
		return TokenPair{}, errors.New("no credential provider configured")
	}

	limitKey := "login:" + identifier

	// The in-process stage sheds hot loops before they reach the store
	// or the hasher.
	if e.local != nil && !e.local.Allow(limitKey) {
		e.metrics.inc(MetricLoginRateLimited)
		e.emit(ctx, audit.EventLoginRateLimited, false, "", "", "", "", map[string]string{"identifier": identifier, "stage": "local"})
		return TokenPair{}, &RateLimitError{RetryAfter: time.Second}
	}

	res := flows.RunLogin(ctx, secret, flows.LoginDeps{
		CheckLimit: func(ctx context.Context) (time.Duration, error) {
			r, err := e.limiter.CheckAndIncrement(ctx, limitKey, e.cfg.Login.MaxAttempts, e.cfg.Login.Window)
			return r.RetryAfter, err
		},
		LimitedErr: rate.ErrLimited,
		ResetLimit: func(ctx context.Context) error {
			return e.limiter.Reset(ctx, limitKey)
		},
		Lookup: func(ctx context.Context) (*flows.Credential, bool, error) {
			cred, found, err := e.creds.Lookup(ctx, identifier)
			if err != nil || !found {
				return nil, false, err
			}
			return &flows.Credential{
				UserID:      cred.UserID,
				TenantID:    cred.TenantID,
				Roles:       cred.Roles,
				Permissions: cred.Permissions,
				SecretHash:  cred.SecretHash,
			}, true, nil
		},
		Verify:          e.hasher.Verify,
		IsCorrupt:       func(err error) bool { return errors.Is(err, password.ErrCorruptHash) },
		DummySecretHash: e.dummyHash,
		IssuePair: func(ctx context.Context, cred *flows.Credential) (*flows.PairOutput, error) {
			return e.issuePair(ctx, token.IssueInput{
				Subject:     cred.UserID,
				TenantID:    cred.TenantID,
				Roles:       cred.Roles,
				Permissions: cred.Permissions,
			})
		},
	})

	userID, tenantID := "", ""
	if res.Credential != nil {
		userID, tenantID = res.Credential.UserID, res.Credential.TenantID
	}

	switch res.Failure {
	case flows.LoginFailureNone:
		e.metrics.inc(MetricLoginSuccess)
		e.metrics.inc(MetricPairsIssued)
		e.emit(ctx, audit.EventLoginSuccess, true, userID, tenantID, res.Pair.SessionID, "", nil)
		return pairFromOutput(res.Pair), nil

	case flows.LoginFailureRateLimited:
		e.metrics.inc(MetricLoginRateLimited)
		e.emit(ctx, audit.EventLoginRateLimited, false, "", "", "", "", map[string]string{"identifier": identifier})
		return TokenPair{}, &RateLimitError{RetryAfter: res.RetryAfter}

	case flows.LoginFailureUnknownUser, flows.LoginFailureMismatch:
		e.metrics.inc(MetricLoginFailure)
		e.emit(ctx, audit.EventLoginFailure, false, userID, tenantID, "", "credential mismatch", nil)
		return TokenPair{}, ErrInvalidCredentials

	case flows.LoginFailureCorruptHash:
		e.metrics.inc(MetricLoginFailure)
		e.log.Error().Str("user_id", userID).Msg("stored credential hash is corrupt")
		e.emit(ctx, audit.EventCorruptHash, false, userID, tenantID, "", res.Err.Error(), nil)
		return TokenPair{}, ErrInvalidCredentials

	case flows.LoginFailureStore:
		e.metrics.inc(MetricStoreUnavailable)
		e.emit(ctx, audit.EventStoreUnavailable, false, userID, tenantID, "", res.Err.Error(), nil)
		return TokenPair{}, res.Err

	default:
		e.metrics.inc(MetricLoginFailure)
		return TokenPair{}, res.Err
	}
}

// IssuePair mints an access and refresh token for an already
// authenticated principal, starting a new session unless the principal
// carries one.
func (e *Engine) IssuePair(ctx context.Context, p Principal) (TokenPair, error) {
	if err := e.guard(); err != nil {
		return TokenPair{}, err
	}
	if p.ID == "" {
		return TokenPair{}, errors.New("principal id required")
	}

	out, err := e.issuePair(ctx, token.IssueInput{
		Subject:     p.ID,
		TenantID:    p.TenantID,
		SessionID:   p.SessionID,
		Roles:       p.Roles,
		Permissions: p.Permissions,
		Ext:         p.Ext,
	})
	if err != nil {
		return TokenPair{}, err
	}

	e.metrics.inc(MetricPairsIssued)
	e.emit(ctx, audit.EventPairIssued, true, p.ID, p.TenantID, out.SessionID, "", nil)
	return pairFromOutput(out), nil
}

// issuePair signs both tokens, then binds the refresh jti to the
// session. The store write comes last so a failure leaves no session
// that could accept a rotation.
func (e *Engine) issuePair(ctx context.Context, in token.IssueInput) (*flows.PairOutput, error) {
	if in.SessionID == "" {
		in.SessionID = uuid.NewString()
	}

	access, accessClaims, err := e.tokens.Issue(in, token.TypeAccess)
	if err != nil {
		return nil, err
	}
	refresh, refreshClaims, err := e.tokens.Issue(in, token.TypeRefresh)
	if err != nil {
		return nil, err
	}
	if err := e.sessions.BindRefresh(ctx, in.SessionID, refreshClaims.JTI(), e.tokens.TTL(token.TypeRefresh)); err != nil {
		e.metrics.inc(MetricStoreUnavailable)
		return nil, err
	}

	return &flows.PairOutput{
		AccessToken:   access,
		RefreshToken:  refresh,
		SessionID:     in.SessionID,
		AccessClaims:  accessClaims,
		RefreshClaims: refreshClaims,
	}, nil
}

// IssueInvite mints a stateless single-purpose invite token. Invites
// carry no session and cannot be refreshed.
func (e *Engine) IssueInvite(ctx context.Context, p Principal) (string, error) {
	if err := e.guard(); err != nil {
		return "", err
	}
	if p.ID == "" {
		return "", errors.New("principal id required")
	}

	invite, _, err := e.tokens.Issue(token.IssueInput{
		Subject:     p.ID,
		TenantID:    p.TenantID,
		Roles:       p.Roles,
		Permissions: p.Permissions,
		Ext:         p.Ext,
	}, token.TypeInvite)
	if err != nil {
		return "", err
	}

	e.metrics.inc(MetricInvitesIssued)
	e.emit(ctx, audit.EventInviteIssued, true, p.ID, p.TenantID, "", "", nil)
	return invite, nil
}

// Validate checks an access token's signature, validity window,
// structure and revocation status, in that order, and returns the
// request identity on success.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*AuthContext, error) {
	return e.validateType(ctx, accessToken, token.TypeAccess)
}

// ValidateInvite validates an invite token. Revocation records apply
// to invites the same way they do to access tokens.
func (e *Engine) ValidateInvite(ctx context.Context, inviteToken string) (*AuthContext, error) {
	return e.validateType(ctx, inviteToken, token.TypeInvite)
}

func (e *Engine) validateType(ctx context.Context, tokenStr string, typ token.Type) (*AuthContext, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}

	res := flows.RunValidate(ctx, tokenStr, flows.ValidateDeps{
		Parse: func(s string) (*token.Claims, error) {
			return e.tokens.ParseType(s, typ)
		},
		CheckRevoked: e.sessions.CheckRevoked,
		FailOpen:     e.cfg.Security.FailOpen,
	})

	switch res.Failure {
	case flows.ValidateFailureNone:
		e.metrics.inc(MetricValidateSuccess)
		if res.RevocationSkipped {
			e.metrics.inc(MetricStoreUnavailable)
			e.log.Warn().Str("jti", res.Claims.JTI()).Msg("revocation store unreachable, accepting token fail-open")
		}
		return newAuthContext(res.Claims, res.RevocationSkipped), nil

	case flows.ValidateFailureExpired:
		e.metrics.inc(MetricValidateExpired)
		return nil, ErrTokenExpired

	case flows.ValidateFailureRevoked:
		e.metrics.inc(MetricValidateRevoked)
		if res.RevocationReason != "" {
			return nil, fmt.Errorf("%w: %s", ErrTokenRevoked, res.RevocationReason)
		}
		return nil, ErrTokenRevoked

	case flows.ValidateFailureStore:
		e.metrics.inc(MetricStoreUnavailable)
		return nil, res.Err

	default:
		e.metrics.inc(MetricValidateInvalid)
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, res.Err)
	}
}

// Refresh rotates a refresh token: the presented token is atomically
// replaced by a new pair sharing the same session. Presenting an
// already-rotated token revokes the entire session and returns
// ErrRefreshReuse.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if err := e.guard(); err != nil {
		return TokenPair{}, err
	}

	res := flows.RunRefresh(ctx, refreshToken, flows.RefreshDeps{
		ParseRefresh: func(s string) (*token.Claims, error) {
			return e.tokens.ParseType(s, token.TypeRefresh)
		},
		CheckRevoked: e.sessions.CheckRevoked,
		CheckLimit: func(ctx context.Context, sessionID string) error {
			r, err := e.limiter.CheckAndIncrement(ctx, "refresh:"+sessionID, e.cfg.Refresh.MaxAttempts, e.cfg.Refresh.Window)
			if errors.Is(err, rate.ErrLimited) {
				return &RateLimitError{RetryAfter: r.RetryAfter}
			}
			return err
		},
		LimitedErr: rate.ErrLimited,
		IssueRefresh: func(old *token.Claims) (string, *token.Claims, error) {
			return e.tokens.Issue(issueInputFromClaims(old), token.TypeRefresh)
		},
		IssueAccess: func(old *token.Claims) (string, *token.Claims, error) {
			return e.tokens.Issue(issueInputFromClaims(old), token.TypeAccess)
		},
		Rotate:         e.sessions.RotateRefresh,
		CurrentRefresh: e.sessions.CurrentRefresh,
		RevokeSession: func(ctx context.Context, sessionID, reason string) error {
			return e.sessions.RevokeSession(ctx, sessionID, reason, e.tokens.TTL(token.TypeRefresh))
		},
	})

	switch res.Failure {
	case flows.RefreshFailureNone:
		e.metrics.inc(MetricRefreshSuccess)
		e.metrics.inc(MetricPairsIssued)
		e.emit(ctx, audit.EventRefreshSuccess, true, res.UserID, res.TenantID, res.SessionID, "", nil)
		return pairFromOutput(res.Pair), nil

	case flows.RefreshFailureExpired:
		e.metrics.inc(MetricRefreshFailure)
		return TokenPair{}, ErrTokenExpired

	case flows.RefreshFailureMalformed:
		e.metrics.inc(MetricRefreshFailure)
		return TokenPair{}, fmt.Errorf("%w: %v", ErrTokenInvalid, res.Err)

	case flows.RefreshFailureRevoked:
		e.metrics.inc(MetricRefreshFailure)
		e.emit(ctx, audit.EventRefreshFailure, false, res.UserID, res.TenantID, res.SessionID, "token revoked", nil)
		return TokenPair{}, ErrTokenRevoked

	case flows.RefreshFailureRateLimited:
		e.metrics.inc(MetricRefreshRateLimited)
		e.emit(ctx, audit.EventRateLimited, false, res.UserID, res.TenantID, res.SessionID, "", nil)
		return TokenPair{}, res.Err

	case flows.RefreshFailureReuse:
		e.metrics.inc(MetricRefreshReuse)
		if res.SessionRevoked {
			e.metrics.inc(MetricSessionsRevoked)
		}
		e.log.Warn().
			Str("session_id", res.SessionID).
			Str("user_id", res.UserID).
			Bool("session_revoked", res.SessionRevoked).
			Msg("refresh token reuse detected")
		e.emit(ctx, audit.EventRefreshReuse, false, res.UserID, res.TenantID, res.SessionID, "", nil)
		return TokenPair{}, ErrRefreshReuse

	case flows.RefreshFailureSessionGone:
		e.metrics.inc(MetricRefreshFailure)
		return TokenPair{}, ErrSessionNotFound

	case flows.RefreshFailureStore:
		e.metrics.inc(MetricStoreUnavailable)
		e.emit(ctx, audit.EventStoreUnavailable, false, res.UserID, res.TenantID, res.SessionID, res.Err.Error(), nil)
		return TokenPair{}, res.Err

	default:
		e.metrics.inc(MetricRefreshFailure)
		return TokenPair{}, res.Err
	}
}

// RevokeToken blacklists a signed token for the remainder of its life.
// Revoking an already-expired token is a no-op.
func (e *Engine) RevokeToken(ctx context.Context, signedToken, reason string) error {
	if err := e.guard(); err != nil {
		return err
	}

	claims, err := e.tokens.Parse(signedToken)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return e.revokeJTI(ctx, claims.JTI(), claims.Subject, claims.TenantID, reason, claims.RemainingLife(e.clock()))
}

// RevokeJTI blacklists a token by id when only the jti and remaining
// lifetime are known, typically from an admin interface.
func (e *Engine) RevokeJTI(ctx context.Context, jti, reason string, remaining time.Duration) error {
	if err := e.guard(); err != nil {
		return err
	}
	return e.revokeJTI(ctx, jti, "", "", reason, remaining)
}

func (e *Engine) revokeJTI(ctx context.Context, jti, userID, tenantID, reason string, remaining time.Duration) error {
	if remaining <= 0 {
		return nil
	}
	if err := e.sessions.RevokeToken(ctx, jti, reason, remaining); err != nil {
		e.metrics.inc(MetricStoreUnavailable)
		return err
	}
	e.metrics.inc(MetricTokensRevoked)
	e.emit(ctx, audit.EventTokenRevoked, true, userID, tenantID, "", "", map[string]string{"jti": jti, "reason": reason})
	return nil
}

// RevokeSession invalidates every token bound to the session,
// including access tokens that are otherwise still within their
// validity window.
func (e *Engine) RevokeSession(ctx context.Context, sessionID, reason string) error {
	if err := e.guard(); err != nil {
		return err
	}
	if err := e.sessions.RevokeSession(ctx, sessionID, reason, e.tokens.TTL(token.TypeRefresh)); err != nil {
		e.metrics.inc(MetricStoreUnavailable)
		return err
	}
	e.metrics.inc(MetricSessionsRevoked)
	e.emit(ctx, audit.EventSessionRevoked, true, "", "", sessionID, "", map[string]string{"reason": reason})
	return nil
}

// Logout validates the access token and revokes its session. A token
// that is already expired or revoked yields the corresponding
// validation error.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	ac, err := e.Validate(ctx, accessToken)
	if err != nil {
		return err
	}
	if ac.SessionID() != "" {
		return e.RevokeSession(ctx, ac.SessionID(), "logout")
	}
	remaining := ac.ExpiresAt().Sub(e.clock())
	return e.revokeJTI(ctx, ac.TokenID(), ac.UserID(), ac.TenantID(), "logout", remaining)
}

// ResolvePermissions expands a role list into the full permission set
// including everything inherited through the role hierarchy.
func (e *Engine) ResolvePermissions(roles []string) []string {
	return e.roles.ResolvePermissions(roles)
}

// Authorize reports whether the validated identity holds the required
// permission, through its roles or its explicit token permissions.
// Matching is exact; there are no wildcards.
func (e *Engine) Authorize(ac *AuthContext, required string) bool {
	ok := e.roles.Authorize(ac.roles, ac.permissions, required)
	if ok {
		e.metrics.inc(MetricAuthorizeAllowed)
	} else {
		e.metrics.inc(MetricAuthorizeDenied)
	}
	return ok
}

// AuthorizeAny reports whether the identity holds at least one of the
// required permissions. An empty requirement list is vacuously true.
func (e *Engine) AuthorizeAny(ac *AuthContext, required []string) bool {
	ok := e.roles.AuthorizeAny(ac.roles, ac.permissions, required)
	if ok {
		e.metrics.inc(MetricAuthorizeAllowed)
	} else {
		e.metrics.inc(MetricAuthorizeDenied)
	}
	return ok
}

// AuthorizeAll reports whether the identity holds every required
// permission.
func (e *Engine) AuthorizeAll(ac *AuthContext, required []string) bool {
	ok := e.roles.AuthorizeAll(ac.roles, ac.permissions, required)
	if ok {
		e.metrics.inc(MetricAuthorizeAllowed)
	} else {
		e.metrics.inc(MetricAuthorizeDenied)
	}
	return ok
}

// ReloadRoles atomically replaces the role table. On error the
// previous table stays in effect.
func (e *Engine) ReloadRoles(roles []rbac.Role) error {
	return e.roles.Reload(roles)
}

// RateLimit charges one attempt against an application-defined
// limiter key. A denied attempt returns a *RateLimitError with the
// retry hint.
func (e *Engine) RateLimit(ctx context.Context, key string, limit int64, window time.Duration) (rate.Result, error) {
	if err := e.guard(); err != nil {
		return rate.Result{}, err
	}
	res, err := e.limiter.CheckAndIncrement(ctx, key, limit, window)
	if errors.Is(err, rate.ErrLimited) {
		e.metrics.inc(MetricRateLimitExceeded)
		e.emit(ctx, audit.EventRateLimited, false, "", "", "", "", map[string]string{"key": key})
		return res, &RateLimitError{RetryAfter: res.RetryAfter}
	}
	if err != nil {
		e.metrics.inc(MetricStoreUnavailable)
	}
	return res, err
}

// Keys exposes the signing key set for rotation.
func (e *Engine) Keys() *token.KeySet { return e.keys }

// HashSecret hashes a secret with the engine's configured argon2id
// parameters, producing the PHC string a CredentialProvider stores.
func (e *Engine) HashSecret(secret string) (string, error) {
	return e.hasher.Hash(secret)
}

// SecretNeedsRehash reports whether a stored hash was produced with
// weaker parameters than currently configured.
func (e *Engine) SecretNeedsRehash(encoded string) (bool, error) {
	return e.hasher.NeedsRehash(encoded)
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	snap := e.metrics.snapshot()
	if e.audit != nil {
		snap[MetricAuditDropped.String()] = e.audit.Dropped()
	}
	return snap
}

// MetricValue returns a single counter.
func (e *Engine) MetricValue(id MetricID) uint64 {
	if id == MetricAuditDropped && e.audit != nil {
		return e.audit.Dropped()
	}
	return e.metrics.get(id)
}

func (e *Engine) emit(ctx context.Context, t audit.EventType, success bool, userID, tenantID, sessionID, errStr string, fields map[string]string) {
	if e.audit == nil {
		return
	}
	e.audit.Emit(ctx, audit.Event{
		Type:      t,
		At:        e.clock(),
		Success:   success,
		UserID:    userID,
		TenantID:  tenantID,
		SessionID: sessionID,
		ClientIP:  clientIPFrom(ctx),
		Error:     errStr,
		Fields:    fields,
	})
}

func issueInputFromClaims(c *token.Claims) token.IssueInput {
	return token.IssueInput{
		Subject:     c.Subject,
		TenantID:    c.TenantID,
		SessionID:   c.SessionID,
		Roles:       c.Roles,
		Permissions: c.Permissions,
		Ext:         c.Ext,
	}
}

func pairFromOutput(out *flows.PairOutput) TokenPair {
	tp := TokenPair{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		SessionID:    out.SessionID,
	}
	if out.AccessClaims != nil && out.AccessClaims.ExpiresAt != nil {
		tp.AccessExpiresAt = out.AccessClaims.ExpiresAt.Time
	}
	if out.RefreshClaims != nil && out.RefreshClaims.ExpiresAt != nil {
		tp.RefreshExpiresAt = out.RefreshClaims.ExpiresAt.Time
	}
	return tp
}
