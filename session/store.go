package session

import (
	"context"
	"time"

	"github.com/Netrun-Systems/netrun-auth/kvstore"
)

// Keys defines the store key layout. A shared prefix keeps auth state
// recognizable and scoped when the store is shared with other data.
type Keys struct {
	Prefix string
}

// RefreshJTI is the key holding the currently valid refresh jti for a
// session.
func (k Keys) RefreshJTI(sessionID string) string {
	return k.Prefix + ":sess:" + sessionID
}

// RevokedJTI is the revocation mark for a single token.
func (k Keys) RevokedJTI(jti string) string {
	return k.Prefix + ":rev:jti:" + jti
}

// RevokedSession is the bulk revocation mark covering every token issued
// under a session.
func (k Keys) RevokedSession(sessionID string) string {
	return k.Prefix + ":rev:sess:" + sessionID
}

// Store records session and revocation state in a [kvstore.Store].
type Store struct {
	kv   kvstore.Store
	keys Keys
}

// NewStore creates a session store under the given key prefix
// (default "na").
func NewStore(kv kvstore.Store, prefix string) *Store {
	if prefix == "" {
		prefix = "na"
	}
	return &Store{kv: kv, keys: Keys{Prefix: prefix}}
}

// BindRefresh records jti as the session's currently valid refresh jti.
// Called on login; ttl is the refresh token's full validity window.
func (s *Store) BindRefresh(ctx context.Context, sessionID, jti string, ttl time.Duration) error {
	return s.kv.Put(ctx, s.keys.RefreshJTI(sessionID), jti, ttl)
}

// RotateRefresh atomically moves the session's valid refresh jti from
// fromJTI to toJTI. Returns false when fromJTI is no longer the valid
// one (already rotated, or the session record is gone) — the caller
// decides whether that is reuse or an expired session.
func (s *Store) RotateRefresh(ctx context.Context, sessionID, fromJTI, toJTI string) (bool, error) {
	return s.kv.CompareAndSwap(ctx, s.keys.RefreshJTI(sessionID), fromJTI, toJTI)
}

// CurrentRefresh returns the session's valid refresh jti, if any.
func (s *Store) CurrentRefresh(ctx context.Context, sessionID string) (string, bool, error) {
	return s.kv.Get(ctx, s.keys.RefreshJTI(sessionID))
}

// RevokeToken writes a revocation record for one jti. ttl should be the
// token's remaining life; the record self-expires with the token.
func (s *Store) RevokeToken(ctx context.Context, jti, reason string, ttl time.Duration) error {
	if ttl <= 0 {
		// Token already past expiry; nothing to blacklist.
		return nil
	}
	return s.kv.Put(ctx, s.keys.RevokedJTI(jti), reason, ttl)
}

// RevokeSession writes a bulk revocation record covering all tokens
// issued under the session, and drops the refresh binding so no further
// rotation is possible. ttl is a fixed ceiling, normally the refresh TTL.
func (s *Store) RevokeSession(ctx context.Context, sessionID, reason string, ttl time.Duration) error {
	if err := s.kv.Put(ctx, s.keys.RevokedSession(sessionID), reason, ttl); err != nil {
		return err
	}
	return s.kv.Delete(ctx, s.keys.RefreshJTI(sessionID))
}

// CheckRevoked reports whether the token identified by jti, or its whole
// session, has been revoked. The session lookup is skipped for tokens
// issued without a session id.
func (s *Store) CheckRevoked(ctx context.Context, jti, sessionID string) (bool, string, error) {
	reason, ok, err := s.kv.Get(ctx, s.keys.RevokedJTI(jti))
	if err != nil {
		return false, "", err
	}
	if ok {
		return true, reason, nil
	}

	if sessionID == "" {
		return false, "", nil
	}
	reason, ok, err = s.kv.Get(ctx, s.keys.RevokedSession(sessionID))
	if err != nil {
		return false, "", err
	}
	if ok {
		return true, reason, nil
	}
	return false, "", nil
}
