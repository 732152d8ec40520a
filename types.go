package netrunauth

import (
	"context"
	"time"

	"github.com/Netrun-Systems/netrun-auth/token"
)

// Principal identifies the subject a token pair is issued for.
type Principal struct {
	ID          string
	TenantID    string
	Roles       []string
	Permissions []string

	// SessionID, when set, reuses an existing session instead of
	// starting a new one. IssuePair generates one when empty.
	SessionID string

	// Ext carries extra claims copied verbatim into issued tokens.
	Ext map[string]string
}

// TokenPair is the result of login, pair issuance and refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	SessionID        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Credential is the stored verification material for one identifier,
// as returned by a CredentialProvider.
type Credential struct {
	UserID      string
	TenantID    string
	Roles       []string
	Permissions []string

	// SecretHash is the PHC-encoded argon2id hash of the secret.
	SecretHash string
}

// CredentialProvider resolves login identifiers against the caller's
// user storage. Lookup returns found=false for unknown identifiers;
// an error is reserved for storage failures.
type CredentialProvider interface {
	Lookup(ctx context.Context, identifier string) (Credential, bool, error)
}

// CredentialProviderFunc adapts a function to the CredentialProvider
// interface.
type CredentialProviderFunc func(ctx context.Context, identifier string) (Credential, bool, error)

func (f CredentialProviderFunc) Lookup(ctx context.Context, identifier string) (Credential, bool, error) {
	return f(ctx, identifier)
}

// AuthContext is the immutable identity attached to a request after
// successful validation. Slice accessors return copies.
type AuthContext struct {
	userID      string
	tenantID    string
	sessionID   string
	tokenID     string
	tokenType   token.Type
	roles       []string
	permissions []string
	ext         map[string]string
	expiresAt   time.Time
	issuedAt    time.Time

	// revocationSkipped is set when the store was unreachable and the
	// engine is configured to fail open.
	revocationSkipped bool
}

func newAuthContext(c *token.Claims, revocationSkipped bool) *AuthContext {
	ac := &AuthContext{
		userID:            c.Subject,
		tenantID:          c.TenantID,
		sessionID:         c.SessionID,
		tokenID:           c.ID,
		tokenType:         c.TokenType,
		roles:             append([]string(nil), c.Roles...),
		permissions:       append([]string(nil), c.Permissions...),
		revocationSkipped: revocationSkipped,
	}
	if c.ExpiresAt != nil {
		ac.expiresAt = c.ExpiresAt.Time
	}
	if c.IssuedAt != nil {
		ac.issuedAt = c.IssuedAt.Time
	}
	if len(c.Ext) > 0 {
		ac.ext = make(map[string]string, len(c.Ext))
		for k, v := range c.Ext {
			ac.ext[k] = v
		}
	}
	return ac
}

func (a *AuthContext) UserID() string        { return a.userID }
func (a *AuthContext) TenantID() string      { return a.tenantID }
func (a *AuthContext) SessionID() string     { return a.sessionID }
func (a *AuthContext) TokenID() string       { return a.tokenID }
func (a *AuthContext) TokenType() token.Type { return a.tokenType }
func (a *AuthContext) ExpiresAt() time.Time  { return a.expiresAt }
func (a *AuthContext) IssuedAt() time.Time   { return a.issuedAt }

// RevocationSkipped reports whether the revocation check was bypassed
// because the store was unreachable and the engine fails open.
func (a *AuthContext) RevocationSkipped() bool { return a.revocationSkipped }

func (a *AuthContext) Roles() []string {
	return append([]string(nil), a.roles...)
}

func (a *AuthContext) Permissions() []string {
	return append([]string(nil), a.permissions...)
}

// HasRole reports whether the token carries the named role.
func (a *AuthContext) HasRole(role string) bool {
	for _, r := range a.roles {
		if r == role {
			return true
		}
	}
	return false
}

// Ext returns an extra claim carried by the token.
func (a *AuthContext) Ext(key string) (string, bool) {
	v, ok := a.ext[key]
	return v, ok
}

// Principal rebuilds a Principal from the validated context, suitable
// for re-issuing tokens for the same subject.
func (a *AuthContext) Principal() Principal {
	p := Principal{
		ID:          a.userID,
		TenantID:    a.tenantID,
		SessionID:   a.sessionID,
		Roles:       append([]string(nil), a.roles...),
		Permissions: append([]string(nil), a.permissions...),
	}
	if len(a.ext) > 0 {
		p.Ext = make(map[string]string, len(a.ext))
		for k, v := range a.ext {
			p.Ext[k] = v
		}
	}
	return p
}
