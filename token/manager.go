package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Type classifies a token and selects its validity window.
type Type string

const (
	// TypeAccess is a short-lived stateless bearer token.
	TypeAccess Type = "access"
	// TypeRefresh is a long-lived single-use rotation token.
	TypeRefresh Type = "refresh"
	// TypeInvite is a short-lived token for account invitations.
	TypeInvite Type = "invite"
)

// Valid reports whether t is one of the defined token types.
func (t Type) Valid() bool {
	switch t {
	case TypeAccess, TypeRefresh, TypeInvite:
		return true
	}
	return false
}

var (
	// ErrExpired is returned for a well-formed, correctly signed token
	// whose expiry has passed (beyond leeway).
	ErrExpired = errors.New("token expired")
	// ErrMalformed is returned for tokens that fail signature, structure,
	// issuer/audience, or type checks. Not recoverable by refresh.
	ErrMalformed = errors.New("token malformed")
)

// Claims is the fixed signed payload. Tenant id, roles, and permissions
// are bound inside the signature and never accepted from unauthenticated
// input. Ext is a small extension map for forward-compatible custom
// fields; it is opaque to this package.
type Claims struct {
	TokenType   Type              `json:"typ"`
	TenantID    string            `json:"tid,omitempty"`
	SessionID   string            `json:"sid,omitempty"`
	Roles       []string          `json:"roles,omitempty"`
	Permissions []string          `json:"perms,omitempty"`
	Ext         map[string]string `json:"ext,omitempty"`
	jwt.RegisteredClaims
}

// JTI returns the unique token identifier used as the revocation and
// rotation key.
func (c *Claims) JTI() string { return c.ID }

// RemainingLife returns how long the token stays valid after now, floored
// at zero. Revocation records use it as their TTL.
func (c *Claims) RemainingLife(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	remaining := c.ExpiresAt.Time.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Config tunes token issuance and verification.
type Config struct {
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	InviteTTL  time.Duration
	// Leeway absorbs clock skew between issuer and verifier on exp/iat
	// checks. Bounded to keep the expiry invariant meaningful.
	Leeway time.Duration
	// MaxFutureIAT rejects tokens whose issued-at is implausibly far in
	// the future (a desynchronized or hostile issuer).
	MaxFutureIAT time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Manager signs and verifies tokens against a [KeySet]. Safe for
// concurrent use; the key set may be rotated underneath it at any time.
type Manager struct {
	cfg  Config
	keys *KeySet
}

// NewManager validates cfg and binds it to the given key set.
func NewManager(cfg Config, keys *KeySet) (*Manager, error) {
	if keys == nil {
		return nil, errors.New("token: nil key set")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.InviteTTL <= 0 {
		return nil, errors.New("token: all TTLs must be positive")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("token: refresh TTL must exceed access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("token: leeway out of range")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("token: MaxFutureIAT out of range")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{cfg: cfg, keys: keys}, nil
}

// TTL returns the configured validity window for a token type.
func (m *Manager) TTL(t Type) time.Duration {
	switch t {
	case TypeRefresh:
		return m.cfg.RefreshTTL
	case TypeInvite:
		return m.cfg.InviteTTL
	default:
		return m.cfg.AccessTTL
	}
}

// IssueInput describes the principal material bound into a token.
type IssueInput struct {
	Subject     string
	TenantID    string
	SessionID   string
	Roles       []string
	Permissions []string
	Ext         map[string]string
}

// Issue builds claims for the given principal and type, assigns a fresh
// jti, and signs with the current key. TTL comes from config policy
// only; there is no caller-supplied expiry.
func (m *Manager) Issue(in IssueInput, t Type) (string, *Claims, error) {
	if in.Subject == "" {
		return "", nil, errors.New("token: empty subject")
	}
	if !t.Valid() {
		return "", nil, fmt.Errorf("token: invalid type %q", t)
	}

	now := m.cfg.Now()
	claims := &Claims{
		TokenType:   t,
		TenantID:    in.TenantID,
		SessionID:   in.SessionID,
		Roles:       in.Roles,
		Permissions: in.Permissions,
		Ext:         in.Ext,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   in.Subject,
			Issuer:    m.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.TTL(t))),
		},
	}
	if m.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.cfg.Audience}
	}

	kid, priv, err := m.keys.SigningKey()
	if err != nil {
		return "", nil, err
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = kid

	signed, err := tok.SignedString(priv)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Parse verifies the signature against the trusted key set, then expiry,
// then claim structure, and returns the decoded claims. The only
// distinction surfaced is expired vs malformed; revocation is the
// caller's concern.
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.cfg.Now),
	}
	if m.cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.cfg.Leeway))
	}
	if m.cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.cfg.Issuer))
	}
	if m.cfg.Audience != "" {
		options = append(options, jwt.WithAudience(m.cfg.Audience))
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: missing kid", ErrMalformed)
		}
		return m.keys.VerifyKey(kid)
	})
	if err != nil {
		// Signature failures surface before claim validation, so an
		// expired verdict implies the signature already checked out.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrMalformed
	}
	if err := m.checkStructure(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseType parses and additionally requires the token's type.
func (m *Manager) ParseType(tokenStr string, want Type) (*Claims, error) {
	claims, err := m.Parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != want {
		return nil, fmt.Errorf("%w: type %q where %q required", ErrMalformed, claims.TokenType, want)
	}
	return claims, nil
}

func (m *Manager) checkStructure(c *Claims) error {
	if c.ID == "" {
		return fmt.Errorf("%w: missing jti", ErrMalformed)
	}
	if c.Subject == "" {
		return fmt.Errorf("%w: missing subject", ErrMalformed)
	}
	if !c.TokenType.Valid() {
		return fmt.Errorf("%w: missing or invalid typ", ErrMalformed)
	}
	if c.IssuedAt == nil || c.ExpiresAt == nil {
		return fmt.Errorf("%w: missing iat/exp", ErrMalformed)
	}
	if !c.IssuedAt.Time.Before(c.ExpiresAt.Time) {
		return fmt.Errorf("%w: iat not before exp", ErrMalformed)
	}
	if max := m.cfg.MaxFutureIAT; max > 0 {
		if c.IssuedAt.Time.After(m.cfg.Now().Add(max)) {
			return fmt.Errorf("%w: iat too far in the future", ErrMalformed)
		}
	}
	return nil
}
