package token

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestManager(t *testing.T, clock *fakeClock) (*Manager, *KeySet) {
	t.Helper()

	keys, err := NewGeneratedKeySet("k1")
	require.NoError(t, err)

	mgr, err := NewManager(Config{
		Issuer:     "netrun-auth-test",
		Audience:   "api",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 30 * 24 * time.Hour,
		InviteTTL:  time.Hour,
		Leeway:     30 * time.Second,
		Now:        clock.Now,
	}, keys)
	require.NoError(t, err)
	return mgr, keys
}

func testInput() IssueInput {
	return IssueInput{
		Subject:     "u1",
		TenantID:    "t1",
		SessionID:   "s1",
		Roles:       []string{"user"},
		Permissions: []string{"projects:read"},
		Ext:         map[string]string{"plan": "pro"},
	}
}

func TestIssueParseRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	mgr, _ := newTestManager(t, clock)

	signed, issued, err := mgr.Issue(testInput(), TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(signed, ".")+1, "three dot-joined parts")

	claims, err := mgr.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "t1", claims.TenantID)
	assert.Equal(t, "s1", claims.SessionID)
	assert.Equal(t, TypeAccess, claims.TokenType)
	assert.Equal(t, issued.ID, claims.ID)
	assert.Equal(t, []string{"user"}, claims.Roles)
	assert.Equal(t, []string{"projects:read"}, claims.Permissions)
	assert.Equal(t, "pro", claims.Ext["plan"])
	assert.True(t, claims.IssuedAt.Time.Before(claims.ExpiresAt.Time))
}

func TestIssueDistinctJTIs(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	mgr, _ := newTestManager(t, clock)

	_, a, err := mgr.Issue(testInput(), TypeAccess)
	require.NoError(t, err)
	_, b, err := mgr.Issue(testInput(), TypeRefresh)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestTTLPerType(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	mgr, _ := newTestManager(t, clock)

	assert.Equal(t, 15*time.Minute, mgr.TTL(TypeAccess))
	assert.Equal(t, 30*24*time.Hour, mgr.TTL(TypeRefresh))
	assert.Equal(t, time.Hour, mgr.TTL(TypeInvite))
}

func TestParseExpired(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	mgr, _ := newTestManager(t, clock)

	signed, _, err := mgr.Issue(testInput(), TypeAccess)
	require.NoError(t, err)

	// Just inside leeway: still valid.
	clock.Advance(15*time.Minute + 10*time.Second)
	_, err = mgr.Parse(signed)
	assert.NoError(t, err)

	// Past leeway: expired, not malformed.
	clock.Advance(time.Minute)
	_, err = mgr.Parse(signed)
	assert.ErrorIs(t, err, ErrExpired)
	assert.NotErrorIs(t, err, ErrMalformed)
}

func TestParseTampered(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	mgr, _ := newTestManager(t, clock)

	signed, _, err := mgr.Issue(testInput(), TypeAccess)
	require.NoError(t, err)

	parts := strings.Split(signed, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	_, err = mgr.Parse(tampered)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseGarbage(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	mgr, _ := newTestManager(t, clock)

	for _, in := range []string{"", "x", "a.b.c", strings.Repeat(".", 10)} {
		_, err := mgr.Parse(in)
		assert.ErrorIs(t, err, ErrMalformed, "input %q", in)
	}
}

func TestParseWrongKey(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	mgr, _ := newTestManager(t, clock)
	other, _ := newTestManager(t, clock)

	signed, _, err := other.Issue(testInput(), TypeAccess)
	require.NoError(t, err)

	// Same kid, different key material: signature must fail.
	_, err = mgr.Parse(signed)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseTypeMismatch(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	mgr, _ := newTestManager(t, clock)

	signed, _, err := mgr.Issue(testInput(), TypeAccess)
	require.NoError(t, err)

	_, err = mgr.ParseType(signed, TypeRefresh)
	assert.ErrorIs(t, err, ErrMalformed)

	claims, err := mgr.ParseType(signed, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, TypeAccess, claims.TokenType)
}

func TestKeyRotationKeepsOldTokensValid(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	mgr, keys := newTestManager(t, clock)

	oldToken, _, err := mgr.Issue(testInput(), TypeAccess)
	require.NoError(t, err)

	rotated, err := NewGeneratedKeySet("k2")
	require.NoError(t, err)
	kid, priv, err := rotated.SigningKey()
	require.NoError(t, err)
	pub, err := rotated.VerifyKey(kid)
	require.NoError(t, err)
	require.NoError(t, keys.Rotate("k2", priv, pub))

	// Token signed before rotation still verifies.
	_, err = mgr.Parse(oldToken)
	assert.NoError(t, err)

	// New issuance uses the new key.
	newToken, _, err := mgr.Issue(testInput(), TypeAccess)
	require.NoError(t, err)
	_, err = mgr.Parse(newToken)
	assert.NoError(t, err)

	// Retiring the old kid invalidates the old token only.
	require.NoError(t, keys.Retire("k1"))
	_, err = mgr.Parse(oldToken)
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = mgr.Parse(newToken)
	assert.NoError(t, err)
}

func TestRetireSigningKeyRejected(t *testing.T) {
	keys, err := NewGeneratedKeySet("k1")
	require.NoError(t, err)
	assert.Error(t, keys.Retire("k1"))
}

func TestRemainingLife(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	mgr, _ := newTestManager(t, clock)

	_, claims, err := mgr.Issue(testInput(), TypeAccess)
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, claims.RemainingLife(clock.Now()))
	assert.Equal(t, time.Duration(0), claims.RemainingLife(clock.Now().Add(16*time.Minute)))
}

func TestManagerConfigValidation(t *testing.T) {
	keys, err := NewGeneratedKeySet("k1")
	require.NoError(t, err)

	bad := []Config{
		{AccessTTL: 0, RefreshTTL: time.Hour, InviteTTL: time.Hour},
		{AccessTTL: time.Hour, RefreshTTL: time.Minute, InviteTTL: time.Hour},
		{AccessTTL: time.Minute, RefreshTTL: time.Hour, InviteTTL: time.Hour, Leeway: 5 * time.Minute},
	}
	for i, cfg := range bad {
		_, err := NewManager(cfg, keys)
		assert.Error(t, err, "case %d", i)
	}

	_, err = NewManager(Config{AccessTTL: time.Minute, RefreshTTL: time.Hour, InviteTTL: time.Hour}, nil)
	assert.Error(t, err)
}
