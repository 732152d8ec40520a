package rbac

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Role table mirroring the hierarchy the original service shipped with:
// owner > admin > member > viewer.
func testRoles() []Role {
	return []Role{
		{Name: "viewer", Permissions: []string{"projects:read"}},
		{Name: "member", Permissions: []string{"projects:write"}, Parents: []string{"viewer"}},
		{Name: "admin", Permissions: []string{"projects:delete", "users:manage"}, Parents: []string{"member"}},
		{Name: "owner", Permissions: []string{"billing:manage"}, Parents: []string{"admin"}},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(testRoles(), zerolog.Nop())
	require.NoError(t, err)
	return e
}

func TestResolvePermissionsInheritsAncestors(t *testing.T) {
	e := newTestEngine(t)

	assert.Equal(t, []string{"projects:read"}, e.ResolvePermissions([]string{"viewer"}))
	assert.Equal(t,
		[]string{"projects:read", "projects:write"},
		e.ResolvePermissions([]string{"member"}))
	assert.Equal(t,
		[]string{"billing:manage", "projects:delete", "projects:read", "projects:write", "users:manage"},
		e.ResolvePermissions([]string{"owner"}))
}

func TestResolvePermissionsUnknownRole(t *testing.T) {
	e := newTestEngine(t)

	assert.Empty(t, e.ResolvePermissions([]string{"ghost"}))
	// Unknown roles contribute nothing but never poison known ones.
	assert.Equal(t, []string{"projects:read"}, e.ResolvePermissions([]string{"ghost", "viewer"}))
}

func TestAuthorize(t *testing.T) {
	e := newTestEngine(t)

	assert.True(t, e.Authorize([]string{"member"}, nil, "projects:read"))
	assert.True(t, e.Authorize([]string{"member"}, nil, "projects:write"))
	assert.False(t, e.Authorize([]string{"member"}, nil, "projects:delete"))
	assert.False(t, e.Authorize([]string{"viewer"}, nil, "projects:write"))

	// Explicit grants work without any role.
	assert.True(t, e.Authorize(nil, []string{"exports:run"}, "exports:run"))

	// Exact match only; no wildcard semantics.
	assert.False(t, e.Authorize([]string{"owner"}, nil, "projects:*"))
	assert.False(t, e.Authorize(nil, []string{"projects:*"}, "projects:read"))
}

func TestAuthorizeAnyAll(t *testing.T) {
	e := newTestEngine(t)
	roles := []string{"member"}

	assert.True(t, e.AuthorizeAny(roles, nil, []string{"projects:delete", "projects:read"}))
	assert.False(t, e.AuthorizeAny(roles, nil, []string{"projects:delete", "billing:manage"}))

	assert.True(t, e.AuthorizeAll(roles, nil, []string{"projects:read", "projects:write"}))
	assert.False(t, e.AuthorizeAll(roles, nil, []string{"projects:read", "projects:delete"}))
	assert.True(t, e.AuthorizeAll(roles, nil, nil))
}

func TestLoadRejectsCycle(t *testing.T) {
	cyclic := []Role{
		{Name: "a", Parents: []string{"b"}},
		{Name: "b", Parents: []string{"c"}},
		{Name: "c", Parents: []string{"a"}},
	}
	_, err := New(cyclic, zerolog.Nop())
	assert.ErrorIs(t, err, ErrHierarchyCycle)

	selfCycle := []Role{{Name: "a", Parents: []string{"a"}}}
	_, err = New(selfCycle, zerolog.Nop())
	assert.ErrorIs(t, err, ErrHierarchyCycle)
}

func TestLoadRejectsUnknownParent(t *testing.T) {
	_, err := New([]Role{{Name: "a", Parents: []string{"nope"}}}, zerolog.Nop())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrHierarchyCycle)
}

func TestLoadRejectsDuplicates(t *testing.T) {
	_, err := New([]Role{{Name: "a"}, {Name: "a"}}, zerolog.Nop())
	assert.Error(t, err)
}

func TestReloadSwapsAtomically(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.Reload([]Role{
		{Name: "viewer", Permissions: []string{"projects:read", "reports:read"}},
	}))
	assert.True(t, e.Authorize([]string{"viewer"}, nil, "reports:read"))
	assert.False(t, e.KnownRole("owner"))

	// A failed reload leaves the previous table untouched.
	err := e.Reload([]Role{{Name: "x", Parents: []string{"x"}}})
	assert.ErrorIs(t, err, ErrHierarchyCycle)
	assert.True(t, e.Authorize([]string{"viewer"}, nil, "reports:read"))
}

func TestDiamondHierarchy(t *testing.T) {
	diamond := []Role{
		{Name: "base", Permissions: []string{"p:base"}},
		{Name: "left", Permissions: []string{"p:left"}, Parents: []string{"base"}},
		{Name: "right", Permissions: []string{"p:right"}, Parents: []string{"base"}},
		{Name: "top", Parents: []string{"left", "right"}},
	}
	e, err := New(diamond, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, []string{"p:base", "p:left", "p:right"}, e.ResolvePermissions([]string{"top"}))
}
