package rbac

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ErrHierarchyCycle is returned by Load/Reload when the role hierarchy
// contains a cycle. This is fatal at configuration time by design.
var ErrHierarchyCycle = errors.New("role hierarchy cycle")

// Role is one entry of the role table: its own permissions plus optional
// parent roles whose permissions it inherits transitively.
type Role struct {
	Name        string
	Permissions []string
	Parents     []string
}

// snapshot holds the fully resolved role table. Immutable after build.
type snapshot struct {
	// resolved maps role name to its flattened permission set, ancestors
	// included.
	resolved map[string]map[string]struct{}
}

// Engine evaluates authorization decisions against the current role
// table snapshot. All methods are safe for concurrent use; Reload swaps
// the snapshot atomically so readers always see a fully-formed table.
type Engine struct {
	snap atomic.Pointer[snapshot]
	log  zerolog.Logger
}

// New builds an engine from the initial role table. A hierarchy cycle or
// duplicate role name fails the load.
func New(roles []Role, log zerolog.Logger) (*Engine, error) {
	snap, err := buildSnapshot(roles)
	if err != nil {
		return nil, err
	}
	e := &Engine{log: log}
	e.snap.Store(snap)
	return e, nil
}

// Reload replaces the role table. On error the previous table stays in
// effect; there is no partially-applied state.
func (e *Engine) Reload(roles []Role) error {
	snap, err := buildSnapshot(roles)
	if err != nil {
		return err
	}
	e.snap.Store(snap)
	return nil
}

// ResolvePermissions returns the union of the given roles' permission
// sets, ancestors included, sorted for determinism. Unknown roles
// contribute nothing and are logged; they never grant access.
func (e *Engine) ResolvePermissions(roles []string) []string {
	snap := e.snap.Load()
	set := make(map[string]struct{})
	for _, role := range roles {
		perms, ok := snap.resolved[role]
		if !ok {
			e.log.Warn().Str("role", role).Msg("unknown role resolves to no permissions")
			continue
		}
		for perm := range perms {
			set[perm] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for perm := range set {
		out = append(out, perm)
	}
	sort.Strings(out)
	return out
}

// Authorize reports whether required is granted either explicitly or
// through any of the principal's roles. Matching is exact.
func (e *Engine) Authorize(roles, explicit []string, required string) bool {
	for _, perm := range explicit {
		if perm == required {
			return true
		}
	}

	snap := e.snap.Load()
	for _, role := range roles {
		perms, ok := snap.resolved[role]
		if !ok {
			e.log.Warn().Str("role", role).Msg("unknown role in authorization check")
			continue
		}
		if _, ok := perms[required]; ok {
			return true
		}
	}
	return false
}

// AuthorizeAny reports whether at least one of required is granted.
func (e *Engine) AuthorizeAny(roles, explicit []string, required []string) bool {
	for _, perm := range required {
		if e.Authorize(roles, explicit, perm) {
			return true
		}
	}
	return false
}

// AuthorizeAll reports whether every one of required is granted. An
// empty requirement list is vacuously satisfied.
func (e *Engine) AuthorizeAll(roles, explicit []string, required []string) bool {
	for _, perm := range required {
		if !e.Authorize(roles, explicit, perm) {
			return false
		}
	}
	return true
}

// KnownRole reports whether name exists in the current table.
func (e *Engine) KnownRole(name string) bool {
	_, ok := e.snap.Load().resolved[name]
	return ok
}

const (
	colorWhite = iota // unvisited
	colorGray         // on the current DFS path
	colorBlack        // fully resolved
)

func buildSnapshot(roles []Role) (*snapshot, error) {
	byName := make(map[string]*Role, len(roles))
	for i := range roles {
		r := &roles[i]
		if r.Name == "" {
			return nil, errors.New("rbac: empty role name")
		}
		if _, dup := byName[r.Name]; dup {
			return nil, fmt.Errorf("rbac: duplicate role %q", r.Name)
		}
		byName[r.Name] = r
	}

	snap := &snapshot{resolved: make(map[string]map[string]struct{}, len(roles))}
	color := make(map[string]int, len(roles))

	var resolve func(name string, path []string) (map[string]struct{}, error)
	resolve = func(name string, path []string) (map[string]struct{}, error) {
		switch color[name] {
		case colorBlack:
			return snap.resolved[name], nil
		case colorGray:
			return nil, fmt.Errorf("%w: %v -> %s", ErrHierarchyCycle, path, name)
		}

		role := byName[name]
		color[name] = colorGray

		perms := make(map[string]struct{}, len(role.Permissions))
		for _, p := range role.Permissions {
			perms[p] = struct{}{}
		}
		for _, parent := range role.Parents {
			if _, known := byName[parent]; !known {
				// An absent parent grants nothing; fail-closed, surfaced
				// at load so operators notice.
				return nil, fmt.Errorf("rbac: role %q inherits unknown role %q", name, parent)
			}
			inherited, err := resolve(parent, append(path, name))
			if err != nil {
				return nil, err
			}
			for p := range inherited {
				perms[p] = struct{}{}
			}
		}

		color[name] = colorBlack
		snap.resolved[name] = perms
		return perms, nil
	}

	for name := range byName {
		if _, err := resolve(name, nil); err != nil {
			return nil, err
		}
	}
	return snap, nil
}
