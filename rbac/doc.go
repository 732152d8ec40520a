// Package rbac resolves roles to permissions and evaluates
// authorization decisions.
//
// The role table is process-wide configuration: loaded once, resolved
// into an immutable snapshot (including the full transitive closure of
// each role's ancestors), and swapped atomically on reload. Evaluation
// never walks the hierarchy at request time and never observes a
// half-updated table. A cycle in the hierarchy is a configuration bug
// and fails the load; it is never discovered during evaluation.
//
// Permissions are exact-match "resource:action" strings. The package is
// tenant-agnostic: tenant scoping is the caller's comparison of the
// principal's tenant against the resource's owning tenant, done before
// asking for an authorization decision.
package rbac
