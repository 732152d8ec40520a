// Package netrunauth provides the authentication and authorization core
// for Netrun services: Ed25519 token issuance and validation, refresh
// rotation with reuse detection, Redis-backed revocation and rate
// limiting, argon2id credential verification, and role-based access
// control with hierarchical permission resolution.
//
// The Engine is the single entry point. Construct one through the
// Builder, which wires the signing keys, the store, the role table and
// the credential provider:
//
//	eng, err := netrunauth.New().
//		WithConfig(netrunauth.DefaultConfig()).
//		WithGeneratedSigningKey("2026-01").
//		WithRedis(client).
//		WithRoles(roles).
//		WithCredentialProvider(provider).
//		Build()
//
// All Engine operations are safe for concurrent use.
package netrunauth
