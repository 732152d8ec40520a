// Package password implements one-way credential hashing with argon2id.
//
// Hashes are stored in PHC string format ($argon2id$v=...$m=...,t=...,p=...$salt$hash)
// so cost parameters travel with the hash and can be raised without
// invalidating existing credentials. Verification is constant-time with
// respect to the derived key comparison: a wrong secret and an almost-right
// secret take the same time to reject.
//
// A malformed stored hash is reported as [ErrCorruptHash], which callers
// must surface to end users identically to a mismatch. The distinction
// exists for operators (a corrupt hash means data damage, not a bad guess),
// never for clients.
package password
