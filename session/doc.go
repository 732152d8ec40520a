// Package session tracks the server-side remainder of otherwise
// stateless tokens: which refresh jti is currently valid for each
// session, and which jtis/sessions have been revoked.
//
// All records carry a TTL equal to the remaining life of the token they
// concern, so the store garbage-collects itself; nothing here is ever
// deleted except on explicit revocation, and revocation itself is just
// a put. Rotation of the valid refresh jti is a store-level
// compare-and-swap: under concurrent refresh calls with the same stale
// token, exactly one rotation wins.
package session
