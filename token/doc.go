// Package token issues and verifies the signed tokens that carry an
// authenticated principal between requests.
//
// Wire format is a standard three-part JWS (header.payload.signature,
// base64url) signed with Ed25519. There is no symmetric mode: a service
// that can verify tokens must not be able to mint them.
//
// A [Manager] signs with the single current key of a [KeySet] and
// verifies against the full trusted set, so key rotation never
// invalidates tokens issued moments before the swap. Revocation state is
// deliberately out of scope here; the engine layers the blacklist lookup
// on top of [Manager.Parse].
package token
