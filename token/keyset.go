package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrUnknownKeyID is returned when a token references a kid that is
	// not in the trusted verify set.
	ErrUnknownKeyID = errors.New("unknown key id")
	// ErrNoSigningKey is returned when the key set has no private key to
	// sign with.
	ErrNoSigningKey = errors.New("no signing key configured")
)

// keySnapshot is the immutable state swapped on rotation. Readers always
// observe a fully-formed snapshot.
type keySnapshot struct {
	signingKID string
	signing    ed25519.PrivateKey
	verify     map[string]ed25519.PublicKey
}

// KeySet holds the Ed25519 key material: exactly one current signing key
// and a small set of trusted verify keys (current plus previous
// generations). Rotation is an atomic snapshot swap; Sign/Verify lookups
// are lock-free.
type KeySet struct {
	snap atomic.Pointer[keySnapshot]
}

// NewKeySet creates a key set with a single current key. priv and pub
// accept raw Ed25519 key bytes or PEM-encoded keys; a nil pub is
// derived from the private key.
func NewKeySet(kid string, priv, pub []byte) (*KeySet, error) {
	ks := &KeySet{}
	ks.snap.Store(&keySnapshot{verify: map[string]ed25519.PublicKey{}})
	if err := ks.Rotate(kid, priv, pub); err != nil {
		return nil, err
	}
	return ks, nil
}

// NewGeneratedKeySet creates a key set with a freshly generated key pair
// under the given kid. Intended for tests and single-process setups;
// production deployments load persisted key material.
func NewGeneratedKeySet(kid string) (*KeySet, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewKeySet(kid, priv, pub)
}

// Rotate installs a new current signing key under kid. All previously
// trusted verify keys remain trusted, so tokens signed just before the
// rotation still validate until they expire or are retired via
// [KeySet.Retire].
func (ks *KeySet) Rotate(kid string, priv, pub []byte) error {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return errors.New("token: empty kid")
	}
	edPriv, err := parseEdPrivateKey(priv)
	if err != nil {
		return err
	}
	var edPub ed25519.PublicKey
	if pub == nil {
		edPub = edPriv.Public().(ed25519.PublicKey)
	} else {
		if edPub, err = parseEdPublicKey(pub); err != nil {
			return err
		}
	}

	old := ks.snap.Load()
	next := &keySnapshot{
		signingKID: kid,
		signing:    edPriv,
		verify:     make(map[string]ed25519.PublicKey, len(old.verify)+1),
	}
	for id, key := range old.verify {
		next.verify[id] = key
	}
	next.verify[kid] = edPub
	ks.snap.Store(next)
	return nil
}

// AddVerifyKey trusts an additional public key for verification without
// changing the signing key. Used when a peer instance rotated first.
func (ks *KeySet) AddVerifyKey(kid string, pub []byte) error {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return errors.New("token: empty kid")
	}
	edPub, err := parseEdPublicKey(pub)
	if err != nil {
		return err
	}

	old := ks.snap.Load()
	next := &keySnapshot{
		signingKID: old.signingKID,
		signing:    old.signing,
		verify:     make(map[string]ed25519.PublicKey, len(old.verify)+1),
	}
	for id, key := range old.verify {
		next.verify[id] = key
	}
	next.verify[kid] = edPub
	ks.snap.Store(next)
	return nil
}

// Retire removes kid from the trusted verify set. Retiring the current
// signing kid is rejected.
func (ks *KeySet) Retire(kid string) error {
	old := ks.snap.Load()
	if kid == old.signingKID {
		return errors.New("token: cannot retire the current signing key")
	}
	if _, ok := old.verify[kid]; !ok {
		return ErrUnknownKeyID
	}

	next := &keySnapshot{
		signingKID: old.signingKID,
		signing:    old.signing,
		verify:     make(map[string]ed25519.PublicKey, len(old.verify)-1),
	}
	for id, key := range old.verify {
		if id != kid {
			next.verify[id] = key
		}
	}
	ks.snap.Store(next)
	return nil
}

// SigningKey returns the current kid and private key.
func (ks *KeySet) SigningKey() (string, ed25519.PrivateKey, error) {
	snap := ks.snap.Load()
	if len(snap.signing) == 0 {
		return "", nil, ErrNoSigningKey
	}
	return snap.signingKID, snap.signing, nil
}

// VerifyKey resolves kid against the trusted set.
func (ks *KeySet) VerifyKey(kid string) (ed25519.PublicKey, error) {
	snap := ks.snap.Load()
	key, ok := snap.verify[kid]
	if !ok {
		return nil, ErrUnknownKeyID
	}
	return key, nil
}

// TrustedKeyIDs lists the kids currently accepted for verification.
func (ks *KeySet) TrustedKeyIDs() []string {
	snap := ks.snap.Load()
	ids := make([]string, 0, len(snap.verify))
	for id := range snap.verify {
		ids = append(ids, id)
	}
	return ids
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, fmt.Errorf("token: invalid ed25519 private key: %w", err)
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("token: invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, fmt.Errorf("token: invalid ed25519 public key: %w", err)
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("token: invalid ed25519 public key type")
	}
	return edKey, nil
}
