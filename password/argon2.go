package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrCorruptHash is returned when a stored credential hash cannot be
// parsed or carries parameters outside the supported range. It is never
// returned for a well-formed hash that simply does not match.
var ErrCorruptHash = errors.New("corrupt credential hash")

const (
	phcAlgorithm = "argon2id"

	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minSecretBytes        = 10
)

// Params are the argon2id cost parameters. Defaults in the engine config
// target roughly one second per hash on commodity hardware; that is a
// deliberate throughput/security tradeoff.
type Params struct {
	MemoryKB    uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Hasher hashes and verifies secrets using argon2id. Safe for
// concurrent use.
type Hasher struct {
	params Params
}

// NewHasher validates the cost parameters and returns a Hasher.
func NewHasher(p Params) (*Hasher, error) {
	if p.MemoryKB < minMemoryKB {
		return nil, errors.New("password: memory must be >= 8192 KB")
	}
	if p.Time < minTimeCost {
		return nil, errors.New("password: time cost must be >= 1")
	}
	if p.Parallelism < minParallelism {
		return nil, errors.New("password: parallelism must be >= 1")
	}
	if p.SaltLength < minSaltLength {
		return nil, errors.New("password: salt length must be >= 16")
	}
	if p.KeyLength < minKeyLength {
		return nil, errors.New("password: key length must be >= 16")
	}
	return &Hasher{params: p}, nil
}

// Hash derives an argon2id hash of secret under the configured costs and
// returns it PHC-encoded. The secret is used byte-for-byte as provided;
// no Unicode normalization is applied.
func (h *Hasher) Hash(secret string) (string, error) {
	if len(secret) < minSecretBytes {
		return "", fmt.Errorf("password: secret must be at least %d bytes", minSecretBytes)
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(
		[]byte(secret),
		salt,
		h.params.Time,
		h.params.MemoryKB,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcAlgorithm,
		argon2.Version,
		h.params.MemoryKB,
		h.params.Time,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the hash of secret under the parameters embedded in
// encoded and compares in constant time. A wrong secret yields
// (false, nil); a malformed encoded hash yields ErrCorruptHash.
func (h *Hasher) Verify(secret, encoded string) (bool, error) {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(secret),
		parsed.salt,
		parsed.time,
		parsed.memoryKB,
		parsed.parallelism,
		uint32(len(parsed.key)),
	)

	return subtle.ConstantTimeCompare(computed, parsed.key) == 1, nil
}

// NeedsRehash reports whether encoded was produced with weaker costs
// than the hasher is configured for. Callers typically rehash on the
// next successful verification.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	if h.params.MemoryKB > parsed.memoryKB {
		return true, nil
	}
	if h.params.Time > parsed.time {
		return true, nil
	}
	if h.params.Parallelism > parsed.parallelism {
		return true, nil
	}
	if h.params.KeyLength != uint32(len(parsed.key)) {
		return true, nil
	}
	return false, nil
}

type phcHash struct {
	memoryKB    uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parsePHC(encoded string) (*phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, fmt.Errorf("%w: bad field count", ErrCorruptHash)
	}
	if parts[1] != phcAlgorithm {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrCorruptHash, parts[1])
	}

	version, ok := strings.CutPrefix(parts[2], "v=")
	if !ok {
		return nil, fmt.Errorf("%w: missing version", ErrCorruptHash)
	}
	v, err := strconv.Atoi(version)
	if err != nil || v != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported argon2 version", ErrCorruptHash)
	}

	out := &phcHash{}
	if err := parseCosts(parts[3], out); err != nil {
		return nil, err
	}

	if out.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, fmt.Errorf("%w: bad salt encoding", ErrCorruptHash)
	}
	if uint32(len(out.salt)) < minSaltLength {
		return nil, fmt.Errorf("%w: salt too short", ErrCorruptHash)
	}
	if out.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, fmt.Errorf("%w: bad key encoding", ErrCorruptHash)
	}
	if len(out.key) == 0 {
		return nil, fmt.Errorf("%w: empty key", ErrCorruptHash)
	}

	return out, nil
}

func parseCosts(field string, out *phcHash) error {
	pairs := strings.Split(field, ",")
	if len(pairs) != 3 {
		return fmt.Errorf("%w: bad cost field", ErrCorruptHash)
	}

	var haveM, haveT, haveP bool
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("%w: bad cost entry", ErrCorruptHash)
		}
		switch name {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return fmt.Errorf("%w: bad memory cost", ErrCorruptHash)
			}
			out.memoryKB = uint32(v)
			haveM = true
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return fmt.Errorf("%w: bad time cost", ErrCorruptHash)
			}
			out.time = uint32(v)
			haveT = true
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return fmt.Errorf("%w: bad parallelism", ErrCorruptHash)
			}
			out.parallelism = uint8(v)
			haveP = true
		default:
			return fmt.Errorf("%w: unknown cost %q", ErrCorruptHash, name)
		}
	}
	if !haveM || !haveT || !haveP {
		return fmt.Errorf("%w: missing cost parameter", ErrCorruptHash)
	}
	return nil
}
