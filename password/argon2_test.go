package password

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() Params {
	// Minimum legal costs keep the suite fast; production defaults live
	// in the engine config.
	return Params{
		MemoryKB:    8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestHashVerifyRoundTrip(t *testing.T) {
	h, err := NewHasher(testParams())
	require.NoError(t, err)

	encoded, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))

	ok, err := h.Verify("correct horse battery staple", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("correct horse battery staplf", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashUniqueSalts(t *testing.T) {
	h, err := NewHasher(testParams())
	require.NoError(t, err)

	a, err := h.Hash("same secret, new salt")
	require.NoError(t, err)
	b, err := h.Hash("same secret, new salt")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashRejectsShortSecret(t *testing.T) {
	h, err := NewHasher(testParams())
	require.NoError(t, err)

	_, err = h.Hash("short")
	assert.Error(t, err)
}

func TestVerifyCorruptHash(t *testing.T) {
	h, err := NewHasher(testParams())
	require.NoError(t, err)

	cases := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"not phc", "plainly-not-a-hash"},
		{"wrong algorithm", "$bcrypt$v=19$m=8192,t=1,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAA"},
		{"bad version", "$argon2id$v=12$m=8192,t=1,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAA"},
		{"missing costs", "$argon2id$v=19$m=8192,t=1$AAAAAAAAAAAAAAAAAAAAAA$AAAA"},
		{"bad salt base64", "$argon2id$v=19$m=8192,t=1,p=1$!!!$AAAA"},
		{"memory below min", "$argon2id$v=19$m=64,t=1,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAA"},
		{"truncated fields", "$argon2id$v=19$m=8192,t=1,p=1$AAAAAAAAAAAAAAAAAAAAAA"},
		{"unknown cost name", "$argon2id$v=19$m=8192,t=1,x=1$AAAAAAAAAAAAAAAAAAAAAA$AAAA"},
	}
	for _, tc := range cases {
		_, err := h.Verify("whatever secret", tc.encoded)
		assert.ErrorIs(t, err, ErrCorruptHash, tc.name)
	}
}

func TestVerifyMismatchIsNotCorrupt(t *testing.T) {
	h, err := NewHasher(testParams())
	require.NoError(t, err)

	encoded, err := h.Hash("the real secret!")
	require.NoError(t, err)

	ok, err := h.Verify("not the secret!!", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, errors.Is(err, ErrCorruptHash))
}

func TestNeedsRehash(t *testing.T) {
	weak, err := NewHasher(testParams())
	require.NoError(t, err)

	encoded, err := weak.Hash("correct horse battery staple")
	require.NoError(t, err)

	stronger := testParams()
	stronger.MemoryKB *= 2
	sh, err := NewHasher(stronger)
	require.NoError(t, err)

	upgrade, err := sh.NeedsRehash(encoded)
	require.NoError(t, err)
	assert.True(t, upgrade)

	same, err := weak.NeedsRehash(encoded)
	require.NoError(t, err)
	assert.False(t, same)
}

func TestNewHasherParamFloors(t *testing.T) {
	bad := []Params{
		{MemoryKB: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{MemoryKB: 8192, Time: 0, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{MemoryKB: 8192, Time: 1, Parallelism: 0, SaltLength: 16, KeyLength: 32},
		{MemoryKB: 8192, Time: 1, Parallelism: 1, SaltLength: 8, KeyLength: 32},
		{MemoryKB: 8192, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 8},
	}
	for i, p := range bad {
		_, err := NewHasher(p)
		assert.Error(t, err, "case %d", i)
	}
}
