package netrunauth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestBuildRequiresSigningKey(t *testing.T) {
	_, err := New().
		WithConfig(testConfig()).
		WithRedis(testRedis(t)).
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signing key")
}

func TestBuildRequiresStore(t *testing.T) {
	_, err := New().
		WithConfig(testConfig()).
		WithGeneratedSigningKey("k1").
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store")
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Issuer = ""
	_, err := New().
		WithConfig(cfg).
		WithGeneratedSigningKey("k1").
		WithRedis(testRedis(t)).
		Build()
	assert.Error(t, err)
}

func TestBuildReportsBadKeyMaterial(t *testing.T) {
	_, err := New().
		WithConfig(testConfig()).
		WithSigningKey("k1", []byte("too short to be a key")).
		WithRedis(testRedis(t)).
		Build()
	assert.Error(t, err)
}

func TestVerifyKeyRequiresSigningKeyFirst(t *testing.T) {
	_, err := New().
		WithConfig(testConfig()).
		WithVerifyKey("old", nil).
		WithGeneratedSigningKey("k1").
		WithRedis(testRedis(t)).
		Build()
	assert.Error(t, err)
}

func TestKeyRotationKeepsOldTokensValid(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	pair, err := h.eng.IssuePair(ctx, Principal{ID: "u1"})
	require.NoError(t, err)

	// Rotate to a fresh key. Tokens signed before the rotation remain
	// verifiable through the retained verify key.
	_, rotated, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	require.NoError(t, h.eng.Keys().Rotate("k2", rotated, nil))

	_, err = h.eng.Validate(ctx, pair.AccessToken)
	require.NoError(t, err)

	next, err := h.eng.IssuePair(ctx, Principal{ID: "u1"})
	require.NoError(t, err)
	_, err = h.eng.Validate(ctx, next.AccessToken)
	require.NoError(t, err)

	// Retiring the old key invalidates what it signed.
	require.NoError(t, h.eng.Keys().Retire("test-key"))
	_, err = h.eng.Validate(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = h.eng.Validate(ctx, next.AccessToken)
	require.NoError(t, err)
}

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().validate())
}

func TestBuildWithDefaults(t *testing.T) {
	eng, err := New().
		WithGeneratedSigningKey("k1").
		WithRedis(testRedis(t)).
		WithLogger(zerolog.Nop()).
		Build()
	require.NoError(t, err)
	t.Cleanup(eng.Close)

	// Default argon2 parameters are production-weight, so only issue
	// and validate here.
	pair, err := eng.IssuePair(context.Background(), Principal{ID: "u1"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), pair.AccessExpiresAt, 5*time.Second)
}
