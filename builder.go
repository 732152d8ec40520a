package netrunauth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Netrun-Systems/netrun-auth/internal/audit"
	"github.com/Netrun-Systems/netrun-auth/kvstore"
	"github.com/Netrun-Systems/netrun-auth/password"
	"github.com/Netrun-Systems/netrun-auth/rate"
	"github.com/Netrun-Systems/netrun-auth/rbac"
	"github.com/Netrun-Systems/netrun-auth/session"
	"github.com/Netrun-Systems/netrun-auth/token"
)

// Builder assembles an Engine. Options may be chained in any order;
// Build validates the combination.
type Builder struct {
	cfg    Config
	cfgSet bool

	redisClient redis.UniversalClient
	store       kvstore.Store

	keys    *token.KeySet
	keyErrs []error

	roles []rbac.Role
	creds CredentialProvider
	sink  AuditSink

	logger    zerolog.Logger
	loggerSet bool

	clock func() time.Time
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{}
}

// WithConfig replaces the engine configuration. Without it, Build uses
// DefaultConfig.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	b.cfgSet = true
	return b
}

// WithRedis backs the engine's store with the given Redis client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redisClient = client
	return b
}

// WithStore supplies a custom store implementation. Takes precedence
// over WithRedis.
func (b *Builder) WithStore(store kvstore.Store) *Builder {
	b.store = store
	return b
}

// WithSigningKey installs an Ed25519 signing key, raw or PEM-encoded.
// The public half is derived from the private key.
func (b *Builder) WithSigningKey(kid string, private []byte) *Builder {
	ks, err := token.NewKeySet(kid, private, nil)
	if err != nil {
		b.keyErrs = append(b.keyErrs, fmt.Errorf("signing key %q: %w", kid, err))
		return b
	}
	b.mergeKeys(ks)
	return b
}

// WithGeneratedSigningKey generates a fresh Ed25519 key pair under the
// given kid. Intended for tests and ephemeral deployments; tokens do
// not survive a restart.
func (b *Builder) WithGeneratedSigningKey(kid string) *Builder {
	ks, err := token.NewGeneratedKeySet(kid)
	if err != nil {
		b.keyErrs = append(b.keyErrs, fmt.Errorf("generate key %q: %w", kid, err))
		return b
	}
	b.mergeKeys(ks)
	return b
}

// WithVerifyKey trusts an additional public key for verification only,
// typically a previous signing key during rotation.
func (b *Builder) WithVerifyKey(kid string, public []byte) *Builder {
	if b.keys == nil {
		b.keyErrs = append(b.keyErrs, fmt.Errorf("verify key %q: set a signing key first", kid))
		return b
	}
	if err := b.keys.AddVerifyKey(kid, public); err != nil {
		b.keyErrs = append(b.keyErrs, fmt.Errorf("verify key %q: %w", kid, err))
	}
	return b
}

// WithKeySet supplies a pre-built key set, replacing any keys added
// through the other key options.
func (b *Builder) WithKeySet(ks *token.KeySet) *Builder {
	b.keys = ks
	return b
}

func (b *Builder) mergeKeys(ks *token.KeySet) {
	if b.keys == nil {
		b.keys = ks
		return
	}
	kid, priv, err := ks.SigningKey()
	if err != nil {
		b.keyErrs = append(b.keyErrs, err)
		return
	}
	if err := b.keys.Rotate(kid, priv, nil); err != nil {
		b.keyErrs = append(b.keyErrs, fmt.Errorf("signing key %q: %w", kid, err))
	}
}

// WithRoles installs the role table used for permission resolution.
func (b *Builder) WithRoles(roles []rbac.Role) *Builder {
	b.roles = roles
	return b
}

// WithCredentialProvider wires the user store consulted by Login.
func (b *Builder) WithCredentialProvider(p CredentialProvider) *Builder {
	b.creds = p
	return b
}

// WithAuditSink enables asynchronous audit delivery to the given sink.
func (b *Builder) WithAuditSink(s AuditSink) *Builder {
	b.sink = s
	return b
}

// WithLogger replaces the engine logger. The default writes to stderr.
func (b *Builder) WithLogger(l zerolog.Logger) *Builder {
	b.logger = l
	b.loggerSet = true
	return b
}

// WithClock overrides the time source for token lifetimes and
// revocation math. Tests use this for deterministic expiry.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the accumulated options and constructs the Engine.
func (b *Builder) Build() (*Engine, error) {
	if len(b.keyErrs) > 0 {
		return nil, errors.Join(b.keyErrs...)
	}

	cfg := b.cfg
	if !b.cfgSet {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if b.keys == nil {
		return nil, errors.New("builder: a signing key is required")
	}

	store := b.store
	if store == nil {
		if b.redisClient == nil {
			return nil, errors.New("builder: a store is required, use WithRedis or WithStore")
		}
		store = kvstore.NewRedisStore(b.redisClient, cfg.Store.OpTimeout)
	}

	logger := b.logger
	if !b.loggerSet {
		logger = zerolog.New(os.Stderr).With().Timestamp().Str("component", "netrun-auth").Logger()
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	tokens, err := token.NewManager(token.Config{
		Issuer:       cfg.Issuer,
		Audience:     cfg.Audience,
		AccessTTL:    cfg.Token.AccessTTL,
		RefreshTTL:   cfg.Token.RefreshTTL,
		InviteTTL:    cfg.Token.InviteTTL,
		Leeway:       cfg.Token.Leeway,
		MaxFutureIAT: cfg.Token.MaxFutureIAT,
		Now:          clock,
	}, b.keys)
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(cfg.Password.params())
	if err != nil {
		return nil, err
	}

	// One real hash so unknown-identifier logins burn the same argon2
	// work as a genuine mismatch.
	dummyHash, err := hasher.Hash("netrun-auth-timing-baseline")
	if err != nil {
		return nil, err
	}

	roleEngine, err := rbac.New(b.roles, logger)
	if err != nil {
		return nil, err
	}

	dispatcher := audit.NewDispatcher(audit.Config{
		Enabled:    b.sink != nil,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, wrapSink(b.sink))

	var local *rate.LocalLimiter
	if cfg.Login.LocalRate > 0 && cfg.Login.LocalBurst > 0 {
		local = rate.NewLocalLimiter(cfg.Login.LocalRate, cfg.Login.LocalBurst)
	}

	eng := &Engine{
		cfg:       cfg,
		keys:      b.keys,
		tokens:    tokens,
		hasher:    hasher,
		dummyHash: dummyHash,
		sessions:  session.NewStore(store, cfg.Store.KeyPrefix),
		limiter:   rate.New(store, cfg.Store.KeyPrefix+":rl"),
		local:     local,
		roles:     roleEngine,
		creds:     b.creds,
		audit:     dispatcher,
		metrics:   &metrics{},
		log:       logger,
		clock:     clock,
	}
	return eng, nil
}

func wrapSink(s AuditSink) audit.Sink {
	if s == nil {
		return nil
	}
	return sinkAdapter{sink: s}
}
