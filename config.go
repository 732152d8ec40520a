package netrunauth

import (
	"fmt"
	"time"

	"github.com/Netrun-Systems/netrun-auth/password"
)

// Config carries every tunable of the Engine. Start from
// DefaultConfig and override what you need; Build rejects values
// outside their documented bounds.
type Config struct {
	// Issuer is stamped into the iss claim and enforced on parse.
	Issuer string

	// Audience, when non-empty, is stamped into aud and enforced on
	// parse.
	Audience string

	Token    TokenConfig
	Password PasswordConfig
	Store    StoreConfig
	Login    LoginConfig
	Refresh  RefreshConfig
	Security SecurityConfig
	Audit    AuditConfig
}

// TokenConfig bounds token lifetimes and clock tolerance.
type TokenConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	InviteTTL  time.Duration

	// Leeway is the clock-skew tolerance applied to exp and iat.
	// Capped at two minutes.
	Leeway time.Duration

	// MaxFutureIAT rejects tokens issued further in the future than
	// this, beyond leeway. Zero disables the check.
	MaxFutureIAT time.Duration
}

// PasswordConfig selects the argon2id cost parameters for hashing and
// verification.
type PasswordConfig struct {
	MemoryKB    uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (p PasswordConfig) params() password.Params {
	return password.Params{
		MemoryKB:    p.MemoryKB,
		Time:        p.Time,
		Parallelism: p.Parallelism,
		SaltLength:  p.SaltLength,
		KeyLength:   p.KeyLength,
	}
}

// StoreConfig controls key layout and timeouts for the backing store.
type StoreConfig struct {
	// KeyPrefix namespaces every key the engine writes.
	KeyPrefix string

	// OpTimeout bounds each individual store round trip.
	OpTimeout time.Duration
}

// LoginConfig throttles credential verification per identifier.
type LoginConfig struct {
	MaxAttempts int64
	Window      time.Duration

	// LocalRate and LocalBurst bound login attempts per identifier in
	// process, ahead of the store-backed window, so a hot loop against
	// one identifier does not translate into store traffic. Zero
	// disables the local stage.
	LocalRate  float64
	LocalBurst int
}

// RefreshConfig throttles rotation attempts per session.
type RefreshConfig struct {
	MaxAttempts int64
	Window      time.Duration
}

// SecurityConfig selects behavior under partial failure.
type SecurityConfig struct {
	// FailOpen accepts tokens without a revocation check when the
	// store is unreachable. The default is to fail closed and reject.
	FailOpen bool
}

// AuditConfig sizes the asynchronous audit pipeline.
type AuditConfig struct {
	BufferSize int

	// DropIfFull discards events instead of blocking the caller when
	// the buffer is full. Dropped events are counted.
	DropIfFull bool
}

// DefaultConfig returns the production defaults: 15 minute access
// tokens, 30 day refresh tokens, 30 seconds of clock leeway, argon2id
// at 256 MiB, and 5 login attempts per minute per identifier.
func DefaultConfig() Config {
	return Config{
		Issuer: "netrun-auth",
		Token: TokenConfig{
			AccessTTL:    15 * time.Minute,
			RefreshTTL:   30 * 24 * time.Hour,
			InviteTTL:    time.Hour,
			Leeway:       30 * time.Second,
			MaxFutureIAT: 5 * time.Minute,
		},
		Password: PasswordConfig{
			MemoryKB:    256 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Store: StoreConfig{
			KeyPrefix: "na",
			OpTimeout: 2 * time.Second,
		},
		Login: LoginConfig{
			MaxAttempts: 5,
			Window:      time.Minute,
			LocalRate:   50,
			LocalBurst:  100,
		},
		Refresh: RefreshConfig{
			MaxAttempts: 30,
			Window:      time.Minute,
		},
		Audit: AuditConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

func (c Config) validate() error {
	if c.Issuer == "" {
		return fmt.Errorf("config: issuer required")
	}
	if c.Password.MemoryKB < 8*1024 {
		return fmt.Errorf("config: password memory below 8 MiB")
	}
	if c.Password.Time == 0 || c.Password.Parallelism == 0 {
		return fmt.Errorf("config: password time and parallelism must be positive")
	}
	if c.Store.KeyPrefix == "" {
		return fmt.Errorf("config: store key prefix required")
	}
	if c.Login.MaxAttempts <= 0 || c.Login.Window <= 0 {
		return fmt.Errorf("config: login limiter must have positive attempts and window")
	}
	if c.Refresh.MaxAttempts <= 0 || c.Refresh.Window <= 0 {
		return fmt.Errorf("config: refresh limiter must have positive attempts and window")
	}
	if c.Audit.BufferSize < 0 {
		return fmt.Errorf("config: audit buffer size must not be negative")
	}
	return nil
}
