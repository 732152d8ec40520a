package netrunauth

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig reads a YAML config file into a Config, layered over
// DefaultConfig. Environment variables prefixed NETRUN_AUTH_ override
// file values, with underscores standing in for nesting, so
// NETRUN_AUTH_TOKEN_ACCESSTTL=5m overrides token.accessttl. An empty
// path loads defaults plus environment only.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	setDefaults(v, cfg)

	v.SetEnvPrefix("NETRUN_AUTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can see it even when
// no config file provides the section.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("issuer", cfg.Issuer)
	v.SetDefault("audience", cfg.Audience)

	v.SetDefault("token.accessttl", cfg.Token.AccessTTL)
	v.SetDefault("token.refreshttl", cfg.Token.RefreshTTL)
	v.SetDefault("token.invitettl", cfg.Token.InviteTTL)
	v.SetDefault("token.leeway", cfg.Token.Leeway)
	v.SetDefault("token.maxfutureiat", cfg.Token.MaxFutureIAT)

	v.SetDefault("password.memorykb", cfg.Password.MemoryKB)
	v.SetDefault("password.time", cfg.Password.Time)
	v.SetDefault("password.parallelism", cfg.Password.Parallelism)
	v.SetDefault("password.saltlength", cfg.Password.SaltLength)
	v.SetDefault("password.keylength", cfg.Password.KeyLength)

	v.SetDefault("store.keyprefix", cfg.Store.KeyPrefix)
	v.SetDefault("store.optimeout", cfg.Store.OpTimeout)

	v.SetDefault("login.maxattempts", cfg.Login.MaxAttempts)
	v.SetDefault("login.window", cfg.Login.Window)
	v.SetDefault("login.localrate", cfg.Login.LocalRate)
	v.SetDefault("login.localburst", cfg.Login.LocalBurst)

	v.SetDefault("refresh.maxattempts", cfg.Refresh.MaxAttempts)
	v.SetDefault("refresh.window", cfg.Refresh.Window)

	v.SetDefault("security.failopen", cfg.Security.FailOpen)

	v.SetDefault("audit.buffersize", cfg.Audit.BufferSize)
	v.SetDefault("audit.dropiffull", cfg.Audit.DropIfFull)
}
