// Package config loads the gateway configuration from a YAML file, a .env
// file and FIXGATE_ environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the process configuration.
type Config struct {
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	HTTP     HTTP   `mapstructure:"http"`
	FIX      FIX    `mapstructure:"fix"`
	// Sessions declares engine-less sessions. Engine sessions come from the
	// quickfix settings file.
	Sessions []Session `mapstructure:"sessions" validate:"dive"`
}

// HTTP configures the request boundary.
type HTTP struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// FIX configures the quickfix engine.
type FIX struct {
	// SettingsFile is a quickfix settings file. Empty disables the engine.
	SettingsFile string `mapstructure:"settings_file"`
	Store        string `mapstructure:"store" validate:"oneof=memory file sql"`
	// StoreDSN is the sqlite database for the sql store.
	StoreDSN     string `mapstructure:"store_dsn" validate:"required_if=Store sql"`
	ResetOnLogon bool   `mapstructure:"reset_on_logon"`
	// SendTimeout bounds one transport call.
	SendTimeout time.Duration `mapstructure:"send_timeout" validate:"gte=0"`
}

// Session is an engine-less session reached over a plain TCP connection.
type Session struct {
	BeginString  string `mapstructure:"begin_string" validate:"required"`
	SenderCompID string `mapstructure:"sender_comp_id" validate:"required"`
	TargetCompID string `mapstructure:"target_comp_id" validate:"required"`
	Address      string `mapstructure:"address" validate:"required,hostname_port"`
}

const envPrefix = "FIXGATE"

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("fix.settings_file", "")
	v.SetDefault("fix.store", "memory")
	v.SetDefault("fix.store_dsn", "")
	v.SetDefault("fix.reset_on_logon", false)
	v.SetDefault("fix.send_timeout", 5*time.Second)
}

// Load reads the first existing file of paths (none is fine), then .env, then
// the environment, and validates the result.
func Load(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		break
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and that no session is declared twice.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	seen := make(map[Session]bool, len(c.Sessions))
	for _, s := range c.Sessions {
		key := Session{BeginString: s.BeginString, SenderCompID: s.SenderCompID, TargetCompID: s.TargetCompID}
		if seen[key] {
			return fmt.Errorf("invalid config: session %s:%s->%s declared twice", s.BeginString, s.SenderCompID, s.TargetCompID)
		}
		seen[key] = true
	}
	return nil
}
