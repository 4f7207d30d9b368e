// Package config loads voidnet server and client settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rflandau/voidnet"
	"github.com/rflandau/voidnet/crypt"
	"github.com/rflandau/voidnet/protocol"
	"github.com/rs/zerolog"
)

// Config is everything a voidnet process needs besides its handlers.
type Config struct {
	Identity       protocol.Identity
	Addressing     protocol.Addressing
	MaxClients     int
	Port           uint16
	Password       string
	WelcomeTimeout time.Duration
	StrictAuth     bool
	TickRate       int // executor drains per second
	Encryption     crypt.Config
	AdminAddr      string // empty disables the admin API
	LogLevel       zerolog.Level
}

// Default returns the settings used for anything a file does not define.
func Default() Config {
	return Config{
		Identity:       protocol.Identity{ApplicationID: "voidnet", Version: "1.0.0"},
		Addressing:     protocol.AddressString,
		MaxClients:     16,
		Port:           voidnet.DefaultPort,
		WelcomeTimeout: 10 * time.Second,
		TickRate:       32,
		Encryption:     crypt.Config{Mode: crypt.ModeNone},
		LogLevel:       zerolog.InfoLevel,
	}
}

type fileConfig struct {
	ApplicationID  string `toml:"application_id"`
	Version        string `toml:"version"`
	Addressing     string `toml:"addressing"`
	MaxClients     int    `toml:"max_clients"`
	Port           int    `toml:"port"`
	Password       string `toml:"password"`
	WelcomeTimeout string `toml:"welcome_timeout"`
	StrictAuth     bool   `toml:"strict_auth"`
	TickRate       int    `toml:"tick_rate"`
	Encryption     struct {
		Mode string `toml:"mode"`
		Key  string `toml:"key"`
	} `toml:"encryption"`
	Admin struct {
		Addr string `toml:"addr"`
	} `toml:"admin"`
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("load config: unknown keys %s", strings.Join(keys, ", "))
	}

	if meta.IsDefined("application_id") {
		cfg.Identity.ApplicationID = strings.TrimSpace(raw.ApplicationID)
	}
	if meta.IsDefined("version") {
		cfg.Identity.Version = strings.TrimSpace(raw.Version)
	}
	if meta.IsDefined("addressing") {
		if cfg.Addressing, err = protocol.ParseAddressing(raw.Addressing); err != nil {
			return Config{}, fmt.Errorf("parse addressing: %w", err)
		}
	}
	if meta.IsDefined("max_clients") {
		cfg.MaxClients = raw.MaxClients
	}
	if meta.IsDefined("port") {
		if raw.Port < 0 || raw.Port > 65535 {
			return Config{}, fmt.Errorf("port %d is out of range", raw.Port)
		}
		cfg.Port = uint16(raw.Port)
	}
	if meta.IsDefined("password") {
		cfg.Password = raw.Password
	}
	if meta.IsDefined("welcome_timeout") {
		if cfg.WelcomeTimeout, err = time.ParseDuration(strings.TrimSpace(raw.WelcomeTimeout)); err != nil {
			return Config{}, fmt.Errorf("parse welcome_timeout: %w", err)
		}
	}
	if meta.IsDefined("strict_auth") {
		cfg.StrictAuth = raw.StrictAuth
	}
	if meta.IsDefined("tick_rate") {
		cfg.TickRate = raw.TickRate
	}
	if meta.IsDefined("encryption", "mode") {
		if cfg.Encryption.Mode, err = crypt.ParseMode(raw.Encryption.Mode); err != nil {
			return Config{}, fmt.Errorf("parse encryption.mode: %w", err)
		}
	}
	if meta.IsDefined("encryption", "key") {
		cfg.Encryption.Key = raw.Encryption.Key
	}
	if meta.IsDefined("admin", "addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.Admin.Addr)
	}
	if meta.IsDefined("log", "level") {
		if cfg.LogLevel, err = zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw.Log.Level))); err != nil {
			return Config{}, fmt.Errorf("parse log.level: %w", err)
		}
	}

	return cfg, cfg.Validate()
}

// Validate returns every problem with cfg, joined.
func (cfg Config) Validate() error {
	var errs []error
	if cfg.Identity.ApplicationID == "" {
		errs = append(errs, errors.New("application_id must not be empty"))
	}
	if cfg.Identity.Version == "" {
		errs = append(errs, errors.New("version must not be empty"))
	}
	if cfg.MaxClients < 1 || cfg.MaxClients > 1<<15 {
		errs = append(errs, fmt.Errorf("max_clients must be between 1 and %d", 1<<15))
	}
	if cfg.WelcomeTimeout <= 0 {
		errs = append(errs, errors.New("welcome_timeout must be positive"))
	}
	if cfg.TickRate < 1 {
		errs = append(errs, errors.New("tick_rate must be at least 1"))
	}
	if cfg.Encryption.Mode == crypt.ModeAES256 && cfg.Encryption.Key == "" {
		errs = append(errs, crypt.ErrEmptyKey)
	}
	if cfg.AdminAddr != "" {
		if _, err := netip.ParseAddrPort(cfg.AdminAddr); err != nil {
			errs = append(errs, fmt.Errorf("admin.addr: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Codec returns the header codec described by cfg.
func (cfg Config) Codec() protocol.Codec {
	return protocol.Codec{Addressing: cfg.Addressing, Identity: cfg.Identity}
}

// TickInterval returns the time between executor drains.
func (cfg Config) TickInterval() time.Duration {
	if cfg.TickRate < 1 {
		return time.Second
	}
	return time.Second / time.Duration(cfg.TickRate)
}
