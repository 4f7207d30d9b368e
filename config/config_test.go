package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rflandau/voidnet/config"
	"github.com/rflandau/voidnet/crypt"
	. "github.com/rflandau/voidnet/internal/testsupport"
	"github.com/rflandau/voidnet/protocol"
	"github.com/rs/zerolog"
)

func write(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voidnet.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := write(t, `
application_id = "demo"
version = "2.1"
addressing = "short"
max_clients = 4
port = 30000
password = "hunter2"
welcome_timeout = "3s"
strict_auth = true
tick_rate = 60

[encryption]
mode = "aes256"
key = "shared"

[admin]
addr = "127.0.0.1:30001"

[log]
level = "DEBUG"
`)
	got, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := config.Config{
		Identity:       protocol.Identity{ApplicationID: "demo", Version: "2.1"},
		Addressing:     protocol.AddressShort,
		MaxClients:     4,
		Port:           30000,
		Password:       "hunter2",
		WelcomeTimeout: 3 * time.Second,
		StrictAuth:     true,
		TickRate:       60,
		Encryption:     crypt.Config{Mode: crypt.ModeAES256, Key: "shared"},
		AdminAddr:      "127.0.0.1:30001",
		LogLevel:       zerolog.DebugLevel,
	}
	if !cmp.Equal(want, got) {
		t.Fatal(cmp.Diff(want, got))
	}
	if c := got.Codec(); c.Addressing != protocol.AddressShort || c.Identity != want.Identity {
		t.Fatal("codec does not reflect the config", ExpectedActual(want.Identity, c.Identity))
	}
	if iv := got.TickInterval(); iv != time.Second/60 {
		t.Fatal(ExpectedActual(time.Second/60, iv))
	}
}

func TestLoad_Defaults(t *testing.T) {
	got, err := config.Load(write(t, `application_id = "only-this"`))
	if err != nil {
		t.Fatal(err)
	}
	want := config.Default()
	want.Identity.ApplicationID = "only-this"
	if !cmp.Equal(want, got) {
		t.Fatal(cmp.Diff(want, got))
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", `colour = "blue"`},
		{"bad addressing", `addressing = "int"`},
		{"bad duration", `welcome_timeout = "soon"`},
		{"port out of range", `port = 70000`},
		{"zero clients", `max_clients = 0`},
		{"aes without key", "[encryption]\nmode = \"aes256\""},
		{"bad admin addr", "[admin]\naddr = \"localhost\""},
		{"bad log level", "[log]\nlevel = \"loud\""},
		{"malformed", `application_id = `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := config.Load(write(t, tt.body)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("loaded a missing file")
	}
}

func TestValidate_Joins(t *testing.T) {
	cfg := config.Default()
	cfg.Identity = protocol.Identity{}
	cfg.Encryption = crypt.Config{Mode: crypt.ModeAES256}
	err := cfg.Validate()
	if !errors.Is(err, crypt.ErrEmptyKey) {
		t.Fatal(ExpectedActual(crypt.ErrEmptyKey, err))
	}
	if n := len(err.(interface{ Unwrap() []error }).Unwrap()); n != 3 {
		t.Fatal("wrong number of problems reported", ExpectedActual(3, n))
	}
}
