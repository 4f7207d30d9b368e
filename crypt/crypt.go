// Package crypt provides the symmetric ciphers the transport layer can wrap message content in.
// The channel layer treats a Cipher as a black box: it seals the bytes following the length prefix and opens them on receipt.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// Mode selects the cipher.
type Mode uint8

const (
	ModeNone Mode = iota
	ModeAES256
)

func (m Mode) String() string {
	if m == ModeAES256 {
		return "aes256"
	}
	return "none"
}

// ParseMode returns the mode named by s ("none" or "aes256", case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return ModeNone, nil
	case "aes256", "aes":
		return ModeAES256, nil
	}
	return 0, fmt.Errorf("unknown encryption mode '%s' (expected 'none' or 'aes256')", s)
}

// Config selects a cipher and its shared secret.
type Config struct {
	Mode Mode
	Key  string
}

var (
	ErrEmptyKey   = errors.New("aes256 encryption requires a non-empty key")
	ErrShortInput = errors.New("ciphertext is shorter than its nonce and tag")
)

// A Cipher transforms message content in place of the plaintext.
// Implementations must be safe for concurrent use.
type Cipher interface {
	Seal(plain []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
	Mode() Mode
}

// New returns the cipher described by cfg.
func New(cfg Config) (Cipher, error) {
	switch cfg.Mode {
	case ModeNone:
		return None{}, nil
	case ModeAES256:
		if cfg.Key == "" {
			return nil, ErrEmptyKey
		}
		return newAESGCM(deriveKey(cfg.Key))
	}
	return nil, fmt.Errorf("unknown encryption mode %d", cfg.Mode)
}

// deriveKey returns a 32 byte key.
// A 32 byte secret is used verbatim; anything else is stretched with HKDF-SHA256.
func deriveKey(secret string) []byte {
	if len(secret) == 32 {
		return []byte(secret)
	}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("voidnet-aes256"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		// hkdf can only fail after 255*32 bytes
		panic(err)
	}
	return key
}

// None passes content through untouched.
type None struct{}

func (None) Seal(plain []byte) ([]byte, error)  { return plain, nil }
func (None) Open(sealed []byte) ([]byte, error) { return sealed, nil }
func (None) Mode() Mode                         { return ModeNone }

type aesGCM struct {
	aead cipher.AEAD
}

func newAESGCM(key []byte) (*aesGCM, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &aesGCM{aead: aead}, nil
}

// Seal returns nonce || ciphertext || tag.
func (c *aesGCM) Seal(plain []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	out := make([]byte, ns, ns+len(plain)+c.aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, err
	}
	return c.aead.Seal(out, out[:ns], plain, nil), nil
}

func (c *aesGCM) Open(sealed []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(sealed) < ns+c.aead.Overhead() {
		return nil, ErrShortInput
	}
	return c.aead.Open(nil, sealed[:ns], sealed[ns:], nil)
}

func (c *aesGCM) Mode() Mode { return ModeAES256 }
