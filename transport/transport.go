/*
Package transport implements the two channels every voidnet peer holds: a reliable, length-framed TCP Stream and an unreliable UDP Datagram socket.

Neither channel knows about identifiers, verification or handlers.
A Stream hands each reassembled, decrypted frame to its owner; a Datagram hands each received datagram to its owner.
Sessions (see packages server and client) decide what the frames mean.
*/
package transport

import (
	"errors"
	"fmt"

	"github.com/rflandau/voidnet/crypt"
	"github.com/rs/zerolog"
)

// DefaultMaxFrame is the largest frame a Stream accepts before declaring the stream desynchronized.
const DefaultMaxFrame = 1 << 20

var (
	ErrDesync        = errors.New("stream desynchronized")
	ErrNotConnected  = errors.New("stream is not connected")
	ErrAlreadyActive = errors.New("stream is already connecting or connected")
	ErrClosed        = errors.New("socket is closed")
)

// ErrBadLength returns a desync error describing a declared frame length outside (0, max].
func ErrBadLength(declared int32, max int) error {
	return fmt.Errorf("%w: declared frame length %d is outside (0, %d]", ErrDesync, declared, max)
}

type settings struct {
	log      *zerolog.Logger
	cipher   crypt.Cipher
	maxFrame int
}

func defaults() settings {
	nop := zerolog.Nop()
	return settings{log: &nop, cipher: crypt.None{}, maxFrame: DefaultMaxFrame}
}

// An Option configures a Stream or a Datagram socket.
type Option func(*settings)

// WithLogger sets the logger a channel reports through.
func WithLogger(l *zerolog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// WithCipher wraps the content of every frame (everything after the length prefix) in c.
func WithCipher(c crypt.Cipher) Option {
	return func(s *settings) {
		if c != nil {
			s.cipher = c
		}
	}
}

// WithMaxFrame overrides DefaultMaxFrame.
func WithMaxFrame(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxFrame = n
		}
	}
}
