package client

import (
	"github.com/rflandau/voidnet"
	"github.com/rflandau/voidnet/crypt"
	"github.com/rflandau/voidnet/dispatch"
	"github.com/rflandau/voidnet/entity"
	"github.com/rs/zerolog"
)

// File options.go provides options that can be passed to the client constructor to configure it.

// Option function to set various options on the client.
// Uses defaults if an option is not set.
type Option func(*Client)

// WithLogger replaces the client's default logger with the given logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithPassword sets the password presented in the welcome acknowledgement.
func WithPassword(pass string) Option {
	return func(c *Client) { c.password = pass }
}

// WithCipher seals every frame on both channels with ci. Must match the server's.
func WithCipher(ci crypt.Cipher) Option {
	return func(c *Client) { c.cipher = ci }
}

// WithExecutor shares e instead of creating a private executor.
func WithExecutor(e *dispatch.Executor) Option {
	return func(c *Client) { c.exec = e }
}

// WithEntitySink delivers spawn, transform and destroy messages to sink.
// Without one, they are tracked in a private entity.Table.
func WithEntitySink(sink entity.Sink) Option {
	return func(c *Client) { c.sink = sink }
}

//#region events

// OnConnected is called on the executor once the welcome has been acknowledged and the datagram channel bound.
func OnConnected(f func(id voidnet.SessionID)) Option {
	return func(c *Client) { c.events.connected = f }
}

// OnDisconnected is called on the executor exactly once per successful Connect.
// reason is the server's reason code, CLIENT_DISCONNECT for a local Disconnect, or empty if the stream was lost.
func OnDisconnected(f func(reason string)) Option {
	return func(c *Client) { c.events.disconnected = f }
}

// OnMessage is called on the executor with the text of each SERVER_MESSAGE.
func OnMessage(f func(text string)) Option {
	return func(c *Client) { c.events.message = f }
}

//#endregion events
