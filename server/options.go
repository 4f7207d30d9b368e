package server

import (
	"net/netip"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rflandau/voidnet"
	"github.com/rflandau/voidnet/crypt"
	"github.com/rflandau/voidnet/dispatch"
	"github.com/rflandau/voidnet/entity"
	"github.com/rs/zerolog"
)

// File options.go provides options that can be passed to the server constructor to configure it.

// Option function to set various options on the server.
// Uses defaults if an option is not set.
type Option func(*Server)

// WithLogger replaces the server's default logger with the given logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithMaxClients overwrites DefaultMaxClients.
func WithMaxClients(n int) Option {
	return func(s *Server) { s.maxClients = n }
}

// WithPassword requires clients to present pass in their welcome acknowledgement.
func WithPassword(pass string) Option {
	return func(s *Server) { s.password = pass }
}

// WithAdmission installs a gate consulted for every inbound connection before a slot is assigned.
// Connections it refuses are closed without any protocol message.
func WithAdmission(allow func(remote netip.AddrPort) bool) Option {
	return func(s *Server) { s.admission = allow }
}

// WithWelcomeTimeout overwrites DefaultWelcomeTimeout.
func WithWelcomeTimeout(d time.Duration) Option {
	return func(s *Server) { s.welcomeTimeout = d }
}

// WithStrictAuth disconnects (with UNVERIFIED_PACKET) a slot that sends anything but its welcome acknowledgement before authenticating.
// Otherwise such packets are only logged and dropped.
func WithStrictAuth(strict bool) Option {
	return func(s *Server) { s.strictAuth = strict }
}

// WithCipher seals every frame on both channels with c.
func WithCipher(c crypt.Cipher) Option {
	return func(s *Server) { s.cipher = c }
}

// WithExecutor shares e instead of creating a private executor.
func WithExecutor(e *dispatch.Executor) Option {
	return func(s *Server) { s.exec = e }
}

// WithEntitySource answers resend requests from src.
// Without one, resend requests are logged and ignored.
func WithEntitySource(src entity.Source) Option {
	return func(s *Server) { s.entities = src }
}

// WithAdminAddr serves the status API and prometheus metrics on addr while the server is listening.
func WithAdminAddr(addr netip.AddrPort) Option {
	return func(s *Server) { s.admin.addr = addr }
}

// WithMetricsRegistry registers the server's collectors with reg instead of a private registry.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.admin.reg = reg }
}

//#region events

// OnConnected is called on the executor once a client has authenticated.
func OnConnected(f func(id voidnet.SessionID)) Option {
	return func(s *Server) { s.events.connected = f }
}

// OnDisconnected is called on the executor when a client that had connected leaves, whatever the cause.
func OnDisconnected(f func(id voidnet.SessionID)) Option {
	return func(s *Server) { s.events.disconnected = f }
}

// OnMessage is called on the executor with the text of each CLIENT_MESSAGE.
func OnMessage(f func(id voidnet.SessionID, text string)) Option {
	return func(s *Server) { s.events.message = f }
}

//#endregion events
