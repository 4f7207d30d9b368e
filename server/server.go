// Package server implements the authoritative end of a voidnet session.
// A Server can be spun up with New, taught application messages with Register, and started with Start.
//
// Every decoded message is queued on the server's dispatch.Executor; nothing runs a handler until the embedding application drains it.
package server

import (
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"net/netip"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rflandau/voidnet"
	"github.com/rflandau/voidnet/crypt"
	"github.com/rflandau/voidnet/dispatch"
	"github.com/rflandau/voidnet/entity"
	"github.com/rflandau/voidnet/expiring"
	"github.com/rflandau/voidnet/packet"
	"github.com/rflandau/voidnet/protocol"
	"github.com/rflandau/voidnet/registry"
	"github.com/rflandau/voidnet/transport"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxClients     = 16
	DefaultWelcomeTimeout = 10 * time.Second
)

// A Server owns MaxClients slots and the TCP listener and UDP socket they share a port on.
type Server struct {
	log   *zerolog.Logger
	addr  netip.AddrPort
	codec protocol.Codec

	maxClients     int
	password       string
	admission      func(netip.AddrPort) bool
	welcomeTimeout time.Duration
	strictAuth     bool
	cipher         crypt.Cipher
	entities       entity.Source

	handlers *registry.Registry[registry.ServerHandler]
	exec     *dispatch.Executor
	slots    []*slot // index 0 is unused so slot ids index directly

	// connections that have been welcomed but have not authenticated
	pendingWelcomes expiring.Table[*conn, voidnet.SessionID]

	events struct {
		connected    func(voidnet.SessionID)
		disconnected func(voidnet.SessionID)
		message      func(voidnet.SessionID, string)
	}

	net struct {
		mu        sync.Mutex    // held across Start and Stop
		accepting atomic.Bool   // are we currently accepting connections?
		listener  net.Listener  // TCP
		udp       atomic.Pointer[transport.Datagram]
		group     *errgroup.Group // accept loop, datagram loop and admin server
	}

	admin struct {
		addr netip.AddrPort // zero disables the admin API
		reg  *prometheus.Registry
		api  huma.API
		mux  *http.ServeMux
		http *http.Server
		ln   net.Listener
	}
	metrics *metrics
}

// New generates a server that will listen on addr, optionally modified with opts.
// codec fixes the addressing mode and identity the server speaks.
// The returned server is ready for use as soon as it is .Start()'d.
func New(addr netip.AddrPort, codec protocol.Codec, opts ...Option) (*Server, error) {
	if !addr.IsValid() {
		return nil, ErrBadAddr(addr)
	}

	// set defaults
	s := &Server{
		addr:           addr,
		codec:          codec,
		maxClients:     DefaultMaxClients,
		welcomeTimeout: DefaultWelcomeTimeout,
		cipher:         crypt.None{},
	}

	// apply options
	for _, opt := range opts {
		opt(s)
	}

	if s.maxClients < 1 {
		return nil, ErrBadMaxClients
	}
	if s.welcomeTimeout <= 0 {
		s.welcomeTimeout = DefaultWelcomeTimeout
	}
	if s.cipher == nil {
		s.cipher = crypt.None{}
	}

	// if the logger was not established by the options, generate the default logger
	if s.log == nil {
		l := zerolog.New(zerolog.ConsoleWriter{
			Out:         os.Stdout,
			FieldsOrder: []string{"side"},
			TimeFormat:  "15:04:05",
		}).With().
			Str("side", "server").
			Timestamp().
			Caller().
			Logger().Level(zerolog.WarnLevel)
		s.log = &l
	}
	if s.exec == nil {
		s.exec = dispatch.New(s.log)
	}
	if s.admin.reg == nil {
		s.admin.reg = prometheus.NewRegistry()
	}
	s.metrics = newMetrics(s.admin.reg)

	s.slots = make([]*slot, s.maxClients+1)
	for i := 1; i <= s.maxClients; i++ {
		s.slots[i] = &slot{id: voidnet.SessionID(i)}
	}

	// install the built-in handlers
	s.handlers = registry.New[registry.ServerHandler](codec, s.log)
	for _, b := range []struct {
		b protocol.Builtin
		h registry.ServerHandler
	}{
		{protocol.ClientWelcomeReceived, s.handleWelcomeReceived},
		{protocol.ClientMessage, s.handleMessage},
		{protocol.ClientResendEntity, s.handleResendEntity},
	} {
		if err := s.handlers.AddBuiltin(b.b, b.h); err != nil {
			return nil, err
		}
	}

	s.buildAdmin()

	s.log.Debug().Func(s.Zerolog).Msg("server created")

	return s, nil
}

//#region getters

// Executor returns the queue every handler runs on. The embedding application must drain it.
func (s *Server) Executor() *dispatch.Executor { return s.exec }

// MaxClients returns the number of slots.
func (s *Server) MaxClients() int { return s.maxClients }

// Listening reports whether the server is between Start and Stop.
func (s *Server) Listening() bool { return s.net.accepting.Load() }

// Addr returns the address the server is bound to while listening, or the configured address otherwise.
// Differs from the configured address only if it asked for an ephemeral port.
func (s *Server) Addr() netip.AddrPort {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	if s.net.listener == nil {
		return s.addr
	}
	return s.net.listener.Addr().(*net.TCPAddr).AddrPort()
}

// Connected reports whether slot id holds an authenticated client.
func (s *Server) Connected(id voidnet.SessionID) bool {
	if !s.validSlot(id) {
		return false
	}
	c := s.slots[id].current()
	return c != nil && c.connected.Load()
}

// ConnectedIDs returns the ids of every slot holding an authenticated client, in ascending order.
func (s *Server) ConnectedIDs() []voidnet.SessionID {
	var ids []voidnet.SessionID
	for _, sl := range s.slots[1:] {
		if c := sl.current(); c != nil && c.connected.Load() {
			ids = append(ids, sl.id)
		}
	}
	return ids
}

//#endregion getters

//#region registration

// Register installs an application handler for id. See registry.Registry.Register.
// Must be called before Start.
func (s *Server) Register(id protocol.PacketID, expected protocol.Verification, h registry.ServerHandler) error {
	return s.handlers.Register(id, expected, h)
}

// Discover registers each candidate of the server handler shape, logging and skipping the rest.
// Must be called before Start.
func (s *Server) Discover(candidates ...registry.Candidate) int {
	return s.handlers.Discover(candidates...)
}

//#endregion registration

// Start freezes the handler table and begins listening for TCP connections and datagrams on the server's port.
// Ineffectual if already listening.
func (s *Server) Start() error {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	if swapped := s.net.accepting.CompareAndSwap(false, true); !swapped {
		return nil
	}
	s.handlers.Freeze()

	ln, err := net.Listen("tcp", s.addr.String())
	if err != nil {
		s.net.accepting.Store(false)
		return err
	}
	// the datagram socket shares the TCP port, which may have been chosen by the OS
	bound := ln.Addr().(*net.TCPAddr).AddrPort()
	udp, err := transport.ListenDatagram(netip.AddrPortFrom(s.addr.Addr(), bound.Port()),
		transport.WithLogger(s.log), transport.WithCipher(s.cipher))
	if err != nil {
		ln.Close()
		s.net.accepting.Store(false)
		return err
	}
	s.net.listener = ln
	s.net.udp.Store(udp)

	if err := s.startAdmin(); err != nil {
		ln.Close()
		udp.Close()
		s.net.listener = nil
		s.net.udp.Store(nil)
		s.net.accepting.Store(false)
		return err
	}

	s.net.group = &errgroup.Group{}
	s.net.group.Go(func() error { return s.acceptLoop(ln) })
	s.net.group.Go(func() error { return udp.Serve(func(from netip.AddrPort, b []byte) { s.receiveDatagram(udp, from, b) }) })
	if s.admin.http != nil {
		srv, aln := s.admin.http, s.admin.ln
		s.net.group.Go(func() error {
			if err := srv.Serve(aln); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	s.log.Info().Str("local address", bound.String()).Int("max clients", s.maxClients).Msg("accepting connections")
	return nil
}

// Stop closes the listeners, then disconnects every slot with SERVER_SHUTDOWN.
// Disconnect notifications are queued on the executor like any other event.
// Ineffectual if not listening.
func (s *Server) Stop() {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	if !s.net.accepting.CompareAndSwap(true, false) {
		return
	}
	s.log.Info().Msg("initializing graceful shutdown")

	lnErr := s.net.listener.Close()
	udpErr := s.net.udp.Swap(nil).Close()
	s.stopAdmin()
	groupErr := s.net.group.Wait()

	// nothing can claim a slot anymore
	for _, sl := range s.slots[1:] {
		if c := sl.current(); c != nil {
			s.disconnect(c, voidnet.ReasonServerShutdown)
		}
	}
	s.pendingWelcomes.Clear()
	s.net.listener, s.net.group = nil, nil

	s.log.Info().
		AnErr("listener close error", lnErr).
		AnErr("datagram close error", udpErr).
		AnErr("loop error", groupErr).
		Msg("completed graceful shutdown")
}

// Disconnect sends reason to the client in slot id, then closes its connection.
// An empty reason is sent as KICKED.
// Disconnecting a free slot is a no-op.
func (s *Server) Disconnect(id voidnet.SessionID, reason string) error {
	if !s.validSlot(id) {
		return ErrBadSlot(id, s.maxClients)
	}
	if reason == "" {
		reason = voidnet.ReasonKickedByServerApp
	}
	if c := s.slots[id].current(); c != nil {
		s.disconnect(c, reason)
	}
	return nil
}

//#region connection lifecycle

// acceptLoop assigns each inbound connection a slot until the listener is closed.
func (s *Server) acceptLoop(ln net.Listener) error {
	for {
		nc, err := ln.Accept()
		if err != nil {
			if !s.net.accepting.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn().Err(err).Msg("accept failed, returning...")
			return err
		}
		s.admit(nc)
	}
}

// admit gates nc, seats it in the lowest free slot and welcomes it.
// Refused connections are closed without a word.
func (s *Server) admit(nc net.Conn) {
	remote := nc.RemoteAddr().(*net.TCPAddr).AddrPort()
	s.log.Debug().Str("remote", remote.String()).Msg("incoming connection")

	if s.admission != nil && !s.admission(remote) {
		s.log.Info().Str("remote", remote.String()).Msg("connection refused by admission gate")
		s.metrics.refused.WithLabelValues(refusedAdmission).Inc()
		nc.Close()
		return
	}

	c := &conn{peer: remote.Addr()}
	c.stream = transport.NewStream(
		func(frame []byte) { s.receiveFrame(c, frame) },
		func(err error) { s.lost(c, err) },
		transport.WithLogger(s.log), transport.WithCipher(s.cipher))

	var sl *slot
	for _, candidate := range s.slots[1:] {
		if candidate.claim(c) {
			sl = candidate
			break
		}
	}
	if sl == nil {
		s.log.Info().Str("remote", remote.String()).Msg("connection refused: server full")
		s.metrics.refused.WithLabelValues(refusedFull).Inc()
		nc.Close()
		return
	}

	s.pendingWelcomes.Store(c, sl.id, s.welcomeTimeout, func(c *conn, id voidnet.SessionID) {
		s.log.Info().Int32("slot", id).Msg("client did not authenticate in time")
		s.disconnect(c, voidnet.ReasonWelcomeTimeout)
	})
	if err := c.stream.Attach(nc); err != nil {
		s.log.Warn().Err(err).Int32("slot", sl.id).Msg("failed to attach connection")
		s.disconnect(c, "")
		nc.Close()
		return
	}
	s.metrics.accepted.Inc()

	welcome, err := s.codec.NewBuiltin(protocol.ServerWelcome)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to compose welcome")
		s.disconnect(c, "")
		return
	}
	defer welcome.Release()
	welcome.WriteInt32(sl.id)
	if err := c.stream.Send(welcome); err != nil {
		s.disconnect(c, "")
		return
	}
	s.log.Debug().Int32("slot", sl.id).Str("remote", remote.String()).Msg("welcomed connection")
}

// lost is told when a connection's stream closes. Remote hang-ups carry no reason.
func (s *Server) lost(c *conn, err error) {
	if err != nil {
		s.log.Debug().Err(err).Int32("slot", c.slot.id).Msg("connection lost")
	}
	s.disconnect(c, "")
}

// disconnect releases c's slot, tells the client why (if reason is set), and closes the stream.
// Only the first call for a connection has any effect.
// If the client had connected, OnDisconnected is queued.
func (s *Server) disconnect(c *conn, reason string) {
	if !c.slot.release(c) {
		return
	}
	s.pendingWelcomes.Delete(c)

	if reason != "" {
		if p, err := s.codec.NewBuiltin(protocol.ServerDisconnect); err == nil {
			p.WriteString(reason)
			c.stream.Send(p)
			p.Release()
		}
	}
	c.stream.Close()

	label := reason
	if label == "" {
		label = "closed"
	}
	s.metrics.disconnects.WithLabelValues(label).Inc()
	s.log.Info().Int32("slot", c.slot.id).Str("reason", reason).Msg("client disconnected")

	s.exec.Enqueue(func() {
		c.verified = false
		if !c.connected.Swap(false) {
			return
		}
		s.metrics.connected.Dec()
		if s.events.disconnected != nil {
			s.events.disconnected(c.slot.id)
		}
	})
}

//#endregion connection lifecycle

//#region inbound

// receiveFrame queues a stream frame for dispatch. Runs on the connection's read goroutine.
func (s *Server) receiveFrame(c *conn, frame []byte) {
	p := packet.From(frame)
	if !s.exec.Enqueue(func() { s.handle(c, p, "tcp") }) {
		p.Release()
	}
}

// receiveDatagram routes a datagram to its slot and queues each frame it carries. Runs on the datagram goroutine.
func (s *Server) receiveDatagram(udp *transport.Datagram, from netip.AddrPort, b []byte) {
	id, frames, sentinel, err := udp.SplitTagged(b)
	if err != nil {
		s.log.Debug().Err(err).Str("from", from.String()).Msg("dropping malformed datagram")
		s.metrics.dropped.WithLabelValues(droppedMalformed).Inc()
		return
	}
	if !s.validSlot(id) {
		s.metrics.dropped.WithLabelValues(droppedUnrouted).Inc()
		return
	}
	c, bound := s.slots[id].route(from)
	if c == nil {
		s.log.Debug().Int32("slot", id).Str("from", from.String()).Msg("dropping datagram from unbound source")
		s.metrics.dropped.WithLabelValues(droppedUnrouted).Inc()
		return
	}
	if bound {
		s.log.Debug().Int32("slot", id).Str("endpoint", from.String()).Bool("sentinel", sentinel).Msg("bound datagram endpoint")
	}
	for _, f := range frames {
		p := packet.From(f)
		if !s.exec.Enqueue(func() { s.handle(c, p, "udp") }) {
			p.Release()
		}
	}
}

// handle resolves p and runs its handler. Runs on the executor.
func (s *Server) handle(c *conn, p *packet.Packet, channel string) {
	defer p.Release()
	// frames from a connection that has since been released are discarded
	if !c.slot.holds(c) {
		s.metrics.dropped.WithLabelValues(droppedStale).Inc()
		return
	}

	e, err := s.handlers.Resolve(p)
	if err != nil {
		var (
			verr *protocol.VerificationError
			l    = s.log.Warn().Err(err).Int32("slot", c.slot.id).Str("channel", channel)
		)
		switch {
		case errors.Is(err, registry.ErrUnknownIdentifier):
			s.metrics.dropped.WithLabelValues(droppedUnknown).Inc()
		case errors.As(err, &verr):
			l = l.Func(e.ID.Zerolog)
			s.metrics.dropped.WithLabelValues(droppedVerification).Inc()
		default:
			s.metrics.dropped.WithLabelValues(droppedMalformed).Inc()
		}
		l.Msg("dropping message")
		return
	}

	if !c.verified && !e.ID.Equal(protocol.ClientWelcomeReceived.ID) {
		s.metrics.dropped.WithLabelValues(droppedUnverified).Inc()
		if s.strictAuth {
			s.log.Warn().Int32("slot", c.slot.id).Func(e.ID.Zerolog).Msg("message sent before authenticating; disconnecting")
			s.disconnect(c, voidnet.ReasonUnverifiedPacket)
			return
		}
		s.log.Warn().Int32("slot", c.slot.id).Func(e.ID.Zerolog).Msg("message sent before authenticating; discarding")
		return
	}

	s.metrics.dispatched.WithLabelValues(channel).Inc()
	e.Handler(c.slot.id, p)
}

//#endregion inbound

// checkPassword compares in constant time.
func (s *Server) checkPassword(given string) bool {
	return subtle.ConstantTimeCompare([]byte(given), []byte(s.password)) == 1
}

func (s *Server) validSlot(id voidnet.SessionID) bool {
	return id >= 1 && int(id) <= s.maxClients
}

// Zerolog pretty prints the state of the server into the given zerolog event.
// Intended to be given to *zerolog.Event.Func().
func (s *Server) Zerolog(e *zerolog.Event) {
	e.Str("address", s.addr.String()).
		Str("application", s.codec.Identity.ApplicationID).
		Str("version", s.codec.Identity.Version).
		Str("addressing", s.codec.Addressing.String()).
		Str("cipher", s.cipher.Mode().String()).
		Int("max clients", s.maxClients).
		Bool("listening", s.net.accepting.Load())
}
