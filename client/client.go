// Package client implements the player end of a voidnet session.
// A Client connects to one server at a time: it answers the server's welcome, binds its datagram channel and then exchanges messages on both channels.
//
// Like the server, the client only queues decoded messages; handlers run when the embedding application drains the client's dispatch.Executor.
package client

import (
	"context"
	"net/netip"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rflandau/voidnet"
	"github.com/rflandau/voidnet/crypt"
	"github.com/rflandau/voidnet/dispatch"
	"github.com/rflandau/voidnet/entity"
	"github.com/rflandau/voidnet/internal/misc"
	"github.com/rflandau/voidnet/packet"
	"github.com/rflandau/voidnet/protocol"
	"github.com/rflandau/voidnet/registry"
	"github.com/rflandau/voidnet/transport"
	"github.com/rs/zerolog"
)

// A Client is one connection to a server.
// It may reconnect after disconnecting.
type Client struct {
	log      *zerolog.Logger
	codec    protocol.Codec
	cipher   crypt.Cipher
	password string
	sink     entity.Sink

	handlers *registry.Registry[registry.ClientHandler]
	exec     *dispatch.Executor

	events struct {
		connected    func(voidnet.SessionID)
		disconnected func(string)
		message      func(string)
	}

	mu  sync.Mutex
	cur *session // nil when disconnected

	id atomic.Int32 // assigned by the server's welcome; 0 until then
}

// a session is everything belonging to one Connect.
type session struct {
	stream *transport.Stream
	udp    *transport.Datagram // set by the welcome; guarded by Client.mu
	server netip.AddrPort      // the server's datagram endpoint; guarded by Client.mu
}

// New generates a disconnected client speaking codec, optionally modified with opts.
func New(codec protocol.Codec, opts ...Option) (*Client, error) {
	c := &Client{codec: codec, cipher: crypt.None{}}

	for _, opt := range opts {
		opt(c)
	}

	if c.cipher == nil {
		c.cipher = crypt.None{}
	}
	if c.sink == nil {
		c.sink = &entity.Table{}
	}
	// if the logger was not established by the options, generate the default logger
	if c.log == nil {
		l := zerolog.New(zerolog.ConsoleWriter{
			Out:         os.Stdout,
			FieldsOrder: []string{"side"},
			TimeFormat:  "15:04:05",
		}).With().
			Str("side", "client").
			Timestamp().
			Caller().
			Logger().Level(zerolog.WarnLevel)
		c.log = &l
	}
	if c.exec == nil {
		c.exec = dispatch.New(c.log)
	}

	c.handlers = registry.New[registry.ClientHandler](codec, c.log)
	for _, b := range []struct {
		b protocol.Builtin
		h registry.ClientHandler
	}{
		{protocol.ServerWelcome, c.handleWelcome},
		{protocol.ServerDisconnect, c.handleDisconnect},
		{protocol.ServerMessage, c.handleMessage},
		{protocol.ServerSpawnEntity, c.handleSpawn},
		{protocol.ServerTransformEntity, c.handleTransform},
		{protocol.ServerDestroyEntity, c.handleDestroy},
	} {
		if err := c.handlers.AddBuiltin(b.b, b.h); err != nil {
			return nil, err
		}
	}

	return c, nil
}

//#region getters

// Executor returns the queue every handler runs on. The embedding application must drain it.
func (c *Client) Executor() *dispatch.Executor { return c.exec }

// ID returns the slot the server assigned, or 0 before the welcome has been handled.
func (c *Client) ID() voidnet.SessionID { return c.id.Load() }

// Connected reports whether the welcome has been handled and the session is still up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur != nil && c.id.Load() != 0
}

//#endregion getters

//#region registration

// Register installs an application handler for id. See registry.Registry.Register.
// Must be called before the first Connect.
func (c *Client) Register(id protocol.PacketID, expected protocol.Verification, h registry.ClientHandler) error {
	return c.handlers.Register(id, expected, h)
}

// Discover registers each candidate of the client handler shape, logging and skipping the rest.
// Must be called before the first Connect.
func (c *Client) Discover(candidates ...registry.Candidate) int {
	return c.handlers.Discover(candidates...)
}

//#endregion registration

// Connect dials the server's stream at addr.
// The handshake completes on the executor: OnConnected fires once the welcome has been answered.
func (c *Client) Connect(ctx context.Context, addr string) error {
	if ctx == nil {
		return voidnet.ErrNilCtx
	}
	c.handlers.Freeze()

	sess := &session{}
	sess.stream = transport.NewStream(
		func(frame []byte) { c.receiveFrame(sess, frame) },
		func(err error) { c.lost(sess, err) },
		transport.WithLogger(c.log), transport.WithCipher(c.cipher))

	c.mu.Lock()
	if c.cur != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.cur = sess
	c.mu.Unlock()

	if err := sess.stream.Connect(ctx, addr); err != nil {
		c.mu.Lock()
		if c.cur == sess {
			c.cur = nil
		}
		c.mu.Unlock()
		return err
	}
	c.log.Debug().Str("server", addr).Msg("stream connected, awaiting welcome")
	return nil
}

// Disconnect closes both channels. OnDisconnected fires with CLIENT_DISCONNECT.
func (c *Client) Disconnect() error {
	sess := c.current()
	if sess == nil {
		return ErrNotConnected
	}
	c.teardown(sess, voidnet.ReasonClientDisconnect)
	return nil
}

func (c *Client) current() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

// lost is told when the stream closes.
// Teardown is queued behind any frames the stream delivered first, so a DISCONNECT from the server is handled (and its reason reported) before the loss.
func (c *Client) lost(sess *session, err error) {
	if err != nil {
		c.log.Debug().Err(err).Msg("stream lost")
	}
	if !c.exec.Enqueue(func() { c.teardown(sess, "") }) {
		c.teardown(sess, "")
	}
}

// teardown closes sess and queues OnDisconnected. Only the first call for a session has any effect.
func (c *Client) teardown(sess *session, reason string) {
	c.mu.Lock()
	if c.cur != sess {
		c.mu.Unlock()
		return
	}
	c.cur = nil
	udp := sess.udp
	c.mu.Unlock()

	sess.stream.Close()
	if udp != nil {
		udp.Close()
	}
	c.id.Store(0)
	c.log.Info().Str("reason", reason).Msg("disconnected")

	c.exec.Enqueue(func() {
		if c.events.disconnected != nil {
			c.events.disconnected(reason)
		}
	})
}

//#region inbound

// receiveFrame queues a stream frame for dispatch. Runs on the stream's read goroutine.
func (c *Client) receiveFrame(sess *session, frame []byte) {
	p := packet.From(frame)
	if !c.exec.Enqueue(func() { c.handle(sess, p, "tcp") }) {
		p.Release()
	}
}

// receiveDatagram queues each frame of a datagram from the server. Runs on the datagram goroutine.
func (c *Client) receiveDatagram(sess *session, udp *transport.Datagram, from netip.AddrPort, b []byte) {
	if !misc.SameHost(from.Addr(), sess.server.Addr()) || from.Port() != sess.server.Port() {
		c.log.Debug().Str("from", from.String()).Msg("dropping datagram from a stranger")
		return
	}
	frames, err := udp.Split(b)
	if err != nil {
		c.log.Debug().Err(err).Msg("dropping malformed datagram")
		return
	}
	for _, f := range frames {
		p := packet.From(f)
		if !c.exec.Enqueue(func() { c.handle(sess, p, "udp") }) {
			p.Release()
		}
	}
}

// handle resolves p and runs its handler. Runs on the executor.
func (c *Client) handle(sess *session, p *packet.Packet, channel string) {
	defer p.Release()
	if c.current() != sess {
		return
	}
	e, err := c.handlers.Resolve(p)
	if err != nil {
		c.log.Warn().Err(err).Str("channel", channel).Msg("dropping message")
		return
	}
	e.Handler(p)
}

//#endregion inbound

//#region sending

// SendTCP writes p (header and body, no length) to the server over the stream.
// p is not modified or released.
func (c *Client) SendTCP(p *packet.Packet) error {
	sess := c.current()
	if sess == nil {
		return ErrNotConnected
	}
	return sess.stream.Send(p)
}

// SendUDP writes p to the server over the datagram channel, tagged with this client's id.
// Delivery is never guaranteed.
func (c *Client) SendUDP(p *packet.Packet) error {
	c.mu.Lock()
	sess := c.cur
	if sess == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	udp, server := sess.udp, sess.server
	c.mu.Unlock()
	if udp == nil {
		return ErrUnbound
	}
	return udp.SendTagged(server, c.id.Load(), p)
}

// SendMessage sends text to the server as a CLIENT_MESSAGE.
func (c *Client) SendMessage(text string) error {
	p, err := c.codec.NewBuiltin(protocol.ClientMessage)
	if err != nil {
		return err
	}
	defer p.Release()
	p.WriteString(text)
	return c.SendTCP(p)
}

// RequestEntity asks the server to spawn entity id again, typically after a transform arrived for an unknown entity.
func (c *Client) RequestEntity(id int32) error {
	p, err := c.codec.NewBuiltin(protocol.ClientResendEntity)
	if err != nil {
		return err
	}
	defer p.Release()
	p.WriteInt32(id)
	return c.SendTCP(p)
}

//#endregion sending

// Zerolog pretty prints the state of the client into the given zerolog event.
// Intended to be given to *zerolog.Event.Func().
func (c *Client) Zerolog(e *zerolog.Event) {
	e.Int32("id", c.id.Load()).
		Str("application", c.codec.Identity.ApplicationID).
		Str("version", c.codec.Identity.Version).
		Str("addressing", c.codec.Addressing.String())
	if sess := c.current(); sess != nil {
		e.Str("server", sess.stream.RemoteAddr().String())
	}
}
