package client

// handlers.go contains the built-in handlers for messages every server may send.

import (
	"net/netip"

	"github.com/rflandau/voidnet/entity"
	"github.com/rflandau/voidnet/packet"
	"github.com/rflandau/voidnet/protocol"
	"github.com/rflandau/voidnet/transport"
)

// handleWelcome adopts the slot id the server assigned, acknowledges it with the password,
// then binds the datagram channel on the stream's local address and announces it with a sentinel.
func (c *Client) handleWelcome(p *packet.Packet) {
	sess := c.current()
	if sess == nil {
		return
	}
	if c.id.Load() != 0 {
		c.log.Debug().Msg("ignoring repeated welcome")
		return
	}
	id, err := p.ReadInt32()
	if err != nil {
		c.log.Warn().Err(err).Msg("malformed welcome")
		return
	}

	ack, err := c.codec.NewBuiltin(protocol.ClientWelcomeReceived)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to compose welcome acknowledgement")
		return
	}
	defer ack.Release()
	ack.WriteInt32(id)
	ack.WriteBool(c.password == "")
	if c.password != "" {
		ack.WriteString(c.password)
	}
	if err := sess.stream.Send(ack); err != nil {
		return
	}
	c.id.Store(id)

	server := sess.stream.RemoteAddr()
	udp, err := transport.ListenDatagram(sess.stream.LocalAddr(), transport.WithLogger(c.log), transport.WithCipher(c.cipher))
	if err != nil {
		// the stream still works; datagram sends fail with ErrUnbound
		c.log.Warn().Err(err).Msg("failed to bind datagram channel")
	} else {
		c.mu.Lock()
		if c.cur != sess {
			c.mu.Unlock()
			udp.Close()
			return
		}
		sess.udp, sess.server = udp, server
		c.mu.Unlock()
		go udp.Serve(func(from netip.AddrPort, b []byte) { c.receiveDatagram(sess, udp, from, b) })
		udp.SendSentinel(server, id)
	}

	c.log.Info().Int32("id", id).Str("server", server.String()).Msg("connected")
	if c.events.connected != nil {
		c.events.connected(id)
	}
}

// handleDisconnect reports the server's reason and tears the session down.
func (c *Client) handleDisconnect(p *packet.Packet) {
	reason, err := p.ReadString()
	if err != nil {
		c.log.Warn().Err(err).Msg("malformed disconnect")
	}
	if sess := c.current(); sess != nil {
		c.teardown(sess, reason)
	}
}

// handleMessage surfaces the text of a SERVER_MESSAGE through OnMessage.
func (c *Client) handleMessage(p *packet.Packet) {
	text, err := p.ReadString()
	if err != nil {
		c.log.Warn().Err(err).Msg("malformed server message")
		return
	}
	if c.events.message != nil {
		c.events.message(text)
	}
}

func (c *Client) handleSpawn(p *packet.Packet) {
	s, err := entity.DecodeSpawn(p)
	if err != nil {
		c.log.Warn().Err(err).Msg("malformed spawn")
		return
	}
	c.log.Debug().Func(s.Zerolog).Msg("spawn")
	c.sink.Spawn(s)
}

func (c *Client) handleTransform(p *packet.Packet) {
	t, err := entity.DecodeTransform(p)
	if err != nil {
		c.log.Warn().Err(err).Msg("malformed transform")
		return
	}
	c.sink.Transform(t)
}

func (c *Client) handleDestroy(p *packet.Packet) {
	id, err := entity.DecodeDestroy(p)
	if err != nil {
		c.log.Warn().Err(err).Msg("malformed destroy")
		return
	}
	c.sink.Destroy(id)
}
