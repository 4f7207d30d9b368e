package transport

import (
	"encoding/binary"
	"errors"
	"net"
	"net/netip"
	"sync/atomic"

	"github.com/rflandau/voidnet"
	"github.com/rflandau/voidnet/packet"
)

// SentinelLen is the size of the bare session tag a client sends to bind its endpoint.
const SentinelLen = 4

// DatagramFunc receives one raw datagram from a Datagram socket's read goroutine.
// b is only valid for the duration of the call.
type DatagramFunc func(from netip.AddrPort, b []byte)

// A Datagram is a UDP socket that carries length-framed, optionally encrypted, messages.
//
// Client-to-server datagrams are tagged: [session int32][length int32][content].
// Server-to-client datagrams are untagged: [length int32][content].
// A bare [session int32] is the client's endpoint-binding sentinel.
type Datagram struct {
	settings
	conn   *net.UDPConn
	closed atomic.Bool
}

// ListenDatagram binds a UDP socket to addr.
// A zero port selects an ephemeral one.
func ListenDatagram(addr netip.AddrPort, opts ...Option) (*Datagram, error) {
	conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(addr))
	if err != nil {
		return nil, err
	}
	d := &Datagram{settings: defaults(), conn: conn}
	for _, o := range opts {
		o(&d.settings)
	}
	return d, nil
}

// LocalAddr returns the address the socket is bound to.
func (d *Datagram) LocalAddr() netip.AddrPort {
	return d.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Serve reads datagrams and hands each to onRecv until the socket is closed.
// Returns nil after Close, or the read error that stopped it.
func (d *Datagram) Serve(onRecv DatagramFunc) error {
	buf := make([]byte, voidnet.MaxDatagramSize)
	for {
		n, from, err := d.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if d.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			d.log.Warn().Err(err).Msg("datagram read failed")
			return err
		}
		if n == 0 {
			continue
		}
		onRecv(from, buf[:n])
	}
}

// Close closes the socket, ending Serve.
func (d *Datagram) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	return d.conn.Close()
}

//#region sending

// SendTagged writes p's contents to addr as one client-to-server datagram tagged with session.
// Failures are logged and returned; callers are expected to ignore them.
func (d *Datagram) SendTagged(to netip.AddrPort, session voidnet.SessionID, p *packet.Packet) error {
	out, err := d.frame(p.Bytes())
	if err != nil {
		return err
	}
	defer out.Release()
	out.InsertInt32(session)
	return d.write(to, out.Bytes())
}

// Send writes p's contents to addr as one untagged server-to-client datagram.
// Failures are logged and returned; callers are expected to ignore them.
func (d *Datagram) Send(to netip.AddrPort, p *packet.Packet) error {
	out, err := d.frame(p.Bytes())
	if err != nil {
		return err
	}
	defer out.Release()
	return d.write(to, out.Bytes())
}

// SendSentinel writes the bare session tag used to bind a client's endpoint on the server.
func (d *Datagram) SendSentinel(to netip.AddrPort, session voidnet.SessionID) error {
	var b [SentinelLen]byte
	binary.LittleEndian.PutUint32(b[:], uint32(session))
	return d.write(to, b[:])
}

// frame seals content and prepends its length.
func (d *Datagram) frame(content []byte) (*packet.Packet, error) {
	sealed, err := d.cipher.Seal(content)
	if err != nil {
		d.log.Error().Err(err).Msg("failed to seal datagram")
		return nil, err
	}
	out := packet.New()
	out.WriteBytes(sealed)
	out.WriteLength()
	return out, nil
}

func (d *Datagram) write(to netip.AddrPort, b []byte) error {
	if d.closed.Load() {
		return ErrClosed
	}
	if _, err := d.conn.WriteToUDPAddrPort(b, to); err != nil {
		d.log.Debug().Err(err).Str("to", to.String()).Msg("datagram send failed")
		return err
	}
	return nil
}

//#endregion sending

//#region receiving

// SplitTagged parses a client-to-server datagram.
// A bare tag is reported as a sentinel with no frames.
// Each returned frame has already been opened with the socket's cipher and may alias b.
func (d *Datagram) SplitTagged(b []byte) (session voidnet.SessionID, frames [][]byte, sentinel bool, err error) {
	if len(b) < SentinelLen {
		return 0, nil, false, &packet.DecodeError{Type: "session tag", Need: SentinelLen, Have: len(b)}
	}
	session = int32(binary.LittleEndian.Uint32(b))
	if len(b) == SentinelLen {
		return session, nil, true, nil
	}
	frames, err = d.Split(b[SentinelLen:])
	return session, frames, false, err
}

// Split parses an untagged datagram into its frames.
// One datagram currently carries one frame, but any number of back-to-back frames are accepted.
// Each returned frame has already been opened with the socket's cipher and may alias b.
func (d *Datagram) Split(b []byte) ([][]byte, error) {
	var frames [][]byte
	for len(b) > 0 {
		if len(b) < 4 {
			return nil, &packet.DecodeError{Type: "frame length", Need: 4, Have: len(b)}
		}
		n := int32(binary.LittleEndian.Uint32(b))
		if n <= 0 || int(n) > d.maxFrame {
			return nil, ErrBadLength(n, d.maxFrame)
		}
		if int(n) > len(b)-4 {
			return nil, &packet.DecodeError{Type: "frame", Need: int(n), Have: len(b) - 4}
		}
		plain, err := d.cipher.Open(b[4 : 4+n])
		if err != nil {
			return nil, err
		}
		frames = append(frames, plain)
		b = b[4+n:]
	}
	return frames, nil
}

//#endregion receiving
