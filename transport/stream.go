package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/rflandau/voidnet"
	"github.com/rflandau/voidnet/packet"
)

// State is the lifecycle position of a Stream.
type State uint32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	}
	return "UNKNOWN"
}

// FrameFunc receives one decrypted frame from a Stream's read goroutine.
// frame is only valid for the duration of the call.
type FrameFunc func(frame []byte)

// CloseFunc is told, exactly once, that a Stream has closed.
// err is nil when the stream was closed locally, io.EOF when the peer hung up, or the read or desync error otherwise.
type CloseFunc func(err error)

// A Stream is one reliable, length-framed connection.
// Sends are safe from any goroutine. Frames and the close notification arrive on the stream's own read goroutine.
type Stream struct {
	settings
	onFrame FrameFunc
	onClose CloseFunc

	state atomic.Uint32

	connMu sync.RWMutex
	conn   net.Conn
	closed bool // set under connMu by shutdown

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// NewStream returns a disconnected stream that will deliver frames to onFrame and its closure to onClose.
// Either callback may be nil.
func NewStream(onFrame FrameFunc, onClose CloseFunc, opts ...Option) *Stream {
	s := &Stream{settings: defaults(), onFrame: onFrame, onClose: onClose, done: make(chan struct{})}
	for _, o := range opts {
		o(&s.settings)
	}
	return s
}

// State returns the stream's current state.
func (s *Stream) State() State { return State(s.state.Load()) }

// Done is closed once the stream has shut down.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Connect dials addr and, on success, arms the read loop.
// A stream can only be connected once.
func (s *Stream) Connect(ctx context.Context, addr string) error {
	if ctx == nil {
		return voidnet.ErrNilCtx
	}
	if !s.state.CompareAndSwap(uint32(Disconnected), uint32(Connecting)) {
		return ErrAlreadyActive
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		s.state.Store(uint32(Disconnected))
		return err
	}
	return s.arm(conn)
}

// Attach adopts an already established connection (typically from a listener's Accept) and arms the read loop.
func (s *Stream) Attach(conn net.Conn) error {
	if !s.state.CompareAndSwap(uint32(Disconnected), uint32(Connecting)) {
		return ErrAlreadyActive
	}
	return s.arm(conn)
}

func (s *Stream) arm(conn net.Conn) error {
	s.connMu.Lock()
	if s.closed {
		s.connMu.Unlock()
		conn.Close()
		return ErrClosed
	}
	s.conn = conn
	s.state.Store(uint32(Connected))
	s.connMu.Unlock()
	go s.readLoop(conn)
	return nil
}

// LocalAddr returns the local end of the connection, or the zero value if the stream never connected.
func (s *Stream) LocalAddr() netip.AddrPort { return s.addr(true) }

// RemoteAddr returns the peer's end of the connection, or the zero value if the stream never connected.
func (s *Stream) RemoteAddr() netip.AddrPort { return s.addr(false) }

func (s *Stream) addr(local bool) netip.AddrPort {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	if s.conn == nil {
		return netip.AddrPort{}
	}
	var a net.Addr
	if local {
		a = s.conn.LocalAddr()
	} else {
		a = s.conn.RemoteAddr()
	}
	if tcp, ok := a.(*net.TCPAddr); ok {
		return tcp.AddrPort()
	}
	ap, _ := netip.ParseAddrPort(a.String())
	return ap
}

// readLoop fills a fixed buffer from conn and feeds the reassembler until the connection fails.
func (s *Stream) readLoop(conn net.Conn) {
	var (
		buf   = make([]byte, voidnet.DataBufferSize)
		reasm = NewReassembler(s.maxFrame)
	)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if ferr := reasm.Feed(buf[:n], s.deliver); ferr != nil {
				s.log.Warn().Err(ferr).Str("remote", conn.RemoteAddr().String()).Msg("dropping stream")
				s.shutdown(ferr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("stream read failed")
			}
			s.shutdown(err)
			return
		}
	}
}

// deliver opens one frame and hands it to the owner.
// A frame that fails to decrypt is dropped; framing is still intact so the stream survives.
func (s *Stream) deliver(frame []byte) {
	plain, err := s.cipher.Open(frame)
	if err != nil {
		s.log.Warn().Err(err).Int("length", len(frame)).Msg("dropping frame that failed to decrypt")
		return
	}
	if s.onFrame != nil {
		s.onFrame(plain)
	}
}

// Send writes the contents of p as one frame.
// p is not modified, so the same packet may be sent on many streams.
// A failed send is logged and returned but does not close the stream; the next read will fail instead.
func (s *Stream) Send(p *packet.Packet) error {
	return s.SendBytes(p.Bytes())
}

// SendBytes writes content as one frame.
func (s *Stream) SendBytes(content []byte) error {
	if s.State() != Connected {
		return ErrNotConnected
	}
	sealed, err := s.cipher.Seal(content)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to seal frame")
		return err
	}
	frame := packet.New()
	defer frame.Release()
	frame.WriteBytes(sealed)
	frame.WriteLength()

	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()

	s.writeMu.Lock()
	_, err = conn.Write(frame.Bytes())
	s.writeMu.Unlock()
	if err != nil {
		s.log.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("stream send failed")
	}
	return err
}

// Close closes the connection and notifies the owner with a nil error.
// Safe to call any number of times; the owner is notified once.
func (s *Stream) Close() {
	s.shutdown(nil)
}

// shutdown closes the connection once. The owner is notified after the Once returns,
// so onClose may call Close without deadlocking.
func (s *Stream) shutdown(cause error) {
	var first bool
	s.closeOnce.Do(func() {
		first = true
		s.connMu.Lock()
		s.closed = true
		s.state.Store(uint32(Disconnected))
		conn := s.conn
		s.connMu.Unlock()
		if conn != nil {
			conn.Close()
		}
		close(s.done)
	})
	if !first || s.onClose == nil {
		return
	}
	if errors.Is(cause, net.ErrClosed) {
		cause = nil
	}
	s.onClose(cause)
}
