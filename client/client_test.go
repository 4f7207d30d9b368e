package client_test

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/rflandau/voidnet"
	"github.com/rflandau/voidnet/client"
	"github.com/rflandau/voidnet/entity"
	. "github.com/rflandau/voidnet/internal/testsupport"
	"github.com/rflandau/voidnet/packet"
	"github.com/rflandau/voidnet/protocol"
	"github.com/rflandau/voidnet/registry"
	"github.com/rflandau/voidnet/transport"
	"github.com/rs/zerolog"
)

const wait = 3 * time.Second

var codec = protocol.Codec{Identity: protocol.Identity{ApplicationID: "voidnet-test", Version: "0.0.1"}}

func quiet() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func recv[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(wait):
		t.Fatal("timed out waiting for " + what)
	}
	panic("unreachable")
}

// fakeServer accepts one connection and exposes both of its channels to the test.
type fakeServer struct {
	ln     net.Listener
	udp    *transport.Datagram
	stream *transport.Stream
	frames chan []byte
	grams  chan []byte
	from   chan netip.AddrPort
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	udp, err := transport.ListenDatagram(ln.Addr().(*net.TCPAddr).AddrPort())
	if err != nil {
		ln.Close()
		t.Fatal(err)
	}
	f := &fakeServer{ln: ln, udp: udp, frames: make(chan []byte, 16), grams: make(chan []byte, 16), from: make(chan netip.AddrPort, 16)}
	go udp.Serve(func(from netip.AddrPort, b []byte) {
		f.from <- from
		f.grams <- bytes.Clone(b)
	})
	t.Cleanup(func() {
		ln.Close()
		udp.Close()
		if f.stream != nil {
			f.stream.Close()
		}
	})
	return f
}

func (f *fakeServer) addr() netip.AddrPort { return f.ln.Addr().(*net.TCPAddr).AddrPort() }

// accept adopts the next connection.
func (f *fakeServer) accept(t *testing.T) {
	t.Helper()
	nc, err := f.ln.Accept()
	if err != nil {
		t.Fatal(err)
	}
	f.stream = transport.NewStream(func(b []byte) { f.frames <- bytes.Clone(b) }, nil)
	if err := f.stream.Attach(nc); err != nil {
		t.Fatal(err)
	}
}

func (f *fakeServer) send(t *testing.T, b protocol.Builtin, body func(p *packet.Packet)) {
	t.Helper()
	p, err := codec.NewBuiltin(b)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Release()
	body(p)
	if err := f.stream.Send(p); err != nil {
		t.Fatal(err)
	}
}

func TestClient_NotConnected(t *testing.T) {
	cli, err := client.New(codec, client.WithLogger(quiet()))
	if err != nil {
		t.Fatal(err)
	}
	if cli.Connected() || cli.ID() != 0 {
		t.Fatal("fresh client claims to be connected")
	}
	if err := cli.SendMessage("hi"); !errors.Is(err, client.ErrNotConnected) {
		t.Error(ExpectedActual(client.ErrNotConnected, err))
	}
	if err := cli.SendUDP(packet.New()); !errors.Is(err, client.ErrNotConnected) {
		t.Error(ExpectedActual(client.ErrNotConnected, err))
	}
	if err := cli.Disconnect(); !errors.Is(err, client.ErrNotConnected) {
		t.Error(ExpectedActual(client.ErrNotConnected, err))
	}
	//lint:ignore SA1012 testing nil context handling
	if err := cli.Connect(nil, "127.0.0.1:1"); !errors.Is(err, voidnet.ErrNilCtx) {
		t.Error(ExpectedActual(voidnet.ErrNilCtx, err))
	}

	// nothing listens on the port of a closed listener
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	if err := cli.Connect(ctx, addr); err == nil {
		t.Fatal("connected to nothing")
	}
	if cli.Connected() {
		t.Fatal("failed connect left the client connected")
	}
}

func TestClient_Discover(t *testing.T) {
	cli, err := client.New(codec, client.WithLogger(quiet()))
	if err != nil {
		t.Fatal(err)
	}
	n := cli.Discover(
		registry.Candidate{ID: protocol.Named("chat"), Expected: protocol.VerifyHash, Func: func(*packet.Packet) {}},
		registry.Candidate{ID: protocol.Named("wrong shape"), Expected: protocol.VerifyHash, Func: func(voidnet.SessionID, *packet.Packet) {}},
		registry.Candidate{ID: protocol.Named("SERVER_MESSAGE"), Expected: protocol.VerifyHash, Func: func(*packet.Packet) {}},
	)
	if n != 1 {
		t.Fatal("unexpected number of handlers discovered", ExpectedActual(1, n))
	}
}

// Two first Connects racing: exactly one dials, the other is turned away.
func TestClient_ConcurrentConnect(t *testing.T) {
	fs := newFakeServer(t)
	cli, err := client.New(codec, client.WithLogger(quiet()))
	if err != nil {
		t.Fatal(err)
	}
	errs := make(chan error, 2)
	for range 2 {
		go func() { errs <- cli.Connect(t.Context(), fs.addr().String()) }()
	}
	var ok, turned int
	for range 2 {
		switch err := recv(t, errs, "Connect"); {
		case err == nil:
			ok++
		case errors.Is(err, client.ErrAlreadyConnected):
			turned++
		default:
			t.Fatal(err)
		}
	}
	if ok != 1 || turned != 1 {
		t.Fatalf("expected one connect and one refusal, got %d and %d", ok, turned)
	}
	cli.Disconnect()
}

// Walks a client through the handshake against a hand-rolled server, checking the bytes it sends and how it reacts to each built-in.
func TestClient_Session(t *testing.T) {
	var (
		fs           = newFakeServer(t)
		world        entity.Table
		connected    = make(chan voidnet.SessionID, 1)
		messages     = make(chan string, 1)
		disconnected = make(chan string, 2)
		chats        = make(chan string, 1)
	)
	cli, err := client.New(codec,
		client.WithLogger(quiet()),
		client.WithPassword("pw"),
		client.WithEntitySink(&world),
		client.OnConnected(func(id voidnet.SessionID) { connected <- id }),
		client.OnMessage(func(text string) { messages <- text }),
		client.OnDisconnected(func(reason string) { disconnected <- reason }))
	if err != nil {
		t.Fatal(err)
	}
	chat := protocol.Named("chat")
	if err := cli.Register(chat, protocol.VerifyNone, func(p *packet.Packet) {
		s, _ := p.ReadString()
		chats <- s
	}); err != nil {
		t.Fatal(err)
	}
	go cli.Executor().Run(t.Context())

	if err := cli.Connect(t.Context(), fs.addr().String()); err != nil {
		t.Fatal(err)
	}
	if err := cli.Connect(t.Context(), fs.addr().String()); !errors.Is(err, client.ErrAlreadyConnected) {
		t.Fatal(ExpectedActual(client.ErrAlreadyConnected, err))
	}
	fs.accept(t)
	fs.send(t, protocol.ServerWelcome, func(p *packet.Packet) { p.WriteInt32(5) })

	// the acknowledgement echoes the id and carries the password
	ack := packet.From(recv(t, fs.frames, "welcome acknowledgement"))
	defer ack.Release()
	if id, err := codec.ReadID(ack); err != nil || !id.Equal(protocol.ClientWelcomeReceived.ID) {
		t.Fatal("not an acknowledgement", ExpectedActual(protocol.ClientWelcomeReceived.ID, id), err)
	}
	if err := codec.Verify(ack, protocol.VerifyStrings); err != nil {
		t.Fatal(err)
	}
	claimed, _ := ack.ReadInt32()
	empty, _ := ack.ReadBool()
	pass, err := ack.ReadString()
	if claimed != 5 || empty || pass != "pw" || err != nil {
		t.Fatalf("bad acknowledgement body (%d, %v, %q, %v)", claimed, empty, pass, err)
	}

	// the sentinel comes from the stream's local address
	if got := recv(t, connected, "OnConnected"); got != 5 || cli.ID() != 5 {
		t.Fatal(ExpectedActual[voidnet.SessionID](5, got))
	}
	sentinel := recv(t, fs.grams, "sentinel")
	from := recv(t, fs.from, "sentinel source")
	session, frames, isSentinel, err := fs.udp.SplitTagged(sentinel)
	if err != nil || !isSentinel || session != 5 || len(frames) != 0 {
		t.Fatal("bad sentinel", session, isSentinel, err)
	}
	if peer := fs.stream.RemoteAddr(); from.Addr().Unmap() != peer.Addr().Unmap() || from.Port() != peer.Port() {
		t.Fatal("datagram channel is not bound to the stream's local address", ExpectedActual(peer, from))
	}

	// a second welcome is ignored; the message behind it is handled after it
	fs.send(t, protocol.ServerWelcome, func(p *packet.Packet) { p.WriteInt32(6) })
	fs.send(t, protocol.ServerMessage, func(p *packet.Packet) { p.WriteString("welcome aboard") })
	if got := recv(t, messages, "OnMessage"); got != "welcome aboard" {
		t.Fatal(ExpectedActual("welcome aboard", got))
	}
	if len(fs.frames) != 0 || len(connected) != 0 || cli.ID() != 5 {
		t.Fatal("repeated welcome was handled", ExpectedActual[voidnet.SessionID](5, cli.ID()))
	}
	spawn := entity.Spawn{ID: 11, Type: "door", Scale: packet.Vector3{X: 1, Y: 2, Z: 1}}
	fs.send(t, protocol.ServerSpawnEntity, spawn.Encode)
	if !Eventually(wait, func() bool { got, found := world.Lookup(11); return found && got == spawn }) {
		t.Fatal("spawn was not delivered to the sink")
	}

	// application handler over the datagram channel
	p, err := codec.NewMessage(chat, protocol.VerifyNone)
	if err != nil {
		t.Fatal(err)
	}
	p.WriteString("over udp")
	err = fs.udp.Send(from, p)
	p.Release()
	if err != nil {
		t.Fatal(err)
	}
	if got := recv(t, chats, "chat handler"); got != "over udp" {
		t.Fatal(ExpectedActual("over udp", got))
	}

	// client-side sends are tagged with the assigned id
	p, _ = codec.NewMessage(chat, protocol.VerifyNone)
	defer p.Release()
	if err := cli.SendUDP(p); err != nil {
		t.Fatal(err)
	}
	if session, frames, _, err := fs.udp.SplitTagged(recv(t, fs.grams, "tagged datagram")); err != nil || session != 5 || len(frames) != 1 {
		t.Fatal("bad tagged datagram", session, len(frames), err)
	}
	if err := cli.RequestEntity(11); err != nil {
		t.Fatal(err)
	}
	req := packet.From(recv(t, fs.frames, "resend request"))
	defer req.Release()
	if id, _ := codec.ReadID(req); !id.Equal(protocol.ClientResendEntity.ID) {
		t.Fatal(ExpectedActual(protocol.ClientResendEntity.ID, id))
	}

	// the server's reason is reported once, even though the stream closes right after
	fs.send(t, protocol.ServerDisconnect, func(p *packet.Packet) { p.WriteString("BYE") })
	fs.stream.Close()
	if got := recv(t, disconnected, "OnDisconnected"); got != "BYE" {
		t.Fatal(ExpectedActual("BYE", got))
	}
	time.Sleep(50 * time.Millisecond)
	if len(disconnected) != 0 || cli.Connected() {
		t.Fatal("client did not settle after disconnecting")
	}
}
