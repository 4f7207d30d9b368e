package registry_test

import (
	"errors"
	"sync"
	"testing"

	. "github.com/rflandau/voidnet/internal/testsupport"
	"github.com/rflandau/voidnet/packet"
	"github.com/rflandau/voidnet/protocol"
	"github.com/rflandau/voidnet/registry"
)

var local = protocol.Identity{ApplicationID: "registry-test", Version: "0.1"}

func TestRegister(t *testing.T) {
	noop := func(*packet.Packet) {}
	tests := []struct {
		name    string
		mode    protocol.Addressing
		id      protocol.PacketID
		v       protocol.Verification
		h       registry.ClientHandler
		wantErr error
	}{
		{"valid named", protocol.AddressString, protocol.Named("JUMP"), protocol.VerifyHash, noop, nil},
		{"valid numeric", protocol.AddressShort, protocol.Numeric(4), protocol.VerifyNone, noop, nil},
		{"nil handler", protocol.AddressString, protocol.Named("JUMP"), protocol.VerifyHash, nil, registry.ErrNilHandler},
		{"numeric under string mode", protocol.AddressString, protocol.Numeric(4), protocol.VerifyHash, noop, registry.ErrIllegalForMode},
		{"named under short mode", protocol.AddressShort, protocol.Named("JUMP"), protocol.VerifyHash, noop, registry.ErrIllegalForMode},
		{"reserved short", protocol.AddressShort, protocol.Numeric(-9), protocol.VerifyHash, noop, registry.ErrReservedID},
		{"reserved short in string mode", protocol.AddressString, protocol.Both("JUMP", -9), protocol.VerifyHash, noop, registry.ErrReservedID},
		{"bad verification", protocol.AddressString, protocol.Named("JUMP"), protocol.Verification(7), noop, registry.ErrBadVerification},
		{"collides with built-in name", protocol.AddressString, protocol.Named("SERVER_MESSAGE"), protocol.VerifyHash, noop, registry.ErrCollision},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := registry.New[registry.ClientHandler](protocol.Codec{Addressing: tt.mode, Identity: local}, nil)
			if err := r.AddBuiltin(protocol.ServerMessage, noop); err != nil {
				t.Fatal(err)
			}
			err := r.Register(tt.id, tt.v, tt.h)
			if !errors.Is(err, tt.wantErr) {
				t.Fatal(ExpectedActual(tt.wantErr, err))
			}
			if tt.wantErr != nil {
				var re *registry.RegistrationError
				if !errors.As(err, &re) {
					t.Fatalf("expected a RegistrationError, got %T", err)
				}
			}
		})
	}
}

// Under short addressing, an application id whose short matches an existing entry is rejected even if its name differs.
func TestRegister_CollisionUnderActiveMode(t *testing.T) {
	noop := func(*packet.Packet) {}
	r := registry.New[registry.ClientHandler](protocol.Codec{Addressing: protocol.AddressShort}, nil)
	if err := r.Register(protocol.Both("A", 1), protocol.VerifyNone, noop); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(protocol.Both("B", 1), protocol.VerifyNone, noop); !errors.Is(err, registry.ErrCollision) {
		t.Fatal(ExpectedActual(registry.ErrCollision, err))
	}
	// the name is irrelevant under short addressing
	if err := r.Register(protocol.Both("A", 2), protocol.VerifyNone, noop); err != nil {
		t.Fatal(err)
	}
}

func TestDiscover(t *testing.T) {
	var hit int
	r := registry.New[registry.ServerHandler](protocol.Codec{Addressing: protocol.AddressString, Identity: local}, nil)
	n := r.Discover(
		registry.Candidate{ID: protocol.Named("OK"), Expected: protocol.VerifyNone, Func: func(int32, *packet.Packet) { hit++ }},
		registry.Candidate{ID: protocol.Named("CLIENT_SHAPED"), Expected: protocol.VerifyNone, Func: func(*packet.Packet) {}},
		registry.Candidate{ID: protocol.Named("WRONG_ARGS"), Expected: protocol.VerifyNone, Func: func(string, *packet.Packet) {}},
		registry.Candidate{ID: protocol.Named("NOT_A_FUNC"), Expected: protocol.VerifyNone, Func: 5},
		registry.Candidate{ID: protocol.Named("NIL"), Expected: protocol.VerifyNone, Func: nil},
		registry.Candidate{ID: protocol.Named("OK"), Expected: protocol.VerifyNone, Func: func(int32, *packet.Packet) {}},
		registry.Candidate{ID: protocol.Named("ALSO_OK"), Expected: protocol.VerifyHash, Func: registry.ServerHandler(func(int32, *packet.Packet) {})},
	)
	if n != 2 {
		t.Fatal("wrong number of candidates registered", ExpectedActual(2, n))
	}
	r.Freeze()
	if r.Len() != 2 {
		t.Fatal(ExpectedActual(2, r.Len()))
	}
	e, err := r.Lookup(protocol.Named("OK"))
	if err != nil {
		t.Fatal(err)
	}
	e.Handler(1, nil)
	if hit != 1 {
		t.Fatal("the first registration did not win", ExpectedActual(1, hit))
	}
	for _, name := range []string{"CLIENT_SHAPED", "WRONG_ARGS", "NOT_A_FUNC", "NIL"} {
		if _, err := r.Lookup(protocol.Named(name)); !errors.Is(err, registry.ErrUnknownIdentifier) {
			t.Error(name, ExpectedActual(registry.ErrUnknownIdentifier, err))
		}
	}
}

func TestFreeze(t *testing.T) {
	noop := func(*packet.Packet) {}
	r := registry.New[registry.ClientHandler](protocol.Codec{}, nil)
	if _, err := r.Lookup(protocol.Named("X")); !errors.Is(err, registry.ErrNotFrozen) {
		t.Fatal(ExpectedActual(registry.ErrNotFrozen, err))
	}
	if err := r.Register(protocol.Named("X"), protocol.VerifyNone, noop); err != nil {
		t.Fatal(err)
	}
	r.Freeze()
	r.Freeze()
	if !r.Frozen() {
		t.Fatal("registry did not report frozen")
	}
	if err := r.Register(protocol.Named("Y"), protocol.VerifyNone, noop); !errors.Is(err, registry.ErrFrozen) {
		t.Fatal(ExpectedActual(registry.ErrFrozen, err))
	}
	if _, err := r.Lookup(protocol.Named("X")); err != nil {
		t.Fatal(err)
	}
}

// Sessions freeze on first use, which may happen on several goroutines at once.
func TestFreeze_Concurrent(t *testing.T) {
	r := registry.New[registry.ClientHandler](protocol.Codec{}, nil)
	if err := r.Register(protocol.Named("X"), protocol.VerifyNone, func(*packet.Packet) {}); err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Freeze()
			if _, err := r.Lookup(protocol.Named("X")); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if !r.Frozen() || r.Len() != 1 {
		t.Fatal("registry not frozen exactly once", ExpectedActual(1, r.Len()))
	}
}

func TestResolve(t *testing.T) {
	codec := protocol.Codec{Addressing: protocol.AddressShort, Identity: local}
	r := registry.New[registry.ClientHandler](codec, nil)
	if err := r.AddBuiltin(protocol.ServerMessage, func(*packet.Packet) {}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(protocol.Numeric(12), protocol.VerifyStrings, func(*packet.Packet) {}); err != nil {
		t.Fatal(err)
	}
	r.Freeze()

	encode := func(id protocol.PacketID, v protocol.Verification, ident protocol.Identity) *packet.Packet {
		c := protocol.Codec{Addressing: protocol.AddressShort, Identity: ident}
		p, err := c.NewMessage(id, v)
		if err != nil {
			t.Fatal(err)
		}
		p.WriteString("body")
		return p
	}

	t.Run("hit", func(t *testing.T) {
		p := encode(protocol.ServerMessage.ID, protocol.VerifyHash, local)
		defer p.Release()
		e, err := r.Resolve(p)
		if err != nil {
			t.Fatal(err)
		}
		if !e.Builtin || !e.ID.Equal(protocol.ServerMessage.ID) {
			t.Fatal("resolved the wrong entry", ExpectedActual(protocol.ServerMessage.ID, e.ID))
		}
		if s, _ := p.ReadString(); s != "body" {
			t.Fatal("cursor not left at the body", ExpectedActual("body", s))
		}
	})
	t.Run("miss", func(t *testing.T) {
		p := encode(protocol.Numeric(13), protocol.VerifyStrings, local)
		defer p.Release()
		if _, err := r.Resolve(p); !errors.Is(err, registry.ErrUnknownIdentifier) {
			t.Fatal(ExpectedActual(registry.ErrUnknownIdentifier, err))
		}
	})
	t.Run("mode mismatch", func(t *testing.T) {
		p := encode(protocol.Numeric(12), protocol.VerifyHash, local)
		defer p.Release()
		var ve *protocol.VerificationError
		if _, err := r.Resolve(p); !errors.As(err, &ve) || ve.Reason != protocol.ModeMismatch {
			t.Fatalf("expected a mode mismatch, got %v", err)
		}
	})
	t.Run("truncated", func(t *testing.T) {
		p := packet.From([]byte{0x0C})
		defer p.Release()
		var de *packet.DecodeError
		if _, err := r.Resolve(p); !errors.As(err, &de) {
			t.Fatalf("expected a decode error, got %v", err)
		}
	})
}
