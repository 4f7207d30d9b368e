// Package registry resolves an inbound message to the handler that processes it.
//
// A Registry holds two tables: the built-ins a session installs at construction, and the entries the embedding application registers at startup.
// Freeze flattens both into a string-keyed and an int16-keyed map; after that the registry is read-only and safe for concurrent lookups.
// Built-ins always win a collision.
package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rflandau/voidnet"
	"github.com/rflandau/voidnet/packet"
	"github.com/rflandau/voidnet/protocol"
	"github.com/rs/zerolog"
)

// ClientHandler processes a message a client received from the server.
// The packet's cursor sits at the start of the body.
type ClientHandler = func(p *packet.Packet)

// ServerHandler processes a message the server received from the client in slot sender.
// The packet's cursor sits at the start of the body.
type ServerHandler = func(sender voidnet.SessionID, p *packet.Packet)

// Handler is the set of handler shapes a Registry can hold: one per role.
type Handler interface {
	ClientHandler | ServerHandler
}

// An Entry binds an identifier to its handler and the verification mode its messages must carry.
type Entry[H Handler] struct {
	ID       protocol.PacketID
	Expected protocol.Verification
	Handler  H
	Builtin  bool
}

// A Candidate is an externally supplied handler whose shape has not been checked yet.
type Candidate struct {
	ID       protocol.PacketID
	Expected protocol.Verification
	Func     any
}

// Registry maps identifiers to handlers of shape H.
type Registry[H Handler] struct {
	codec protocol.Codec
	log   *zerolog.Logger

	builtins []Entry[H]
	user     []Entry[H]

	freezeOnce sync.Once
	frozen     atomic.Bool // set once the maps below are complete
	byName     map[string]Entry[H]
	byShort    map[int16]Entry[H]
}

// New returns an empty registry that reads identifiers and checks verification with codec.
// If l is nil, registry events are discarded.
func New[H Handler](codec protocol.Codec, l *zerolog.Logger) *Registry[H] {
	if l == nil {
		nop := zerolog.Nop()
		l = &nop
	}
	return &Registry[H]{codec: codec, log: l}
}

// Codec returns the codec the registry was built with.
func (r *Registry[H]) Codec() protocol.Codec { return r.codec }

// Frozen reports whether Freeze has been called.
func (r *Registry[H]) Frozen() bool { return r.frozen.Load() }

// Len returns the number of entries reachable under the active addressing mode.
// Only meaningful after Freeze.
func (r *Registry[H]) Len() int {
	if r.codec.Addressing == protocol.AddressShort {
		return len(r.byShort)
	}
	return len(r.byName)
}

//#region population

// AddBuiltin installs a reserved handler.
// Reserved identifiers are exempt from the non-negative rule that applies to Register.
func (r *Registry[H]) AddBuiltin(b protocol.Builtin, h H) error {
	if err := r.check(b.ID, b.Expected, h, true); err != nil {
		return err
	}
	r.builtins = append(r.builtins, Entry[H]{ID: b.ID, Expected: b.Expected, Handler: h, Builtin: true})
	return nil
}

// Register installs an application handler for id.
// Messages bearing id must carry a verification stamp of mode expected or they are dropped before h is called.
// Returns a *RegistrationError if the entry cannot be installed.
func (r *Registry[H]) Register(id protocol.PacketID, expected protocol.Verification, h H) error {
	if err := r.check(id, expected, h, false); err != nil {
		return err
	}
	r.user = append(r.user, Entry[H]{ID: id, Expected: expected, Handler: h})
	return nil
}

// Discover shape-checks each candidate and registers those that fit this registry's role.
// Candidates that do not fit are logged and skipped; they never stop the rest from registering.
// Returns the number of candidates registered.
func (r *Registry[H]) Discover(candidates ...Candidate) (registered int) {
	for _, c := range candidates {
		h, ok := c.Func.(H)
		if !ok {
			err := &RegistrationError{ID: c.ID, Err: ErrWrongShape, Detail: fmt.Sprintf("want %T, got %T", *new(H), c.Func)}
			r.log.Warn().Func(c.ID.Zerolog).Err(err).Msg("skipping handler candidate")
			continue
		}
		if err := r.Register(c.ID, c.Expected, h); err != nil {
			r.log.Warn().Func(c.ID.Zerolog).Err(err).Msg("skipping handler candidate")
			continue
		}
		registered++
	}
	return registered
}

// check validates an entry against the registry's state and the entries already installed.
func (r *Registry[H]) check(id protocol.PacketID, expected protocol.Verification, h H, builtin bool) error {
	if r.frozen.Load() {
		return &RegistrationError{ID: id, Err: ErrFrozen}
	}
	if isNil(h) {
		return &RegistrationError{ID: id, Err: ErrNilHandler}
	}
	if !expected.Valid() {
		return &RegistrationError{ID: id, Err: ErrBadVerification, Detail: expected.String()}
	}
	if !id.Legal(r.codec.Addressing) {
		return &RegistrationError{ID: id, Err: ErrIllegalForMode, Detail: r.codec.Addressing.String()}
	}
	if !builtin && id.Reserved() {
		return &RegistrationError{ID: id, Err: ErrReservedID}
	}
	for _, e := range r.builtins {
		if r.collides(e.ID, id) {
			return &RegistrationError{ID: id, Err: ErrCollision, Detail: "built-in " + e.ID.String()}
		}
	}
	for _, e := range r.user {
		if r.collides(e.ID, id) {
			return &RegistrationError{ID: id, Err: ErrCollision, Detail: e.ID.String()}
		}
	}
	return nil
}

// collides reports whether a and b occupy the same key under the active addressing mode.
func (r *Registry[H]) collides(a, b protocol.PacketID) bool {
	return a.Key(r.codec.Addressing) == b.Key(r.codec.Addressing)
}

//#endregion population

// Freeze flattens the built-in and application tables into lookup maps and makes the registry read-only.
// Built-ins are installed first, so they win any collision.
// Calling Freeze more than once is a no-op, including from concurrent goroutines.
func (r *Registry[H]) Freeze() {
	r.freezeOnce.Do(r.freeze)
}

func (r *Registry[H]) freeze() {
	r.byName = make(map[string]Entry[H], len(r.builtins)+len(r.user))
	r.byShort = make(map[int16]Entry[H], len(r.builtins)+len(r.user))
	install := func(e Entry[H]) {
		if e.ID.Name != "" {
			if _, dup := r.byName[e.ID.Name]; !dup {
				r.byName[e.ID.Name] = e
			}
		}
		if e.ID.Short != protocol.NoShort {
			if _, dup := r.byShort[e.ID.Short]; !dup {
				r.byShort[e.ID.Short] = e
			}
		}
	}
	for _, e := range r.builtins {
		install(e)
	}
	for _, e := range r.user {
		install(e)
	}
	r.frozen.Store(true)
	r.log.Debug().Int("builtins", len(r.builtins)).Int("registered", len(r.user)).Str("addressing", r.codec.Addressing.String()).Msg("registry frozen")
}

// Lookup returns the entry for id under the active addressing mode.
func (r *Registry[H]) Lookup(id protocol.PacketID) (Entry[H], error) {
	if !r.frozen.Load() {
		return Entry[H]{}, ErrNotFrozen
	}
	var (
		e     Entry[H]
		found bool
	)
	if r.codec.Addressing == protocol.AddressShort {
		e, found = r.byShort[id.Short]
	} else {
		e, found = r.byName[id.Name]
	}
	if !found {
		return Entry[H]{}, ErrUnknown(id)
	}
	return e, nil
}

// Resolve reads the identifier and verification stamp from p, returning the entry whose handler should process the body that remains.
//
// Returns a *packet.DecodeError if the header is truncated, ErrUnknownIdentifier if no handler is registered,
// or a *protocol.VerificationError if the stamp does not match the entry.
func (r *Registry[H]) Resolve(p *packet.Packet) (Entry[H], error) {
	id, err := r.codec.ReadID(p)
	if err != nil {
		return Entry[H]{}, err
	}
	e, err := r.Lookup(id)
	if err != nil {
		return Entry[H]{}, err
	}
	if err := r.codec.Verify(p, e.Expected); err != nil {
		return e, err
	}
	return e, nil
}

func isNil[H Handler](h H) bool {
	switch f := any(h).(type) {
	case ClientHandler:
		return f == nil
	case ServerHandler:
		return f == nil
	}
	return false
}
