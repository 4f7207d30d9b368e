/*
Package protocol contains the pieces of the voidnet message header that sit between the stream framing and the message body:
the packet identifier, the verification stamp, and the reserved built-in identifiers.

A Codec binds an addressing mode and a local identity together so headers can be written and checked without any process-wide state.
*/
package protocol

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
)

// Addressing selects which field of a PacketID goes on the wire.
// Both ends of a connection must agree on it; it is not negotiated.
type Addressing uint8

const (
	AddressString Addressing = iota // length-prefixed string tag
	AddressShort                    // int16 tag
)

func (a Addressing) String() string {
	switch a {
	case AddressString:
		return "string"
	case AddressShort:
		return "short"
	}
	return "unknown(" + strconv.Itoa(int(a)) + ")"
}

// ParseAddressing returns the addressing mode named by s ("string" or "short", case-insensitive).
func ParseAddressing(s string) (Addressing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "":
		return AddressString, nil
	case "short":
		return AddressShort, nil
	}
	return 0, fmt.Errorf("unknown addressing mode '%s' (expected 'string' or 'short')", s)
}

// NoShort is the sentinel for a PacketID that has no numeric form.
const NoShort int16 = -1

// Kind describes which fields of a PacketID are populated.
type Kind uint8

const (
	KindNone Kind = iota
	KindString
	KindShort
	KindBoth
)

// A PacketID selects the handler that processes a message.
// Either field may be absent: an empty Name or a Short of NoShort.
type PacketID struct {
	Name  string
	Short int16
}

// Named returns an identifier with only a string form.
func Named(name string) PacketID { return PacketID{Name: name, Short: NoShort} }

// Numeric returns an identifier with only a numeric form.
func Numeric(short int16) PacketID { return PacketID{Short: short} }

// Both returns an identifier usable under either addressing mode.
func Both(name string, short int16) PacketID { return PacketID{Name: name, Short: short} }

// Kind reports which fields of id are populated.
func (id PacketID) Kind() Kind {
	hasName, hasShort := id.Name != "", id.Short != NoShort
	switch {
	case hasName && hasShort:
		return KindBoth
	case hasName:
		return KindString
	case hasShort:
		return KindShort
	}
	return KindNone
}

// Equal applies the partial-equality rule.
// If either side lacks a name only the shorts are compared.
// Otherwise, if either side lacks a short, only the names are compared.
// Otherwise both fields must match.
func (id PacketID) Equal(other PacketID) bool {
	switch {
	case id.Name == "" || other.Name == "":
		return id.Short == other.Short
	case id.Short == NoShort || other.Short == NoShort:
		return id.Name == other.Name
	}
	return id.Name == other.Name && id.Short == other.Short
}

// Legal reports whether id carries the field the given addressing mode puts on the wire.
func (id PacketID) Legal(mode Addressing) bool {
	if mode == AddressShort {
		return id.Short != NoShort
	}
	return id.Name != ""
}

// Key returns id reduced to the field the given addressing mode puts on the wire.
// Two identifiers address the same handler under mode iff their keys are ==.
func (id PacketID) Key(mode Addressing) PacketID {
	if mode == AddressShort {
		return Numeric(id.Short)
	}
	return Named(id.Name)
}

// Reserved reports whether id's numeric form falls in the range kept for built-in messages.
func (id PacketID) Reserved() bool {
	return id.Short < 0 && id.Short != NoShort
}

// Hash returns a hash of only the field used by the given mode.
// Identifiers that are Equal and Legal under mode hash identically.
func (id PacketID) Hash(mode Addressing) uint64 {
	if mode == AddressShort {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(id.Short))
		return xxhash.Sum64(b[:])
	}
	return xxhash.Sum64String(id.Name)
}

func (id PacketID) String() string {
	switch id.Kind() {
	case KindString:
		return id.Name
	case KindShort:
		return "#" + strconv.Itoa(int(id.Short))
	case KindBoth:
		return id.Name + "#" + strconv.Itoa(int(id.Short))
	}
	return "<none>"
}

// Zerolog attaches the populated fields of id to the event.
func (id PacketID) Zerolog(e *zerolog.Event) {
	if id.Name != "" {
		e.Str("packet", id.Name)
	}
	if id.Short != NoShort {
		e.Int16("packet_short", id.Short)
	}
}
