package protocol

import (
	"github.com/rflandau/voidnet/packet"
)

// A Codec writes and reads message headers (identifier tag and verification stamp) for one addressing mode and identity.
// The zero value uses string addressing and an empty identity.
type Codec struct {
	Addressing Addressing
	Identity   Identity
}

// WriteHeader appends the identifier tag and verification stamp for an outbound message.
// Fails if id has no form under the codec's addressing mode.
func (c Codec) WriteHeader(p *packet.Packet, id PacketID, v Verification) error {
	if !id.Legal(c.Addressing) {
		return ErrIllegalID(id, c.Addressing)
	}
	if c.Addressing == AddressShort {
		p.WriteInt16(id.Short)
	} else {
		p.WriteString(id.Name)
	}
	WriteVerification(p, v, c.Identity)
	return nil
}

// NewMessage returns a pooled packet with the header already written.
// The caller owns the packet and must Release it.
func (c Codec) NewMessage(id PacketID, v Verification) (*packet.Packet, error) {
	p := packet.New()
	if err := c.WriteHeader(p, id, v); err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

// NewBuiltin is NewMessage for a reserved message.
func (c Codec) NewBuiltin(b Builtin) (*packet.Packet, error) {
	return c.NewMessage(b.ID, b.Expected)
}

// ReadID reads the identifier tag.
// The result only carries the field of the codec's addressing mode.
func (c Codec) ReadID(p *packet.Packet) (PacketID, error) {
	if c.Addressing == AddressShort {
		s, err := p.ReadInt16()
		if err != nil {
			return PacketID{}, err
		}
		return Numeric(s), nil
	}
	s, err := p.ReadString()
	if err != nil {
		return PacketID{}, err
	}
	return Named(s), nil
}

// Verify reads the verification stamp and checks it against expected and the codec's identity.
func (c Codec) Verify(p *packet.Packet, expected Verification) error {
	return CheckVerification(p, expected, c.Identity)
}
