package packet

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DecodeError is returned by every read that needs more bytes than remain in the packet.
// It is fatal to the message being decoded; the cursor is left where it was.
type DecodeError struct {
	Type string // the type the caller attempted to read
	Need int    // bytes required
	Have int    // bytes remaining
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("packet: could not read value of type '%s' (need %dB, %dB remain)", e.Type, e.Need, e.Have)
}

// need returns the offset of the next n bytes and advances past them, or a DecodeError naming typ.
func (p *Packet) need(n int, typ string) (int, error) {
	if n < 0 || p.cursor+n > len(p.buf) {
		return 0, &DecodeError{Type: typ, Need: n, Have: len(p.buf) - p.cursor}
	}
	off := p.cursor
	p.cursor += n
	return off, nil
}

// ReadUint8 reads a single byte.
func (p *Packet) ReadUint8() (uint8, error) {
	off, err := p.need(1, "byte")
	if err != nil {
		return 0, err
	}
	return p.buf[off], nil
}

// ReadBytes reads n raw bytes.
// The returned slice is a copy.
func (p *Packet) ReadBytes(n int) ([]byte, error) {
	off, err := p.need(n, "byte[]")
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, p.buf[off:off+n])
	return out, nil
}

// ReadInt16 reads a little-endian int16.
func (p *Packet) ReadInt16() (int16, error) {
	off, err := p.need(2, "int16")
	if err != nil {
		return 0, err
	}
	return int16(binary.LittleEndian.Uint16(p.buf[off:])), nil
}

// ReadInt32 reads a little-endian int32.
func (p *Packet) ReadInt32() (int32, error) {
	off, err := p.need(4, "int32")
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(p.buf[off:])), nil
}

// ReadInt64 reads a little-endian int64.
func (p *Packet) ReadInt64() (int64, error) {
	off, err := p.need(8, "int64")
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(p.buf[off:])), nil
}

// ReadFloat32 reads an IEEE 754 float32.
func (p *Packet) ReadFloat32() (float32, error) {
	off, err := p.need(4, "float32")
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(p.buf[off:])), nil
}

// ReadBool reads a single byte as a bool; any non-zero byte is true.
func (p *Packet) ReadBool() (bool, error) {
	off, err := p.need(1, "bool")
	if err != nil {
		return false, err
	}
	return p.buf[off] != 0, nil
}

// ReadString reads an int32 length prefix followed by that many bytes.
// On failure the cursor is restored to the start of the length prefix, and the error counts from there.
func (p *Packet) ReadString() (string, error) {
	start := p.cursor
	n, err := p.ReadInt32()
	if err != nil {
		return "", &DecodeError{Type: "string", Need: 4, Have: len(p.buf) - start}
	}
	off, err := p.need(int(n), "string")
	if err != nil {
		p.cursor = start
		return "", &DecodeError{Type: "string", Need: 4 + int(max(n, 0)), Have: len(p.buf) - start}
	}
	return string(p.buf[off : off+int(n)]), nil
}

// ReadVector3 reads three float32 components.
func (p *Packet) ReadVector3() (Vector3, error) {
	start := p.cursor
	if _, err := p.need(12, "Vector3"); err != nil {
		return Vector3{}, err
	}
	p.cursor = start
	// length was checked above, these cannot fail
	x, _ := p.ReadFloat32()
	y, _ := p.ReadFloat32()
	z, _ := p.ReadFloat32()
	return Vector3{x, y, z}, nil
}

// ReadRotation reads a compression flag and then either three Euler angles or four quaternion components.
func (p *Packet) ReadRotation() (Rotation, error) {
	start := p.cursor
	compressed, err := p.ReadBool()
	if err != nil {
		return Rotation{}, &DecodeError{Type: "Rotation", Need: 1, Have: len(p.buf) - start}
	}
	if compressed {
		e, err := p.ReadVector3()
		if err != nil {
			p.cursor = start
			return Rotation{}, &DecodeError{Type: "Rotation", Need: 13, Have: len(p.buf) - start}
		}
		return Rotation{Compressed: true, Euler: e}, nil
	}
	if _, err := p.need(16, "Rotation"); err != nil {
		p.cursor = start
		return Rotation{}, &DecodeError{Type: "Rotation", Need: 17, Have: len(p.buf) - start}
	}
	p.cursor -= 16
	var q Quaternion
	q.X, _ = p.ReadFloat32()
	q.Y, _ = p.ReadFloat32()
	q.Z, _ = p.ReadFloat32()
	q.W, _ = p.ReadFloat32()
	return Rotation{Quat: q}, nil
}

//#region peeks

// Every Peek reads like its Read counterpart but leaves the cursor where it was, on success or failure.
// Seek covers anything the peeks do not.

func peek[T any](p *Packet, read func() (T, error)) (T, error) {
	start := p.cursor
	v, err := read()
	p.cursor = start
	return v, err
}

func (p *Packet) PeekUint8() (uint8, error) { return peek(p, p.ReadUint8) }
func (p *Packet) PeekInt16() (int16, error) { return peek(p, p.ReadInt16) }
func (p *Packet) PeekInt32() (int32, error) { return peek(p, p.ReadInt32) }
func (p *Packet) PeekInt64() (int64, error) { return peek(p, p.ReadInt64) }
func (p *Packet) PeekFloat32() (float32, error) { return peek(p, p.ReadFloat32) }
func (p *Packet) PeekBool() (bool, error) { return peek(p, p.ReadBool) }
func (p *Packet) PeekString() (string, error) { return peek(p, p.ReadString) }
func (p *Packet) PeekVector3() (Vector3, error) { return peek(p, p.ReadVector3) }
func (p *Packet) PeekRotation() (Rotation, error) { return peek(p, p.ReadRotation) }

//#endregion peeks
