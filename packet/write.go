package packet

import (
	"encoding/binary"
	"math"
)

// WriteUint8 appends a single byte.
func (p *Packet) WriteUint8(v uint8) {
	p.buf = append(p.buf, v)
}

// WriteBytes appends raw bytes with no length prefix.
func (p *Packet) WriteBytes(b []byte) {
	p.buf = append(p.buf, b...)
}

// WriteInt16 appends a little-endian int16.
func (p *Packet) WriteInt16(v int16) {
	p.buf = binary.LittleEndian.AppendUint16(p.buf, uint16(v))
}

// WriteInt32 appends a little-endian int32.
func (p *Packet) WriteInt32(v int32) {
	p.buf = binary.LittleEndian.AppendUint32(p.buf, uint32(v))
}

// WriteInt64 appends a little-endian int64.
func (p *Packet) WriteInt64(v int64) {
	p.buf = binary.LittleEndian.AppendUint64(p.buf, uint64(v))
}

// WriteFloat32 appends an IEEE 754 float32.
func (p *Packet) WriteFloat32(v float32) {
	p.buf = binary.LittleEndian.AppendUint32(p.buf, math.Float32bits(v))
}

// WriteBool appends a bool as a single byte (0x00 or 0x01).
func (p *Packet) WriteBool(v bool) {
	if v {
		p.buf = append(p.buf, 1)
	} else {
		p.buf = append(p.buf, 0)
	}
}

// WriteString appends s prefixed by its byte length as an int32.
func (p *Packet) WriteString(s string) {
	p.WriteInt32(int32(len(s)))
	p.buf = append(p.buf, s...)
}

// WriteVector3 appends the three components of v.
func (p *Packet) WriteVector3(v Vector3) {
	p.WriteFloat32(v.X)
	p.WriteFloat32(v.Y)
	p.WriteFloat32(v.Z)
}

// WriteRotation appends a leading compression flag followed by either the three Euler angles (compressed)
// or the four quaternion components (uncompressed).
func (p *Packet) WriteRotation(r Rotation) {
	p.WriteBool(r.Compressed)
	if r.Compressed {
		p.WriteVector3(r.Euler)
		return
	}
	p.WriteFloat32(r.Quat.X)
	p.WriteFloat32(r.Quat.Y)
	p.WriteFloat32(r.Quat.Z)
	p.WriteFloat32(r.Quat.W)
}
