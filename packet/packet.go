// Package packet contains the growable byte buffer every voidnet message is encoded into and decoded from.
//
// A Packet is written front to back and read front to back through a cursor.
// All multi-byte values are little-endian.
// Packets are pooled: acquire one with New or From and give it back with Release once the single encode or decode pass is done.
package packet

import (
	"encoding/binary"
	"sync"
)

// defaultCap is the capacity a freshly allocated packet buffer starts with.
const defaultCap = 256

// maxPooledCap keeps unusually large buffers from pinning memory in the pool.
const maxPooledCap = 64 * 1024

var pool = sync.Pool{
	New: func() any { return &Packet{buf: make([]byte, 0, defaultCap)} },
}

// A Packet is one logical message: a byte buffer and a read cursor.
// The cursor never exceeds the length of the buffer.
//
// Packets are not safe for concurrent use.
type Packet struct {
	buf      []byte
	cursor   int
	released bool
}

// New returns an empty packet from the pool.
func New() *Packet {
	p := pool.Get().(*Packet)
	p.buf = p.buf[:0]
	p.cursor = 0
	p.released = false
	return p
}

// From returns a pooled packet holding a copy of b, ready to be read from the start.
func From(b []byte) *Packet {
	p := New()
	p.buf = append(p.buf, b...)
	return p
}

// Release returns p to the pool.
// p must not be used afterwards. Releasing a nil or already released packet is a no-op.
func (p *Packet) Release() {
	if p == nil || p.released {
		return
	}
	p.released = true
	if cap(p.buf) > maxPooledCap {
		return
	}
	p.buf = p.buf[:0]
	p.cursor = 0
	pool.Put(p)
}

//#region buffer state

// Bytes returns the full contents of the packet.
// The returned slice aliases the packet's buffer and is only valid until the next write or Release.
func (p *Packet) Bytes() []byte { return p.buf }

// Len returns the number of bytes in the packet.
func (p *Packet) Len() int { return len(p.buf) }

// Unread returns the number of bytes between the cursor and the end of the packet.
func (p *Packet) Unread() int { return len(p.buf) - p.cursor }

// Rest returns the unread bytes without advancing the cursor.
// The returned slice aliases the packet's buffer.
func (p *Packet) Rest() []byte { return p.buf[p.cursor:] }

// Cursor returns the current read position.
func (p *Packet) Cursor() int { return p.cursor }

// Seek moves the read cursor to pos, which must lie within the packet.
func (p *Packet) Seek(pos int) error {
	if pos < 0 || pos > len(p.buf) {
		return &DecodeError{Type: "seek", Need: pos, Have: len(p.buf)}
	}
	p.cursor = pos
	return nil
}

// Reset empties the packet so it can be reused.
func (p *Packet) Reset() {
	p.buf = p.buf[:0]
	p.cursor = 0
}

// Replace swaps the contents of the packet for b and rewinds the cursor.
// Used by ciphers that transform the whole buffer.
func (p *Packet) Replace(b []byte) {
	p.buf = append(p.buf[:0], b...)
	p.cursor = 0
}

//#endregion buffer state

//#region framing

// WriteLength prepends the current length of the packet as a little-endian int32.
// Used for stream and datagram framing.
func (p *Packet) WriteLength() {
	p.InsertInt32(int32(len(p.buf)))
}

// InsertInt32 prepends v to the packet.
// Used to tag datagrams with the sender's session id.
func (p *Packet) InsertInt32(v int32) {
	p.buf = append(p.buf, 0, 0, 0, 0)
	copy(p.buf[4:], p.buf[:len(p.buf)-4])
	binary.LittleEndian.PutUint32(p.buf[:4], uint32(v))
}

//#endregion framing
