package transport

import "encoding/binary"

// A Reassembler accumulates stream bytes and cuts them into [int32 length][payload] frames.
// Bytes belonging to an incomplete trailing frame are kept for the next Feed.
type Reassembler struct {
	buf []byte
	max int
}

// NewReassembler returns a reassembler that rejects frames longer than max bytes.
func NewReassembler(max int) *Reassembler {
	if max <= 0 {
		max = DefaultMaxFrame
	}
	return &Reassembler{max: max}
}

// Feed appends b and calls emit once for every complete frame now buffered, in order.
// The payload passed to emit is only valid for the duration of the call.
//
// A declared length <= 0 or > max means framing is lost; Feed returns ErrDesync and the caller must drop the stream.
func (r *Reassembler) Feed(b []byte, emit func(payload []byte)) error {
	r.buf = append(r.buf, b...)
	off := 0
	for len(r.buf)-off >= 4 {
		n := int32(binary.LittleEndian.Uint32(r.buf[off:]))
		if n <= 0 || int(n) > r.max {
			r.Reset()
			return ErrBadLength(n, r.max)
		}
		end := off + 4 + int(n)
		if end > len(r.buf) {
			break
		}
		emit(r.buf[off+4 : end])
		off = end
	}
	// shift the partial remainder to the front
	rest := copy(r.buf, r.buf[off:])
	r.buf = r.buf[:rest]
	return nil
}

// Buffered returns the number of bytes held for an incomplete frame.
func (r *Reassembler) Buffered() int { return len(r.buf) }

// Reset discards any partial frame.
func (r *Reassembler) Reset() { r.buf = r.buf[:0] }
