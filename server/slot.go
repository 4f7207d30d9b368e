package server

import (
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/rflandau/voidnet"
	"github.com/rflandau/voidnet/internal/misc"
	"github.com/rflandau/voidnet/transport"
)

// A conn is one accepted TCP connection for the lifetime it occupies a slot.
// A reconnecting client gets a new conn, so nothing from the previous connection leaks into it.
type conn struct {
	slot   *slot
	stream *transport.Stream
	peer   netip.Addr // ip of the TCP peer; datagrams must come from here

	verified  bool        // password accepted; executor only
	connected atomic.Bool // OnConnected has fired; written on the executor, read anywhere
}

// A slot is a fixed seat on the server, reused across connections.
type slot struct {
	id voidnet.SessionID

	mu       sync.RWMutex
	cur      *conn          // nil when free
	endpoint netip.AddrPort // bound datagram source; zero until the sentinel arrives
}

// claim seats c if the slot is free.
func (sl *slot) claim(c *conn) bool {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.cur != nil {
		return false
	}
	c.slot = sl
	sl.cur = c
	sl.endpoint = netip.AddrPort{}
	return true
}

// release frees the slot if c still holds it.
// Returns false if c was already released, making every caller after the first a no-op.
func (sl *slot) release(c *conn) bool {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.cur != c || c == nil {
		return false
	}
	sl.cur = nil
	sl.endpoint = netip.AddrPort{}
	return true
}

// holds reports whether c is the slot's current connection.
func (sl *slot) holds(c *conn) bool {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return sl.cur == c
}

// current returns the slot's connection, or nil.
func (sl *slot) current() *conn {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return sl.cur
}

// datagramEndpoint returns the bound datagram endpoint of a connected slot.
func (sl *slot) datagramEndpoint() (netip.AddrPort, bool) {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	if sl.cur == nil || !sl.endpoint.IsValid() {
		return netip.AddrPort{}, false
	}
	return sl.endpoint, true
}

// route decides whether a datagram from src belongs to this slot's connection.
// The first datagram from the TCP peer's host binds the endpoint; after that only the bound endpoint is accepted.
// bound is true if this call performed the binding.
func (sl *slot) route(src netip.AddrPort) (c *conn, bound bool) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.cur == nil {
		return nil, false
	}
	if !sl.endpoint.IsValid() {
		if !misc.SameHost(sl.cur.peer, src.Addr()) {
			return nil, false
		}
		sl.endpoint = src
		return sl.cur, true
	}
	if sl.endpoint != src {
		return nil, false
	}
	return sl.cur, false
}
