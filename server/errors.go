package server

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/rflandau/voidnet"
)

// ErrBadAddr returns an error to indicate that the given netip.AddrPort was invalid
func ErrBadAddr(ap netip.AddrPort) error {
	return fmt.Errorf("address %v is not a valid ip:port", ap)
}

// ErrBadSlot returns an error to indicate that id does not name a slot of this server.
func ErrBadSlot(id voidnet.SessionID, max int) error {
	return fmt.Errorf("slot %d is outside 1..%d", id, max)
}

var (
	ErrBadMaxClients = errors.New("max clients must be at least 1")
	ErrNotListening  = errors.New("server is not listening")
	ErrSlotEmpty     = errors.New("slot has no connection")
	ErrUnbound       = errors.New("slot has no bound datagram endpoint")
)
