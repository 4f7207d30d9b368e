package registry

import (
	"errors"
	"fmt"

	"github.com/rflandau/voidnet/protocol"
)

var (
	ErrUnknownIdentifier = errors.New("no handler registered for packet id")
	ErrNotFrozen         = errors.New("registry must be frozen before lookups")

	ErrFrozen          = errors.New("registry is frozen")
	ErrNilHandler      = errors.New("handler is nil")
	ErrWrongShape      = errors.New("handler has the wrong signature for this role")
	ErrBadVerification = errors.New("unknown verification mode")
	ErrIllegalForMode  = errors.New("packet id has no form under the active addressing mode")
	ErrReservedID      = errors.New("negative packet ids are reserved for built-in messages")
	ErrCollision       = errors.New("packet id is already registered")
)

// ErrUnknown wraps ErrUnknownIdentifier with the identifier that missed.
func ErrUnknown(id protocol.PacketID) error {
	return fmt.Errorf("%w: %v", ErrUnknownIdentifier, id)
}

// RegistrationError describes a handler that could not be installed.
// Unwraps to one of the registration sentinels.
type RegistrationError struct {
	ID     protocol.PacketID
	Err    error
	Detail string
}

func (e *RegistrationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("cannot register %v: %v (%s)", e.ID, e.Err, e.Detail)
	}
	return fmt.Sprintf("cannot register %v: %v", e.ID, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }
