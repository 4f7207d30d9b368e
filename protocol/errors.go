package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrNoID = errors.New("packet id has neither a name nor a numeric form")
)

// ErrIllegalID returns an error describing an identifier that cannot be written under the given addressing mode.
func ErrIllegalID(id PacketID, mode Addressing) error {
	return fmt.Errorf("packet id %v has no %v form", id, mode)
}

// MismatchReason distinguishes why a verification stamp was rejected.
type MismatchReason uint8

const (
	ModeMismatch        MismatchReason = iota // the mode byte differs from the handler's expected mode
	ApplicationMismatch                       // the remote application id differs from ours
	VersionMismatch                           // the remote version differs from ours
)

func (r MismatchReason) String() string {
	switch r {
	case ModeMismatch:
		return "mode mismatch"
	case ApplicationMismatch:
		return "application mismatch"
	case VersionMismatch:
		return "version mismatch"
	}
	return "unknown mismatch"
}

// VerificationError is returned when a message's verification stamp does not match what its handler expects.
// The message must be dropped; the connection is unaffected.
type VerificationError struct {
	Reason   MismatchReason
	Expected Verification
	Got      Verification
	Remote   string // the remote value that failed to match, if any
}

func (e *VerificationError) Error() string {
	if e.Reason == ModeMismatch {
		return fmt.Sprintf("verification %v: expected %v, got %v", e.Reason, e.Expected, e.Got)
	}
	return fmt.Sprintf("verification %v (%v): remote sent '%s'", e.Reason, e.Got, e.Remote)
}
