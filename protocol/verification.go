package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/rflandau/voidnet/packet"
)

// Verification is the per-message stamp written directly after the identifier.
type Verification uint8

const (
	VerifyNone    Verification = 0 // nothing follows the mode byte
	VerifyStrings Verification = 1 // application id and version as length-prefixed strings
	VerifyHash    Verification = 2 // stable 32-bit hashes of application id and version
)

func (v Verification) String() string {
	switch v {
	case VerifyNone:
		return "NONE"
	case VerifyStrings:
		return "STRINGS"
	case VerifyHash:
		return "HASH"
	}
	return "UNKNOWN(" + strconv.Itoa(int(v)) + ")"
}

// Valid reports whether v is one of the three known modes.
func (v Verification) Valid() bool { return v <= VerifyHash }

// ParseVerification returns the mode named by s ("none", "strings", "hash"; case-insensitive).
func ParseVerification(s string) (Verification, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return VerifyNone, nil
	case "strings":
		return VerifyStrings, nil
	case "hash":
		return VerifyHash, nil
	}
	return 0, fmt.Errorf("unknown verification mode '%s'", s)
}

// Identity is what a process claims to be. It is constant for the life of the process.
type Identity struct {
	ApplicationID string
	Version       string
}

// StableHash returns a 32-bit hash of s that is identical across processes and platforms.
func StableHash(s string) int32 {
	return int32(uint32(xxhash.Sum64String(s)))
}

// Hashes returns the stable hashes of the application id and version.
func (id Identity) Hashes() (app, version int32) {
	return StableHash(id.ApplicationID), StableHash(id.Version)
}

// WriteVerification appends the mode byte and, depending on mode, the identity stamp.
func WriteVerification(p *packet.Packet, mode Verification, id Identity) {
	p.WriteUint8(uint8(mode))
	switch mode {
	case VerifyStrings:
		p.WriteString(id.ApplicationID)
		p.WriteString(id.Version)
	case VerifyHash:
		app, ver := id.Hashes()
		p.WriteInt32(app)
		p.WriteInt32(ver)
	}
}

// CheckVerification reads the verification stamp and compares it against expected and local.
// The mode byte is checked first; on a mode mismatch nothing further is read.
// Returns a *VerificationError on mismatch or a *packet.DecodeError if the stamp is truncated.
func CheckVerification(p *packet.Packet, expected Verification, local Identity) error {
	b, err := p.ReadUint8()
	if err != nil {
		return err
	}
	got := Verification(b)
	if got != expected {
		return &VerificationError{Reason: ModeMismatch, Expected: expected, Got: got}
	}
	switch got {
	case VerifyStrings:
		app, err := p.ReadString()
		if err != nil {
			return err
		}
		ver, err := p.ReadString()
		if err != nil {
			return err
		}
		if app != local.ApplicationID {
			return &VerificationError{Reason: ApplicationMismatch, Expected: expected, Got: got, Remote: app}
		}
		if ver != local.Version {
			return &VerificationError{Reason: VersionMismatch, Expected: expected, Got: got, Remote: ver}
		}
	case VerifyHash:
		app, err := p.ReadInt32()
		if err != nil {
			return err
		}
		ver, err := p.ReadInt32()
		if err != nil {
			return err
		}
		localApp, localVer := local.Hashes()
		if app != localApp {
			return &VerificationError{Reason: ApplicationMismatch, Expected: expected, Got: got, Remote: strconv.FormatInt(int64(app), 10)}
		}
		if ver != localVer {
			return &VerificationError{Reason: VersionMismatch, Expected: expected, Got: got, Remote: strconv.FormatInt(int64(ver), 10)}
		}
	}
	return nil
}
