// Package voidnet is the parent package of the voidnet real-time networking stack.
// It contains child packages packet (wire buffer), protocol (identifiers and verification), transport (stream and datagram channels),
// registry and dispatch (handler resolution and serialized execution), and the two session ends: server and client.
// The parent package provides the few values every child agrees on.
package voidnet

import "errors"

// SessionID is the slot number the server assigns to a connected client.
// Valid ids are 1..MaxClients; 0 means "not yet assigned".
type SessionID = int32

// DataBufferSize is the size of the fixed buffer each stream read fills.
const DataBufferSize = 4096

// MaxDatagramSize specifies the buffer size used to hold UDP payloads.
// UDP can theoretically carry payloads nearing 65535 bytes; transform updates fit in far less.
const MaxDatagramSize = 8192

// DefaultPort is the port servers listen on (TCP and UDP) when none is configured.
const DefaultPort uint16 = 26950

// Reason codes carried by a disconnect message immediately before the sender closes the stream.
const (
	ReasonServerShutdown    = "SERVER_SHUTDOWN"
	ReasonWrongPassword     = "WRONG_PASSWORD"
	ReasonFalseID           = "FALSE_ID_ASSUMPTION"
	ReasonWelcomeTimeout    = "WELCOME_TIMEOUT"
	ReasonUnverifiedPacket  = "UNVERIFIED_PACKET"
	ReasonClientDisconnect  = "CLIENT_DISCONNECT"
	ReasonKickedByServerApp = "KICKED"
)

var (
	ErrNilCtx = errors.New("do not pass a nil context; use context.TODO() instead")
)
