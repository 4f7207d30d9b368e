package protocol

// A Builtin is a reserved message: its identifier and the verification mode it is always sent with.
type Builtin struct {
	ID       PacketID
	Expected Verification
}

// Messages sent by the server and handled by clients.
var (
	ServerWelcome         = Builtin{Both("SERVER_WELCOME", -2), VerifyStrings}
	ServerDisconnect      = Builtin{Both("SERVER_DISCONNECT", -3), VerifyStrings}
	ServerMessage         = Builtin{Both("SERVER_MESSAGE", -4), VerifyHash}
	ServerSpawnEntity     = Builtin{Both("SERVER_SPAWN_NETWORKENTITY", -5), VerifyHash}
	ServerTransformEntity = Builtin{Both("SERVER_TRANSFORM_NETWORKENTITY", -6), VerifyNone}
	ServerDestroyEntity   = Builtin{Both("SERVER_DESTROY_NETWORKENTITY", -7), VerifyHash}
)

// Messages sent by clients and handled by the server.
var (
	ClientWelcomeReceived = Builtin{Both("CLIENT_WELCOME_RECEIVED", -2), VerifyStrings}
	ClientMessage         = Builtin{Both("CLIENT_MESSAGE", -3), VerifyHash}
	ClientResendEntity    = Builtin{Both("CLIENT_RESEND_NETWORKENTITY", -4), VerifyHash}
)

// ServerBuiltins returns every message a client must be able to handle.
func ServerBuiltins() []Builtin {
	return []Builtin{ServerWelcome, ServerDisconnect, ServerMessage, ServerSpawnEntity, ServerTransformEntity, ServerDestroyEntity}
}

// ClientBuiltins returns every message the server must be able to handle.
func ClientBuiltins() []Builtin {
	return []Builtin{ClientWelcomeReceived, ClientMessage, ClientResendEntity}
}
