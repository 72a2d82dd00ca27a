package client

import "errors"

var (
	// The connection could not be opened, or was lost while in use. The client is Faulted (or
	// back to its previous state when opening failed) and the next call reconnects.
	ErrConnection = errors.New("connection error")
	// No response within the request timeout. The client is Faulted.
	ErrTimeout = errors.New("timeout")
	// The response did not match the expected shape. The connection stays usable.
	ErrProtocol = errors.New("protocol error")
	// Connect was never called, or the client was disconnected.
	ErrDisconnected = errors.New("disconnected")
	// A stream owns the connection; only commands with no response may be sent.
	ErrStreamActive = errors.New("stream active")
	// The command does not exist for the configured grammar.
	ErrUnsupported = errors.New("unsupported by grammar")
	ErrClosed      = errors.New("client closed")
)
