// Package transport carries protocol frames between a client and the relay.
package transport

import (
	"errors"

	"jamsesh/protocol"
)

// ErrTransportUnavailable means the relay could not be reached. Callers fall
// back to local-only mode.
var ErrTransportUnavailable = errors.New("transport unavailable")

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")

// Protocol is the WebSocket subprotocol the relay requires.
const Protocol = "giogadi"

// DefaultPort is the relay's listening port.
const DefaultPort = 2795

// Transport is a reliable ordered duplex channel of protocol frames. Handlers
// run on the transport's reader goroutine and must not block for long.
type Transport interface {
	Send(u protocol.Update) error
	OnMessage(fn func(protocol.Message))
	OnClose(fn func(error))
	Close() error
}
