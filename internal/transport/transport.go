// Package transport implements the two wire bindings: a reliable,
// line-oriented binding over TCP, and an unreliable, datagram binding over
// UDP with server-port rebinding. Both satisfy the Transport interface so
// the conversation engine can be written once against either.
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/ipk24chat/client/internal/message"
)

// ErrConnectionFailed is returned when a connect, send, or receive
// operation fails at the transport level.
var ErrConnectionFailed = errors.New("connection failed")

// ErrWrongSourceAddress is returned by the datagram transport's Receive
// when a datagram arrives from an address other than the server's
// configured IP. Callers must silently ignore it and retry Receive.
var ErrWrongSourceAddress = errors.New("datagram from unexpected source address")

// NoTimeout is returned by NextTimeout to mean "wait indefinitely."
const NoTimeout time.Duration = -1

// Transport is the capability set the conversation engine drives. Both
// bindings implement it; the reliable binding's Confirm sends are no-ops
// and its NextTimeout is always NoTimeout.
type Transport interface {
	// Connect establishes the transport (dialing for TCP, opening the
	// local socket for UDP).
	Connect(ctx context.Context) error

	// Send encodes and transmits msg.
	Send(msg message.Message) error

	// Receive blocks for the next inbound message.
	Receive() (message.Message, error)

	// Disconnect releases the transport's resources.
	Disconnect() error
}
