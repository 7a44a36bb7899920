package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/ipk24chat/client/internal/message"
	"github.com/ipk24chat/client/internal/textcodec"
)

// connectTimeout is how long Connect waits for the TCP handshake to
// complete before giving up (Section 4.6).
const connectTimeout = 5 * time.Second

// Reliable is the TCP binding: one CRLF-terminated text line per message.
// Confirm has no wire representation on this binding and is a no-op on
// Send.
type Reliable struct {
	addr string
	conn net.Conn
	r    *bufio.Reader
}

// NewReliable returns a Reliable transport that will dial addr (host:port)
// on Connect.
func NewReliable(addr string) *Reliable {
	return &Reliable{addr: addr}
}

// Connect dials the server, waiting up to connectTimeout for the TCP
// handshake to finish.
func (t *Reliable) Connect(ctx context.Context) error {
	d := net.Dialer{Timeout: connectTimeout}
	conn, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w: %w", t.addr, err, ErrConnectionFailed)
	}
	t.conn = conn
	t.r = bufio.NewReader(conn)
	return nil
}

// Send encodes msg as one text-grammar line and writes it in full.
// Confirm is a no-op: the reliable binding relies on TCP's own delivery
// guarantee and never emits Confirm messages.
func (t *Reliable) Send(msg message.Message) error {
	if msg.Kind == message.KindConfirm {
		return nil
	}

	line, err := textcodec.Encode(msg)
	if err != nil {
		return err
	}

	if _, err := t.conn.Write([]byte(line)); err != nil {
		return fmt.Errorf("write: %w: %w", err, ErrConnectionFailed)
	}
	return nil
}

// Receive reads and decodes exactly one CRLF-terminated line. A small,
// explicitly scoped deviation from a strict "one syscall, one line"
// reading keeps this correct against servers that coalesce or split TCP
// segments arbitrarily: bufio.Reader buffers internally but still hands
// back exactly one decoded message per call.
func (t *Reliable) Receive() (message.Message, error) {
	line, err := t.r.ReadString('\n')
	if err != nil {
		return message.Message{}, fmt.Errorf("read: %w: %w", err, ErrConnectionFailed)
	}
	return textcodec.Decode(line)
}

// Disconnect half-closes both directions and releases the connection.
func (t *Reliable) Disconnect() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

// NextTimeout always reports NoTimeout: the reliable binding has no
// retransmission concept.
func (t *Reliable) NextTimeout() time.Duration {
	return NoTimeout
}
