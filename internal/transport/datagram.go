package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/ipk24chat/client/internal/binarycodec"
	"github.com/ipk24chat/client/internal/message"
	"github.com/ipk24chat/client/internal/wire"
)

// Datagram is the UDP binding: fixed binary frames, server-port
// rebinding on first reply, and a silently-dropped WrongSourceAddress
// check on every receive.
type Datagram struct {
	conn     *net.UDPConn
	serverIP net.IP

	// current is the address every Send targets. It starts at the
	// configured (serverIP, serverPort) and is rebound to the source port
	// of the first datagram actually received from serverIP.
	current *net.UDPAddr
	rebound bool

	buf wire.Buffer
}

// NewDatagram returns a Datagram transport targeting host:port.
func NewDatagram(host string, port uint16) (*Datagram, error) {
	ips, err := net.LookupIP(host)
	if err != nil || len(ips) == 0 {
		return nil, fmt.Errorf("resolve %s: %w: %w", host, err, ErrConnectionFailed)
	}
	ip := ips[0]
	return &Datagram{
		serverIP: ip,
		current:  &net.UDPAddr{IP: ip, Port: int(port)},
	}, nil
}

// Connect opens the local UDP socket. No handshake with the server takes
// place: UDP is connectionless.
func (t *Datagram) Connect(ctx context.Context) error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return fmt.Errorf("listen: %w: %w", err, ErrConnectionFailed)
	}
	t.conn = conn
	return nil
}

// Send encodes msg as a binary frame and sends it to the currently-known
// server endpoint (the original configured address until rebinding
// happens, the rebound source port afterward).
func (t *Datagram) Send(msg message.Message) error {
	n, err := binarycodec.Encode(&t.buf, msg)
	if err != nil {
		return err
	}
	if _, err := t.conn.WriteToUDP(t.buf.Bytes()[:n], t.current); err != nil {
		return fmt.Errorf("write to %s: %w: %w", t.current, err, ErrConnectionFailed)
	}
	return nil
}

// Receive waits for the next datagram. A datagram whose source IP does
// not match the configured server IP is rejected with
// ErrWrongSourceAddress; callers must ignore this error and call Receive
// again. On the first datagram actually accepted, the server's reply port
// replaces the target port for all subsequent sends.
func (t *Datagram) Receive() (message.Message, error) {
	raw := make([]byte, wire.MaxFrameSize)
	n, from, err := t.conn.ReadFromUDP(raw)
	if err != nil {
		return message.Message{}, fmt.Errorf("read: %w: %w", err, ErrConnectionFailed)
	}

	if !from.IP.Equal(t.serverIP) {
		return message.Message{}, ErrWrongSourceAddress
	}

	if !t.rebound {
		t.current = from
		t.rebound = true
	}

	return binarycodec.Decode(raw[:n])
}

// Disconnect releases the local socket. There is no remote state to tear
// down on a connectionless transport.
func (t *Datagram) Disconnect() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
