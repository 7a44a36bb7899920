package transport_test

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/ipk24chat/client/internal/message"
	"github.com/ipk24chat/client/internal/transport"
)

func listenUDP(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func serverPort(t *testing.T, conn *net.UDPConn) uint16 {
	t.Helper()
	_, portStr, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port %q: %v", portStr, err)
	}
	return uint16(port)
}

func TestDatagramSendReceiveAndRebind(t *testing.T) {
	t.Parallel()

	server := listenUDP(t)

	dg, err := transport.NewDatagram("127.0.0.1", serverPort(t, server))
	if err != nil {
		t.Fatalf("NewDatagram: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := dg.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer dg.Disconnect()

	if err := dg.Send(message.Bye(9)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	buf := make([]byte, 512)
	_, clientAddr, err := server.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("server ReadFromUDP: %v", err)
	}
	if buf[0] != byte(message.KindBye) {
		t.Errorf("server received kind tag 0x%02X, want BYE", buf[0])
	}

	// Reply from a second server socket on the same IP; the Datagram
	// transport should rebind its send target to this source port for
	// subsequent sends.
	rebound := listenUDP(t)
	reply := []byte{byte(message.KindConfirm), 0, 9}
	if _, err := rebound.WriteToUDP(reply, clientAddr); err != nil {
		t.Fatalf("server WriteToUDP: %v", err)
	}

	msg, err := dg.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if msg.Kind != message.KindConfirm || msg.ID != 9 {
		t.Errorf("Receive = %+v, want Confirm(9)", msg)
	}

	if err := dg.Send(message.Bye(10)); err != nil {
		t.Fatalf("second Send: %v", err)
	}
	if err := rebound.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	buf2 := make([]byte, 512)
	_, from2, err := rebound.ReadFromUDP(buf2)
	if err != nil {
		t.Fatalf("rebound server ReadFromUDP (send not rebound?): %v", err)
	}
	if buf2[0] != byte(message.KindBye) {
		t.Errorf("rebound server received kind tag 0x%02X, want BYE", buf2[0])
	}
	if from2.Port != clientAddr.Port {
		t.Errorf("second datagram came from client port %d, want %d", from2.Port, clientAddr.Port)
	}
}

func TestDatagramRejectsWrongSourceAddress(t *testing.T) {
	t.Parallel()

	server := listenUDP(t)
	// The source check compares IPs only (a different port from the server
	// IP is a legitimate rebind), so the impostor needs its own IP.
	impostor, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.2")})
	if err != nil {
		t.Fatalf("ListenUDP impostor: %v", err)
	}
	t.Cleanup(func() { _ = impostor.Close() })

	dg, err := transport.NewDatagram("127.0.0.1", serverPort(t, server))
	if err != nil {
		t.Fatalf("NewDatagram: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := dg.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer dg.Disconnect()

	// Learn dg's own local UDP address by sending it a datagram the real
	// server can observe the source address of.
	if err := dg.Send(message.Bye(1)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	buf := make([]byte, 512)
	_, clientAddr, err := server.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("server ReadFromUDP: %v", err)
	}

	reply := []byte{byte(message.KindConfirm), 0, 1}
	if _, err := impostor.WriteToUDP(reply, clientAddr); err != nil {
		t.Fatalf("impostor WriteToUDP: %v", err)
	}

	if _, err := dg.Receive(); err != transport.ErrWrongSourceAddress {
		t.Errorf("Receive error = %v, want ErrWrongSourceAddress", err)
	}
}

func TestNewDatagramUnresolvableHost(t *testing.T) {
	t.Parallel()

	if _, err := transport.NewDatagram("this-host-does-not-resolve.invalid", 4567); err == nil {
		t.Error("NewDatagram succeeded for an unresolvable host, want error")
	}
}
