package binarycodec_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/ipk24chat/client/internal/binarycodec"
	"github.com/ipk24chat/client/internal/message"
	"github.com/ipk24chat/client/internal/wire"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  message.Message
	}{
		{"confirm", message.Confirm(42)},
		{"bye", message.Bye(7)},
		{"reply success", message.Reply(1, true, 0, "Authentication successful")},
		{"reply failure", message.Reply(1, false, 0, "Authentication failed")},
		{"auth", message.Auth(0, "xnguye27", "Duy", "secret-123")},
		{"join", message.Join(2, "general", "Duy")},
		{"msg", message.Msg(3, "Duy", "hello there")},
		{"err", message.Err(4, "server", "malformed payload")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf wire.Buffer
			n, err := binarycodec.Encode(&buf, tc.msg)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}

			got, err := binarycodec.Decode(buf.Bytes()[:n])
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}

			if got != tc.msg {
				t.Fatalf("round trip mismatch: got %+v, want %+v", got, tc.msg)
			}
		})
	}
}

func TestDecodeTooShort(t *testing.T) {
	t.Parallel()

	_, err := binarycodec.Decode([]byte{0x00, 0x01})
	if !errors.Is(err, binarycodec.ErrFrameTooShort) {
		t.Fatalf("expected ErrFrameTooShort, got %v", err)
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	t.Parallel()

	_, err := binarycodec.Decode([]byte{0x77, 0x00, 0x01})
	if !errors.Is(err, message.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestDecodeTrailingBytes(t *testing.T) {
	t.Parallel()

	// Bye frame with trailing junk bytes is rejected.
	_, err := binarycodec.Decode([]byte{0xFF, 0x00, 0x01, 0x02})
	if !errors.Is(err, binarycodec.ErrTrailingBytes) {
		t.Fatalf("expected ErrTrailingBytes, got %v", err)
	}
}

func TestDecodeInvalidResultByte(t *testing.T) {
	t.Parallel()

	frame := []byte{0x01, 0x00, 0x01, 0x02, 0x00, 0x00, 0x00}
	_, err := binarycodec.Decode(frame)
	if !errors.Is(err, binarycodec.ErrInvalidResult) {
		t.Fatalf("expected ErrInvalidResult, got %v", err)
	}
}

func TestDecodeRejectsInvalidFields(t *testing.T) {
	t.Parallel()

	frame := func(kind byte, fields ...string) []byte {
		b := []byte{kind, 0x00, 0x01}
		for _, f := range fields {
			b = append(b, []byte(f)...)
			b = append(b, 0x00)
		}
		return b
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"auth username with invalid char", frame(0x02, "al ice", "Duy", "secret-123")},
		{"auth display name over limit", frame(0x02, "xnguye27", strings.Repeat("a", 21), "secret-123")},
		{"join channel with invalid char", frame(0x03, "gene!ral", "Duy")},
		{"msg display name with space", frame(0x04, "Du y", "hello")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := binarycodec.Decode(tc.data)
			if !errors.Is(err, wire.ErrInvalidInput) {
				t.Fatalf("expected wire.ErrInvalidInput, got %v", err)
			}
		})
	}
}
