// Package binarycodec implements the UDP binding's binary frame encoding:
// a 1-byte kind tag, a 2-byte big-endian message ID, and per-kind fields
// with NUL-terminated variable-length strings.
package binarycodec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ipk24chat/client/internal/message"
	"github.com/ipk24chat/client/internal/wire"
)

// HeaderSize is the fixed 1-byte kind tag + 2-byte message ID header
// present on every frame.
const HeaderSize = 3

// Sentinel errors for frame decoding failures.
var (
	ErrFrameTooShort     = errors.New("frame shorter than header")
	ErrMissingTerminator = errors.New("string field missing NUL terminator")
	ErrTrailingBytes     = errors.New("trailing bytes after decoded fields")
	ErrInvalidResult     = errors.New("reply result byte neither 0 nor 1")
)

// Encode serializes msg into buf, returning the number of bytes written.
// buf is reset before use.
func Encode(buf *wire.Buffer, msg message.Message) (int, error) {
	buf.Reset()

	if err := buf.AppendByte(byte(msg.Kind)); err != nil {
		return 0, err
	}
	if err := buf.AppendByte(byte(msg.ID >> 8)); err != nil {
		return 0, err
	}
	if err := buf.AppendByte(byte(msg.ID)); err != nil {
		return 0, err
	}

	switch msg.Kind {
	case message.KindConfirm, message.KindBye:
		// No payload beyond the header.

	case message.KindReply:
		result := byte(0)
		if msg.Success {
			result = 1
		}
		if err := buf.AppendByte(result); err != nil {
			return 0, err
		}
		if err := buf.AppendByte(byte(msg.RefMessageID >> 8)); err != nil {
			return 0, err
		}
		if err := buf.AppendByte(byte(msg.RefMessageID)); err != nil {
			return 0, err
		}
		if err := buf.AppendCString(msg.Content); err != nil {
			return 0, err
		}

	case message.KindAuth:
		if err := buf.AppendCString(msg.Username); err != nil {
			return 0, err
		}
		if err := buf.AppendCString(msg.DisplayName); err != nil {
			return 0, err
		}
		if err := buf.AppendCString(msg.Secret); err != nil {
			return 0, err
		}

	case message.KindJoin:
		if err := buf.AppendCString(msg.ChannelID); err != nil {
			return 0, err
		}
		if err := buf.AppendCString(msg.DisplayName); err != nil {
			return 0, err
		}

	case message.KindMsg, message.KindErr:
		if err := buf.AppendCString(msg.DisplayName); err != nil {
			return 0, err
		}
		if err := buf.AppendCString(msg.Content); err != nil {
			return 0, err
		}

	default:
		return 0, fmt.Errorf("encode: kind %s: %w", msg.Kind, message.ErrUnknownKind)
	}

	return buf.Len(), nil
}

// Decode parses a single binary frame from data. data must contain exactly
// one frame: any bytes left over after the kind's fields are fully
// consumed are a hard error, matching the protocol's whole-message
// decoding rule (no progressive/streaming decode of UDP datagrams).
func Decode(data []byte) (message.Message, error) {
	var msg message.Message

	var buf wire.Buffer
	if err := buf.AppendBytes(data); err != nil {
		return msg, fmt.Errorf("decode: %w", err)
	}

	if buf.Len() < HeaderSize {
		return msg, fmt.Errorf("decode: %d bytes: %w", buf.Len(), ErrFrameTooShort)
	}
	header := buf.Bytes()[:HeaderSize]
	kind := message.Kind(header[0])
	msg.Kind = kind
	msg.ID = binary.BigEndian.Uint16(header[1:3])
	if err := buf.SkipFirst(HeaderSize); err != nil {
		return msg, err
	}

	switch kind {
	case message.KindConfirm, message.KindBye:
		if buf.Len() != 0 {
			return msg, fmt.Errorf("decode %s: %w", kind, ErrTrailingBytes)
		}

	case message.KindReply:
		if buf.Len() < 3 {
			return msg, fmt.Errorf("decode reply: %w", ErrFrameTooShort)
		}
		rest := buf.Bytes()
		switch rest[0] {
		case 0:
			msg.Success = false
		case 1:
			msg.Success = true
		default:
			return msg, fmt.Errorf("decode reply: %w", ErrInvalidResult)
		}
		msg.RefMessageID = binary.BigEndian.Uint16(rest[1:3])
		if err := buf.SkipFirst(3); err != nil {
			return msg, err
		}
		content, n, err := readCString(buf.Bytes())
		if err != nil {
			return msg, fmt.Errorf("decode reply content: %w", err)
		}
		if err := wire.ValidateMessageContent(content); err != nil {
			return msg, fmt.Errorf("decode reply content: %w", err)
		}
		msg.Content = content
		if err := buf.SkipFirst(n); err != nil {
			return msg, err
		}
		if err := checkExhausted(buf.Bytes(), kind); err != nil {
			return msg, err
		}

	case message.KindAuth:
		username, n1, err := readCString(buf.Bytes())
		if err != nil {
			return msg, fmt.Errorf("decode auth username: %w", err)
		}
		if err := wire.ValidateIdentifier(username); err != nil {
			return msg, fmt.Errorf("decode auth username: %w", err)
		}
		if err := buf.SkipFirst(n1); err != nil {
			return msg, err
		}
		display, n2, err := readCString(buf.Bytes())
		if err != nil {
			return msg, fmt.Errorf("decode auth display name: %w", err)
		}
		if err := wire.ValidateDisplayName(display); err != nil {
			return msg, fmt.Errorf("decode auth display name: %w", err)
		}
		if err := buf.SkipFirst(n2); err != nil {
			return msg, err
		}
		secret, n3, err := readCString(buf.Bytes())
		if err != nil {
			return msg, fmt.Errorf("decode auth secret: %w", err)
		}
		if err := wire.ValidateSecret(secret); err != nil {
			return msg, fmt.Errorf("decode auth secret: %w", err)
		}
		msg.Username, msg.DisplayName, msg.Secret = username, display, secret
		if err := buf.SkipFirst(n3); err != nil {
			return msg, err
		}
		if err := checkExhausted(buf.Bytes(), kind); err != nil {
			return msg, err
		}

	case message.KindJoin:
		channel, n1, err := readCString(buf.Bytes())
		if err != nil {
			return msg, fmt.Errorf("decode join channel: %w", err)
		}
		if err := wire.ValidateIdentifier(channel); err != nil {
			return msg, fmt.Errorf("decode join channel: %w", err)
		}
		if err := buf.SkipFirst(n1); err != nil {
			return msg, err
		}
		display, n2, err := readCString(buf.Bytes())
		if err != nil {
			return msg, fmt.Errorf("decode join display name: %w", err)
		}
		if err := wire.ValidateDisplayName(display); err != nil {
			return msg, fmt.Errorf("decode join display name: %w", err)
		}
		msg.ChannelID, msg.DisplayName = channel, display
		if err := buf.SkipFirst(n2); err != nil {
			return msg, err
		}
		if err := checkExhausted(buf.Bytes(), kind); err != nil {
			return msg, err
		}

	case message.KindMsg, message.KindErr:
		display, n1, err := readCString(buf.Bytes())
		if err != nil {
			return msg, fmt.Errorf("decode %s display name: %w", kind, err)
		}
		if err := wire.ValidateDisplayName(display); err != nil {
			return msg, fmt.Errorf("decode %s display name: %w", kind, err)
		}
		if err := buf.SkipFirst(n1); err != nil {
			return msg, err
		}
		content, n2, err := readCString(buf.Bytes())
		if err != nil {
			return msg, fmt.Errorf("decode %s content: %w", kind, err)
		}
		if err := wire.ValidateMessageContent(content); err != nil {
			return msg, fmt.Errorf("decode %s content: %w", kind, err)
		}
		msg.DisplayName, msg.Content = display, content
		if err := buf.SkipFirst(n2); err != nil {
			return msg, err
		}
		if err := checkExhausted(buf.Bytes(), kind); err != nil {
			return msg, err
		}

	default:
		return msg, fmt.Errorf("decode: tag 0x%02X: %w", data[0], message.ErrUnknownKind)
	}

	return msg, nil
}

// readCString reads bytes up to and including the first NUL terminator,
// returning the string (without the terminator) and the number of bytes
// consumed including the terminator.
func readCString(b []byte) (string, int, error) {
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), i + 1, nil
		}
	}
	return "", 0, ErrMissingTerminator
}

func checkExhausted(rest []byte, kind message.Kind) error {
	if len(rest) != 0 {
		return fmt.Errorf("decode %s: %d trailing bytes: %w", kind, len(rest), ErrTrailingBytes)
	}
	return nil
}
