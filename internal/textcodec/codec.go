// Package textcodec implements the TCP binding's CRLF-terminated text
// grammar: case-insensitive keyword prefixes, fields separated by literal
// keyword tokens, one complete message per line.
package textcodec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ipk24chat/client/internal/message"
	"github.com/ipk24chat/client/internal/wire"
)

// Sentinel errors for grammar failures (Section 4.4).
var (
	ErrConfirmNotEncodable = errors.New("confirm has no text-grammar encoding")
	ErrEmptyField          = errors.New("required field is empty")
	ErrMissingSeparator    = errors.New("missing expected separator")
	ErrUnknownKeyword      = errors.New("unrecognized keyword")
	ErrMalformedLine       = errors.New("malformed line")
)

const crlf = "\r\n"

// Encode renders msg as a single CRLF-terminated line. Confirm is not
// representable in the text grammar and is rejected.
func Encode(msg message.Message) (string, error) {
	switch msg.Kind {
	case message.KindConfirm:
		return "", fmt.Errorf("encode: %w", ErrConfirmNotEncodable)

	case message.KindAuth:
		if msg.Username == "" || msg.DisplayName == "" || msg.Secret == "" {
			return "", fmt.Errorf("encode auth: %w", ErrEmptyField)
		}
		return "AUTH " + msg.Username + " AS " + msg.DisplayName + " USING " + msg.Secret + crlf, nil

	case message.KindJoin:
		if msg.ChannelID == "" || msg.DisplayName == "" {
			return "", fmt.Errorf("encode join: %w", ErrEmptyField)
		}
		return "JOIN " + msg.ChannelID + " AS " + msg.DisplayName + crlf, nil

	case message.KindMsg:
		if msg.DisplayName == "" || msg.Content == "" {
			return "", fmt.Errorf("encode msg: %w", ErrEmptyField)
		}
		return "MSG FROM " + msg.DisplayName + " IS " + msg.Content + crlf, nil

	case message.KindErr:
		if msg.DisplayName == "" || msg.Content == "" {
			return "", fmt.Errorf("encode err: %w", ErrEmptyField)
		}
		return "ERR FROM " + msg.DisplayName + " IS " + msg.Content + crlf, nil

	case message.KindReply:
		if msg.Content == "" {
			return "", fmt.Errorf("encode reply: %w", ErrEmptyField)
		}
		verdict := "NOK"
		if msg.Success {
			verdict = "OK"
		}
		return "REPLY " + verdict + " IS " + msg.Content + crlf, nil

	case message.KindBye:
		return "BYE" + crlf, nil

	default:
		return "", fmt.Errorf("encode: kind %s: %w", msg.Kind, message.ErrUnknownKind)
	}
}

// Decode parses one complete line (with or without its trailing CRLF) into
// a Message. Keyword matching is case-insensitive; field values are taken
// verbatim from the line.
func Decode(line string) (message.Message, error) {
	var msg message.Message

	line = strings.TrimSuffix(line, "\r\n")
	line = strings.TrimSuffix(line, "\n")

	upper := strings.ToUpper(line)

	switch {
	case upper == "BYE":
		msg.Kind = message.KindBye
		return msg, nil

	case strings.HasPrefix(upper, "AUTH "):
		rest := line[len("AUTH "):]
		username, rest, err := cutKeyword(rest, " AS ")
		if err != nil {
			return msg, fmt.Errorf("decode auth: %w", err)
		}
		display, secret, err := cutKeyword(rest, " USING ")
		if err != nil {
			return msg, fmt.Errorf("decode auth: %w", err)
		}
		if username == "" || display == "" || secret == "" {
			return msg, fmt.Errorf("decode auth: %w", ErrEmptyField)
		}
		if err := wire.ValidateIdentifier(username); err != nil {
			return msg, fmt.Errorf("decode auth username: %w", err)
		}
		if err := wire.ValidateDisplayName(display); err != nil {
			return msg, fmt.Errorf("decode auth display name: %w", err)
		}
		if err := wire.ValidateSecret(secret); err != nil {
			return msg, fmt.Errorf("decode auth secret: %w", err)
		}
		msg.Kind = message.KindAuth
		msg.Username, msg.DisplayName, msg.Secret = username, display, secret
		return msg, nil

	case strings.HasPrefix(upper, "JOIN "):
		rest := line[len("JOIN "):]
		channel, display, err := cutKeyword(rest, " AS ")
		if err != nil {
			return msg, fmt.Errorf("decode join: %w", err)
		}
		if channel == "" || display == "" {
			return msg, fmt.Errorf("decode join: %w", ErrEmptyField)
		}
		if err := wire.ValidateIdentifier(channel); err != nil {
			return msg, fmt.Errorf("decode join channel: %w", err)
		}
		if err := wire.ValidateDisplayName(display); err != nil {
			return msg, fmt.Errorf("decode join display name: %w", err)
		}
		msg.Kind = message.KindJoin
		msg.ChannelID, msg.DisplayName = channel, display
		return msg, nil

	case strings.HasPrefix(upper, "MSG FROM "):
		rest := line[len("MSG FROM "):]
		display, content, err := cutKeyword(rest, " IS ")
		if err != nil {
			return msg, fmt.Errorf("decode msg: %w", err)
		}
		if display == "" || content == "" {
			return msg, fmt.Errorf("decode msg: %w", ErrEmptyField)
		}
		if err := wire.ValidateDisplayName(display); err != nil {
			return msg, fmt.Errorf("decode msg display name: %w", err)
		}
		if err := wire.ValidateMessageContent(content); err != nil {
			return msg, fmt.Errorf("decode msg content: %w", err)
		}
		msg.Kind = message.KindMsg
		msg.DisplayName, msg.Content = display, content
		return msg, nil

	case strings.HasPrefix(upper, "ERR FROM "):
		rest := line[len("ERR FROM "):]
		display, content, err := cutKeyword(rest, " IS ")
		if err != nil {
			return msg, fmt.Errorf("decode err: %w", err)
		}
		if display == "" || content == "" {
			return msg, fmt.Errorf("decode err: %w", ErrEmptyField)
		}
		if err := wire.ValidateDisplayName(display); err != nil {
			return msg, fmt.Errorf("decode err display name: %w", err)
		}
		if err := wire.ValidateMessageContent(content); err != nil {
			return msg, fmt.Errorf("decode err content: %w", err)
		}
		msg.Kind = message.KindErr
		msg.DisplayName, msg.Content = display, content
		return msg, nil

	case strings.HasPrefix(upper, "REPLY "):
		rest := line[len("REPLY "):]
		verdict, content, err := cutKeyword(rest, " IS ")
		if err != nil {
			return msg, fmt.Errorf("decode reply: %w", err)
		}
		var success bool
		switch strings.ToUpper(verdict) {
		case "OK":
			success = true
		case "NOK":
			success = false
		default:
			return msg, fmt.Errorf("decode reply: verdict %q: %w", verdict, ErrMalformedLine)
		}
		if content == "" {
			return msg, fmt.Errorf("decode reply: %w", ErrEmptyField)
		}
		if err := wire.ValidateMessageContent(content); err != nil {
			return msg, fmt.Errorf("decode reply content: %w", err)
		}
		msg.Kind = message.KindReply
		msg.Success = success
		msg.Content = content
		return msg, nil

	default:
		return msg, fmt.Errorf("decode: %w", ErrUnknownKeyword)
	}
}

// cutKeyword splits s on the first occurrence of sep (case-insensitive),
// returning the text before and after it.
func cutKeyword(s, sep string) (before, after string, err error) {
	idx := strings.Index(strings.ToUpper(s), strings.ToUpper(sep))
	if idx < 0 {
		return "", "", ErrMissingSeparator
	}
	return s[:idx], s[idx+len(sep):], nil
}
