// Package message defines the IPK24-CHAT message model shared by the text
// and binary codecs: the message Kind tags, the Go-side representation of
// each message, and the size limits of the field types (their
// character-class checks live in package wire).
package message

import (
	"errors"
	"fmt"
)

// Field size limits (protocol Section 3 / Data Model).
const (
	MaxIdentifierLen     = 20
	MaxSecretLen          = 128
	MaxDisplayNameLen     = 20
	MaxMessageContentLen  = 1400
)

// Kind identifies the wire message type. Values match the UDP binary frame
// tag byte exactly; the TCP text grammar maps onto the same set.
type Kind uint8

const (
	KindConfirm Kind = 0x00
	KindReply   Kind = 0x01
	KindAuth    Kind = 0x02
	KindJoin    Kind = 0x03
	KindMsg     Kind = 0x04
	KindErr     Kind = 0xFE
	KindBye     Kind = 0xFF
)

var kindNames = map[Kind]string{
	KindConfirm: "CONFIRM",
	KindReply:   "REPLY",
	KindAuth:    "AUTH",
	KindJoin:    "JOIN",
	KindMsg:     "MSG",
	KindErr:     "ERR",
	KindBye:     "BYE",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%02X)", uint8(k))
}

// ErrUnknownKind is returned by codecs when a tag byte or line prefix does
// not match any known message kind.
var ErrUnknownKind = errors.New("unknown message kind")

// ID is the 16-bit message identifier carried in every binary (UDP) frame.
// The text (TCP) grammar carries no ID for any kind.
type ID = uint16

// Message is the decoded, transport-independent representation of a single
// protocol message. Only the fields relevant to Kind are populated; callers
// must not read fields outside the kind's payload.
type Message struct {
	Kind Kind
	ID   ID

	// Reply
	Success      bool
	RefMessageID ID

	// Auth
	Username    string
	DisplayName string
	Secret      string

	// Join
	ChannelID string

	// Msg / Err also use DisplayName above.
	Content string
}

// Confirm builds a Confirm message acknowledging refID.
func Confirm(refID ID) Message {
	return Message{Kind: KindConfirm, ID: refID}
}

// Reply builds a Reply message.
func Reply(id ID, success bool, refID ID, content string) Message {
	return Message{Kind: KindReply, ID: id, Success: success, RefMessageID: refID, Content: content}
}

// Auth builds an Auth message.
func Auth(id ID, username, displayName, secret string) Message {
	return Message{Kind: KindAuth, ID: id, Username: username, DisplayName: displayName, Secret: secret}
}

// Join builds a Join message.
func Join(id ID, channelID, displayName string) Message {
	return Message{Kind: KindJoin, ID: id, ChannelID: channelID, DisplayName: displayName}
}

// Msg builds a chat Msg message.
func Msg(id ID, displayName, content string) Message {
	return Message{Kind: KindMsg, ID: id, DisplayName: displayName, Content: content}
}

// Err builds an Err message.
func Err(id ID, displayName, content string) Message {
	return Message{Kind: KindErr, ID: id, DisplayName: displayName, Content: content}
}

// Bye builds a Bye message.
func Bye(id ID) Message {
	return Message{Kind: KindBye, ID: id}
}
