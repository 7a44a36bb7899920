// Package command parses one terminal input line into either a chat
// message or a slash command, per the grammar in Section 4.9.
package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ipk24chat/client/internal/wire"
)

// MaxLineLen bounds an input line including its terminator (Section 4.9).
const MaxLineLen = 1500

// Type identifies what kind of line was parsed.
type Type int

const (
	TypeNone Type = iota // a plain chat message
	TypeAuth
	TypeJoin
	TypeRename
	TypeHelp
	TypeClear
	TypeExit
)

// ErrInvalidInput is returned for wrong arity, field-class violations, or
// an unrecognized command keyword.
var ErrInvalidInput = errors.New("invalid input")

// HelpText is printed for /help.
const HelpText = `Available commands:
  /auth <username> <display_name> <secret>  authenticate with the server
  /join <channel_id>                        join a channel
  /rename <display_name>                    change your local display name
  /help                                      show this message
  /clear                                     clear the terminal
  /exit                                      leave the conversation
Any other input is sent as a chat message.`

// Command is the parsed result of one input line.
type Command struct {
	Type Type

	// TypeAuth
	Username    string
	Secret      string
	DisplayName string

	// TypeJoin
	ChannelID string

	// TypeRename also uses DisplayName above.

	// TypeNone
	Content string
}

var keywordTrie = buildKeywordTrie()

func buildKeywordTrie() *trie {
	t := newTrie()
	t.insert("auth", TypeAuth)
	t.insert("join", TypeJoin)
	t.insert("rename", TypeRename)
	t.insert("help", TypeHelp)
	t.insert("clear", TypeClear)
	t.insert("exit", TypeExit)
	return t
}

// Parse reads one input line (already stripped of its trailing newline)
// and returns the Command it denotes.
func Parse(line string) (Command, error) {
	if len(line)+1 > MaxLineLen {
		return Command{}, fmt.Errorf("line length %d plus terminator exceeds %d: %w", len(line), MaxLineLen, ErrInvalidInput)
	}

	trimmed := strings.Trim(line, " ")
	if trimmed == "" {
		return Command{}, fmt.Errorf("empty line: %w", ErrInvalidInput)
	}

	if !strings.HasPrefix(trimmed, "/") {
		if err := wire.ValidateMessageContent(trimmed); err != nil {
			return Command{}, fmt.Errorf("chat message: %w", ErrInvalidInput)
		}
		return Command{Type: TypeNone, Content: trimmed}, nil
	}

	fields := strings.Fields(trimmed[1:])
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command: %w", ErrInvalidInput)
	}

	keyword := strings.ToLower(fields[0])
	typ, ok := keywordTrie.matchPrefix(keyword)
	if !ok || typ == TypeNone {
		return Command{}, fmt.Errorf("unknown command %q: %w", fields[0], ErrInvalidInput)
	}
	args := fields[1:]

	switch typ {
	case TypeAuth:
		if len(args) != 3 {
			return Command{}, fmt.Errorf("/auth wants 3 arguments, got %d: %w", len(args), ErrInvalidInput)
		}
		if err := wire.ValidateIdentifier(args[0]); err != nil {
			return Command{}, fmt.Errorf("/auth username: %w", ErrInvalidInput)
		}
		if err := wire.ValidateDisplayName(args[1]); err != nil {
			return Command{}, fmt.Errorf("/auth display name: %w", ErrInvalidInput)
		}
		if err := wire.ValidateSecret(args[2]); err != nil {
			return Command{}, fmt.Errorf("/auth secret: %w", ErrInvalidInput)
		}
		return Command{Type: TypeAuth, Username: args[0], DisplayName: args[1], Secret: args[2]}, nil

	case TypeJoin:
		if len(args) != 1 {
			return Command{}, fmt.Errorf("/join wants 1 argument, got %d: %w", len(args), ErrInvalidInput)
		}
		if err := wire.ValidateIdentifier(args[0]); err != nil {
			return Command{}, fmt.Errorf("/join channel id: %w", ErrInvalidInput)
		}
		return Command{Type: TypeJoin, ChannelID: args[0]}, nil

	case TypeRename:
		if len(args) != 1 {
			return Command{}, fmt.Errorf("/rename wants 1 argument, got %d: %w", len(args), ErrInvalidInput)
		}
		if err := wire.ValidateDisplayName(args[0]); err != nil {
			return Command{}, fmt.Errorf("/rename display name: %w", ErrInvalidInput)
		}
		return Command{Type: TypeRename, DisplayName: args[0]}, nil

	case TypeHelp, TypeClear, TypeExit:
		if len(args) != 0 {
			return Command{}, fmt.Errorf("%q takes no arguments: %w", fields[0], ErrInvalidInput)
		}
		return Command{Type: typ}, nil

	default:
		return Command{}, fmt.Errorf("unhandled command type: %w", ErrInvalidInput)
	}
}
