package wire

import (
	"errors"
	"fmt"

	"github.com/ipk24chat/client/internal/message"
)

// ErrInvalidInput is the sentinel wrapped by every field-validation failure.
var ErrInvalidInput = errors.New("invalid input")

func isIDChar(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-'
}

// isPrintableNoSpace reports whether c is a "printable" character as used
// for display names: visible ASCII excluding space.
func isPrintableNoSpace(c byte) bool {
	return c >= 0x21 && c <= 0x7E
}

// isPrintableWithSpace allows the above plus the space character, for
// message content.
func isPrintableWithSpace(c byte) bool {
	return c == ' ' || isPrintableNoSpace(c)
}

func validateClass(s string, maxLen int, allowed func(byte) bool, field string) error {
	if len(s) < 1 || len(s) > maxLen {
		return fmt.Errorf("%s: length %d out of range [1,%d]: %w", field, len(s), maxLen, ErrInvalidInput)
	}
	for i := 0; i < len(s); i++ {
		if !allowed(s[i]) {
			return fmt.Errorf("%s: invalid character %q at offset %d: %w", field, s[i], i, ErrInvalidInput)
		}
	}
	return nil
}

// ValidateIdentifier checks a Username or ChannelID value: 1-20 bytes of
// [A-Za-z0-9-].
func ValidateIdentifier(s string) error {
	return validateClass(s, message.MaxIdentifierLen, isIDChar, "identifier")
}

// ValidateSecret checks a Secret value: 1-128 bytes of [A-Za-z0-9-].
func ValidateSecret(s string) error {
	return validateClass(s, message.MaxSecretLen, isIDChar, "secret")
}

// ValidateDisplayName checks a DisplayName value: 1-20 printable bytes,
// no space.
func ValidateDisplayName(s string) error {
	return validateClass(s, message.MaxDisplayNameLen, isPrintableNoSpace, "display name")
}

// ValidateMessageContent checks a MessageContent value: 1-1400 printable
// bytes, space allowed.
func ValidateMessageContent(s string) error {
	return validateClass(s, message.MaxMessageContentLen, isPrintableWithSpace, "message content")
}
