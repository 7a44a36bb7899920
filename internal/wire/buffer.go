// Package wire provides the low-level building blocks shared by both codecs:
// a fixed-capacity byte buffer, field validators for the protocol's
// character-class-constrained string fields, and the duplicate message-ID
// set used by the UDP binding.
package wire

import (
	"errors"
	"fmt"
)

// MaxFrameSize is the largest frame either binding needs to hold: a Msg or
// Err payload carries up to MaxMessageContentLen bytes of content plus a
// display name, kind tag and ID, with headroom for the text grammar's
// keyword and CRLF overhead.
const MaxFrameSize = 1501

// ErrBufferOverflow is returned when an append would exceed the buffer's
// fixed capacity (Section 4.1).
var ErrBufferOverflow = errors.New("buffer overflow")

// Buffer is a fixed-capacity, reusable byte buffer. It never grows past
// MaxFrameSize; every append is checked and returns ErrBufferOverflow
// instead of allocating. A Buffer is a plain value that is reused by
// calling Reset (binarycodec.Encode does this before every frame).
type Buffer struct {
	data [MaxFrameSize]byte
	len  int
	off  int // logical start; bytes before off are already consumed
}

// Reset clears the buffer to empty, ready for reuse.
func (b *Buffer) Reset() {
	b.len = 0
	b.off = 0
}

// Len returns the number of unconsumed bytes.
func (b *Buffer) Len() int { return b.len - b.off }

// Bytes returns the unconsumed portion of the buffer. The returned slice
// aliases the buffer's backing array and is only valid until the next
// mutation.
func (b *Buffer) Bytes() []byte { return b.data[b.off:b.len] }

// AppendByte appends a single byte.
func (b *Buffer) AppendByte(c byte) error {
	if b.len >= MaxFrameSize {
		return fmt.Errorf("append byte: %w", ErrBufferOverflow)
	}
	b.data[b.len] = c
	b.len++
	return nil
}

// AppendBytes appends p in full or returns ErrBufferOverflow without
// writing any of it.
func (b *Buffer) AppendBytes(p []byte) error {
	if b.len+len(p) > MaxFrameSize {
		return fmt.Errorf("append %d bytes: %w", len(p), ErrBufferOverflow)
	}
	copy(b.data[b.len:], p)
	b.len += len(p)
	return nil
}

// AppendString appends s in full or returns ErrBufferOverflow.
func (b *Buffer) AppendString(s string) error {
	return b.AppendBytes([]byte(s))
}

// AppendCString appends s followed by a single NUL terminator, as required
// by every variable-length field in the binary frame layout.
func (b *Buffer) AppendCString(s string) error {
	if err := b.AppendString(s); err != nil {
		return err
	}
	return b.AppendByte(0)
}

// SkipFirst advances the logical start of the buffer by n bytes, as if
// those bytes had been consumed by a reader. It does not move any memory.
func (b *Buffer) SkipFirst(n int) error {
	if b.off+n > b.len {
		return fmt.Errorf("skip %d bytes: %w", n, ErrBufferOverflow)
	}
	b.off += n
	return nil
}

// TrimTrailing removes n bytes from the logical end of the buffer.
func (b *Buffer) TrimTrailing(n int) error {
	if b.len-n < b.off {
		return fmt.Errorf("trim %d bytes: %w", n, ErrBufferOverflow)
	}
	b.len -= n
	return nil
}
