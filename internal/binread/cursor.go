package binread

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrOverrun reports a read past the end of the underlying buffer.
var ErrOverrun = errors.New("read past end of buffer")

// OverrunError describes a bounds violation at a specific offset.
type OverrunError struct {
	Offset int
	Want   int
	Have   int
}

func (e *OverrunError) Error() string {
	return fmt.Sprintf("read past end of buffer at offset %d: want %d bytes, have %d", e.Offset, e.Want, e.Have)
}

func (e *OverrunError) Is(target error) bool {
	return target == ErrOverrun
}

// Cursor reads little-endian values from a byte slice. Every read is bounds
// checked and leaves the offset untouched on failure.
type Cursor struct {
	buf []byte
	off int
}

// New returns a cursor positioned at the start of buf.
func New(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// NewAt returns a cursor positioned at offset.
func NewAt(buf []byte, offset int) *Cursor {
	c := &Cursor{buf: buf}
	if offset > 0 {
		c.off = min(offset, len(buf))
	}
	return c
}

func (c *Cursor) Offset() int { return c.off }

func (c *Cursor) Len() int { return len(c.buf) }

func (c *Cursor) Remaining() int { return len(c.buf) - c.off }

// Done reports whether the cursor sits at the end of the buffer.
func (c *Cursor) Done() bool { return c.off >= len(c.buf) }

// Seek moves the cursor to an absolute offset within the buffer.
func (c *Cursor) Seek(offset int) error {
	if offset < 0 || offset > len(c.buf) {
		return &OverrunError{Offset: offset, Want: 0, Have: len(c.buf) - offset}
	}
	c.off = offset
	return nil
}

func (c *Cursor) need(n int) error {
	if n < 0 || c.Remaining() < n {
		return &OverrunError{Offset: c.off, Want: n, Have: c.Remaining()}
	}
	return nil
}

// Peek returns the next n bytes without advancing.
func (c *Cursor) Peek(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	return c.buf[c.off : c.off+n], nil
}

// Slice returns the next n bytes and advances past them. The returned slice
// aliases the underlying buffer.
func (c *Cursor) Slice(n int) ([]byte, error) {
	b, err := c.Peek(n)
	if err != nil {
		return nil, err
	}
	c.off += n
	return b, nil
}

func (c *Cursor) Skip(n int) error {
	if err := c.need(n); err != nil {
		return err
	}
	c.off += n
	return nil
}

func (c *Cursor) U8() (uint8, error) {
	b, err := c.Slice(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Cursor) U16() (uint16, error) {
	b, err := c.Slice(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *Cursor) U32() (uint32, error) {
	b, err := c.Slice(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *Cursor) U64() (uint64, error) {
	b, err := c.Slice(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (c *Cursor) I32() (int32, error) {
	v, err := c.U32()
	return int32(v), err
}

func (c *Cursor) F32() (float32, error) {
	v, err := c.U32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// FixedString reads n bytes as a raw string.
func (c *Cursor) FixedString(n int) (string, error) {
	b, err := c.Slice(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Tag reads a 4-byte ASCII type tag.
func (c *Cursor) Tag() (string, error) {
	return c.FixedString(4)
}

// PeekTag returns the next 4-byte tag without advancing.
func (c *Cursor) PeekTag() (string, error) {
	b, err := c.Peek(4)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
