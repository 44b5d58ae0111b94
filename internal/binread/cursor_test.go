package binread_test

import (
	"errors"
	"testing"

	"esparse/internal/binread"
)

func TestCursorReadsLittleEndianValues(t *testing.T) {
	buf := []byte{
		'T', 'E', 'S', '4',
		0x34, 0x12,
		0x78, 0x56, 0x34, 0x12,
		0x00, 0x00, 0x80, 0x3F,
	}
	c := binread.New(buf)

	tag, err := c.Tag()
	if err != nil || tag != "TES4" {
		t.Fatalf("Tag = %q, %v", tag, err)
	}
	u16, err := c.U16()
	if err != nil || u16 != 0x1234 {
		t.Fatalf("U16 = %#x, %v", u16, err)
	}
	u32, err := c.U32()
	if err != nil || u32 != 0x12345678 {
		t.Fatalf("U32 = %#x, %v", u32, err)
	}
	f, err := c.F32()
	if err != nil || f != 1.0 {
		t.Fatalf("F32 = %v, %v", f, err)
	}
	if !c.Done() {
		t.Fatalf("expected cursor at end, remaining %d", c.Remaining())
	}
}

func TestCursorOverrunLeavesOffsetUntouched(t *testing.T) {
	c := binread.New([]byte{1, 2, 3})
	if _, err := c.U8(); err != nil {
		t.Fatalf("U8: %v", err)
	}

	_, err := c.U32()
	if !errors.Is(err, binread.ErrOverrun) {
		t.Fatalf("expected ErrOverrun, got %v", err)
	}
	var overrun *binread.OverrunError
	if !errors.As(err, &overrun) {
		t.Fatalf("expected *OverrunError, got %T", err)
	}
	if overrun.Offset != 1 || overrun.Want != 4 || overrun.Have != 2 {
		t.Fatalf("unexpected overrun detail: %+v", overrun)
	}
	if c.Offset() != 1 {
		t.Fatalf("offset moved on failed read: %d", c.Offset())
	}
}

func TestCursorSliceAndSeek(t *testing.T) {
	c := binread.New([]byte("abcdef"))
	if err := c.Seek(2); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got, err := c.Slice(3)
	if err != nil || string(got) != "cde" {
		t.Fatalf("Slice = %q, %v", got, err)
	}
	if err := c.Seek(7); !errors.Is(err, binread.ErrOverrun) {
		t.Fatalf("expected overrun seeking past end, got %v", err)
	}
	if _, err := c.Slice(-1); !errors.Is(err, binread.ErrOverrun) {
		t.Fatalf("expected overrun for negative length, got %v", err)
	}
}
