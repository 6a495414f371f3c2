package breader

import (
	"io"
	"testing"
)

func TestCursorPrimitives(t *testing.T) {
	buf := []byte{0x2a, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	c := NewCursor(buf)

	b, err := c.Uint8()
	if err != nil {
		t.Fatal(err)
	} else if b != 0x2a {
		t.Fatalf("uint8 = %x, want 0x2a", b)
	}

	u32, err := c.Uint32()
	if err != nil {
		t.Fatal(err)
	} else if u32 != 0x04030201 {
		t.Fatalf("uint32 = %x, want 0x04030201", u32)
	}

	u64, err := c.Uint64()
	if err == nil {
		t.Fatalf("expected truncation error, got %x", u64)
	}
}

func TestCursorTakeOutOfRange(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3})
	if _, err := c.Take(4); err != io.ErrUnexpectedEOF {
		t.Fatalf("Take(4) err = %v, want ErrUnexpectedEOF", err)
	}
	if _, err := c.Take(-1); err != ErrNegativeLength {
		t.Fatalf("Take(-1) err = %v, want ErrNegativeLength", err)
	}
}

func TestCursorCString(t *testing.T) {
	c := NewCursor([]byte("hello\x00world"))
	s, err := c.CString()
	if err != nil {
		t.Fatal(err)
	}
	if s != "hello" {
		t.Fatalf("CString = %q, want %q", s, "hello")
	}
	if c.Offset() != 6 {
		t.Fatalf("offset after CString = %d, want 6", c.Offset())
	}
	rest, err := c.Take(5)
	if err != nil || string(rest) != "world" {
		t.Fatalf("remaining bytes = %q, %v", rest, err)
	}
}

func TestCursorCStringUnterminated(t *testing.T) {
	c := NewCursor([]byte("no-terminator"))
	if _, err := c.CString(); err != io.ErrUnexpectedEOF {
		t.Fatalf("err = %v, want ErrUnexpectedEOF", err)
	}
}

func TestCursorAlignTo(t *testing.T) {
	c := NewCursor(make([]byte, 20))
	if _, err := c.Take(3); err != nil {
		t.Fatal(err)
	}
	if err := c.AlignTo(8); err != nil {
		t.Fatal(err)
	}
	if c.Offset() != 8 {
		t.Fatalf("offset after align = %d, want 8", c.Offset())
	}
	// already aligned: no-op
	if err := c.AlignTo(8); err != nil {
		t.Fatal(err)
	}
	if c.Offset() != 8 {
		t.Fatalf("offset after no-op align = %d, want 8", c.Offset())
	}
}

func TestCursorSub(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3, 4, 5, 6})
	sub, err := c.Sub(3)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Len() != 3 {
		t.Fatalf("sub.Len() = %d, want 3", sub.Len())
	}
	if c.Offset() != 3 {
		t.Fatalf("parent offset = %d, want 3", c.Offset())
	}
	b, _ := sub.Uint8()
	if b != 1 {
		t.Fatalf("sub first byte = %d, want 1", b)
	}
}

func TestCursorUUID(t *testing.T) {
	raw := make([]byte, 16)
	for i := range raw {
		raw[i] = byte(i)
	}
	c := NewCursor(raw)
	id, err := c.UUID()
	if err != nil {
		t.Fatal(err)
	}
	for i := range id {
		if id[i] != byte(i) {
			t.Fatalf("UUID byte %d = %x, want %x", i, id[i], i)
		}
	}
}
