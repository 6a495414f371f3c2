/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package breader provides little-endian, bounds-checked primitives for
// decoding the fixed-width and length-prefixed fields that make up the
// tracev3 container and its satellite files. Every read advances an
// internal cursor and returns io.ErrUnexpectedEOF rather than panicking
// when the underlying buffer is short.
package breader

import (
	"encoding/binary"
	"errors"
	"io"
)

var (
	// ErrNegativeLength is returned when a length-prefixed field declares
	// a negative or otherwise invalid size.
	ErrNegativeLength = errors.New("breader: negative or invalid length")
	// ErrOutOfRange is returned when a caller asks for an offset outside
	// the buffer's bounds.
	ErrOutOfRange = errors.New("breader: offset out of range")
)

// Cursor is a forward-only reader over a byte slice. It never mutates or
// copies the underlying buffer except when handing out sub-slices.
type Cursor struct {
	buf []byte
	off int
}

// NewCursor wraps buf for sequential decoding starting at offset 0.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Offset returns the current read position.
func (c *Cursor) Offset() int {
	return c.off
}

// Len returns the number of unread bytes remaining.
func (c *Cursor) Len() int {
	return len(c.buf) - c.off
}

// Bytes returns the unread remainder without advancing the cursor.
func (c *Cursor) Bytes() []byte {
	return c.buf[c.off:]
}

// Seek repositions the cursor to an absolute offset.
func (c *Cursor) Seek(off int) error {
	if off < 0 || off > len(c.buf) {
		return ErrOutOfRange
	}
	c.off = off
	return nil
}

// SeekEnd positions the cursor at the end of the buffer, used when
// trailing padding runs past EOF and should simply be treated as
// consumed.
func (c *Cursor) SeekEnd() {
	c.off = len(c.buf)
}

// Skip advances the cursor by n bytes without reading them.
func (c *Cursor) Skip(n int) error {
	if n < 0 || c.off+n > len(c.buf) {
		return io.ErrUnexpectedEOF
	}
	c.off += n
	return nil
}

// Take returns the next n bytes and advances the cursor. The returned
// slice aliases the original buffer.
func (c *Cursor) Take(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeLength
	}
	if c.off+n > len(c.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b, nil
}

// Uint8 reads a single byte.
func (c *Cursor) Uint8() (uint8, error) {
	b, err := c.Take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint16 reads a little-endian uint16.
func (c *Cursor) Uint16() (uint16, error) {
	b, err := c.Take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Uint32 reads a little-endian uint32.
func (c *Cursor) Uint32() (uint32, error) {
	b, err := c.Take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Uint64 reads a little-endian uint64.
func (c *Cursor) Uint64() (uint64, error) {
	b, err := c.Take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Int16 reads a little-endian int16.
func (c *Cursor) Int16() (int16, error) {
	v, err := c.Uint16()
	return int16(v), err
}

// Int32 reads a little-endian int32.
func (c *Cursor) Int32() (int32, error) {
	v, err := c.Uint32()
	return int32(v), err
}

// Int64 reads a little-endian int64.
func (c *Cursor) Int64() (int64, error) {
	v, err := c.Uint64()
	return int64(v), err
}

// UUID reads 16 raw bytes, the on-disk layout of every UUID field in the
// formats this package supports (big-endian byte order within the 16
// bytes themselves, per RFC 4122, regardless of the surrounding
// container's endianness).
func (c *Cursor) UUID() ([16]byte, error) {
	var id [16]byte
	b, err := c.Take(16)
	if err != nil {
		return id, err
	}
	copy(id[:], b)
	return id, nil
}

// CString reads bytes up to and including the next NUL terminator,
// returning the string without the terminator. Used for the owning-binary
// path footer in UUID text files and DSC UUID tables.
func (c *Cursor) CString() (string, error) {
	rest := c.Bytes()
	for i, b := range rest {
		if b == 0 {
			if err := c.Skip(i + 1); err != nil {
				return "", err
			}
			return string(rest[:i]), nil
		}
	}
	return "", io.ErrUnexpectedEOF
}

// AlignTo advances the cursor to the next multiple of n bytes measured
// from the start of the buffer, skipping any padding in between. Used
// after consuming a chunk's payload to reach the next 8-byte-aligned
// chunk preamble.
func (c *Cursor) AlignTo(n int) error {
	if n <= 0 {
		return nil
	}
	rem := c.off % n
	if rem == 0 {
		return nil
	}
	return c.Skip(n - rem)
}

// Sub returns a new Cursor over the next n bytes of this cursor without
// copying, advancing the parent cursor past them.
func (c *Cursor) Sub(n int) (*Cursor, error) {
	b, err := c.Take(n)
	if err != nil {
		return nil, err
	}
	return NewCursor(b), nil
}
