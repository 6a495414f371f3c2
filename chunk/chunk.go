/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package chunk implements the tracev3 chunk framer: it walks a
// tracev3 byte stream by 16-byte chunk preambles and returns every
// chunk, unknown tags included; dispatching payloads to their typed
// parsers and skipping unknown tags is left to the caller.
package chunk

import (
	"errors"
	"io"

	"github.com/gravwell/unifiedlog/breader"
)

// Tag identifies the kind of chunk.
type Tag uint32

const (
	TagHeader    Tag = 0x1000
	TagCatalog   Tag = 0x600b
	TagChunkset  Tag = 0x600d
	TagFirehose  Tag = 0x6001
	TagOversize  Tag = 0x6002
	TagStatedump Tag = 0x6003
	TagSimpledump Tag = 0x6004
)

const (
	preambleSize = 16
	alignment    = 8
)

var (
	// ErrTruncatedPreamble means the stream ended mid 16-byte preamble: fatal, terminate the file.
	ErrTruncatedPreamble = errors.New("chunk: truncated preamble")
	// ErrBadChunkLength means a chunk's declared length exceeds the remaining bytes: fatal, terminate the file.
	ErrBadChunkLength = errors.New("chunk: declared length exceeds remaining data")
)

// Header is the decoded 16-byte chunk preamble.
type Header struct {
	Tag     Tag
	Subtag  uint32
	Length  uint64
}

// Chunk is one framed chunk: its header and payload bytes (exactly
// Header.Length bytes, padding already skipped by the framer).
type Chunk struct {
	Header  Header
	Payload []byte
}

// Framer iterates a tracev3 byte buffer chunk by chunk.
type Framer struct {
	c *breader.Cursor
}

// NewFramer wraps the full contents of one tracev3 file.
func NewFramer(buf []byte) *Framer {
	return &Framer{c: breader.NewCursor(buf)}
}

// Next returns the next chunk, io.EOF when the stream is exhausted (only
// valid exactly at a preamble boundary), or a fatal framing error when
// the preamble is truncated or its declared length overruns the buffer.
func (f *Framer) Next() (Chunk, error) {
	if f.c.Len() == 0 {
		return Chunk{}, io.EOF
	}
	if f.c.Len() < preambleSize {
		return Chunk{}, ErrTruncatedPreamble
	}

	tag, err := f.c.Uint32()
	if err != nil {
		return Chunk{}, ErrTruncatedPreamble
	}
	subtag, err := f.c.Uint32()
	if err != nil {
		return Chunk{}, ErrTruncatedPreamble
	}
	length, err := f.c.Uint64()
	if err != nil {
		return Chunk{}, ErrTruncatedPreamble
	}

	if uint64(f.c.Len()) < length {
		return Chunk{}, ErrBadChunkLength
	}
	payload, err := f.c.Take(int(length))
	if err != nil {
		return Chunk{}, ErrBadChunkLength
	}

	if err := f.c.AlignTo(alignment); err != nil {
		// trailing padding past EOF is tolerated; only an in-bounds
		// overrun is fatal
		f.c.SeekEnd()
	}

	return Chunk{
		Header: Header{Tag: Tag(tag), Subtag: subtag, Length: length},
		Payload: payload,
	}, nil
}
