package chunk

import (
	"encoding/binary"
	"io"
	"testing"
)

// appendChunk writes one 16-byte-preamble chunk (tag, subtag, payload)
// plus its 8-byte-alignment padding, the shape every test fixture in
// this module builds tracev3 byte streams from.
func appendChunk(buf []byte, tag Tag, subtag uint32, payload []byte) []byte {
	var hdr [16]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(tag))
	binary.LittleEndian.PutUint32(hdr[4:8], subtag)
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(len(payload)))
	buf = append(buf, hdr[:]...)
	buf = append(buf, payload...)
	if pad := len(buf) % alignment; pad != 0 {
		buf = append(buf, make([]byte, alignment-pad)...)
	}
	return buf
}

func TestFramerWalksMultipleChunks(t *testing.T) {
	var buf []byte
	buf = appendChunk(buf, TagFirehose, 0, []byte{1, 2, 3})
	buf = appendChunk(buf, TagOversize, 0, []byte{4, 5, 6, 7, 8})

	f := NewFramer(buf)
	c1, err := f.Next()
	if err != nil {
		t.Fatal(err)
	}
	if c1.Header.Tag != TagFirehose || len(c1.Payload) != 3 {
		t.Fatalf("chunk 1 = %+v", c1)
	}

	c2, err := f.Next()
	if err != nil {
		t.Fatal(err)
	}
	if c2.Header.Tag != TagOversize || len(c2.Payload) != 5 {
		t.Fatalf("chunk 2 = %+v", c2)
	}

	if _, err := f.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestFramerTruncatedPreamble(t *testing.T) {
	f := NewFramer([]byte{1, 2, 3})
	if _, err := f.Next(); err != ErrTruncatedPreamble {
		t.Fatalf("err = %v, want ErrTruncatedPreamble", err)
	}
}

func TestFramerBadChunkLength(t *testing.T) {
	var hdr [16]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(TagFirehose))
	binary.LittleEndian.PutUint64(hdr[8:16], 100) // declares far more than is present
	f := NewFramer(hdr[:])
	if _, err := f.Next(); err != ErrBadChunkLength {
		t.Fatalf("err = %v, want ErrBadChunkLength", err)
	}
}

func TestFramerSkipsUnknownTag(t *testing.T) {
	var buf []byte
	buf = appendChunk(buf, Tag(0xdead), 0, []byte{9, 9})
	buf = appendChunk(buf, TagFirehose, 0, []byte{1})

	f := NewFramer(buf)
	c1, err := f.Next()
	if err != nil {
		t.Fatal(err)
	}
	if c1.Header.Tag != Tag(0xdead) {
		t.Fatalf("framer is expected to still hand back unknown tags for the caller to skip, got %+v", c1)
	}
	c2, err := f.Next()
	if err != nil || c2.Header.Tag != TagFirehose {
		t.Fatalf("chunk after unknown tag = %+v, %v", c2, err)
	}
}
