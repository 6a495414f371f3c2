package uuidtext

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildTable constructs a raw UUID-text file: header, N (start,size)
// entries, the concatenated string blob in entry order, then a
// NUL-terminated owning-binary path.
func buildTable(entries [][2]uint32, strs []string, path string) []byte {
	var buf bytes.Buffer
	var hdr [16]byte
	binary.LittleEndian.PutUint32(hdr[0:4], headerMagic)
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(entries)))
	buf.Write(hdr[:])
	for _, e := range entries {
		var b [8]byte
		binary.LittleEndian.PutUint32(b[0:4], e[0])
		binary.LittleEndian.PutUint32(b[4:8], e[1])
		buf.Write(b[:])
	}
	for _, s := range strs {
		buf.WriteString(s)
	}
	buf.WriteString(path)
	buf.WriteByte(0)
	return buf.Bytes()
}

func TestParseAndResolve(t *testing.T) {
	strs := []string{"hello %d\x00", "world %s\x00"}
	entries := [][2]uint32{{100, uint32(len(strs[0]))}, {200, uint32(len(strs[1]))}}
	buf := buildTable(entries, strs, "/usr/lib/libfoo.dylib")

	table, err := Parse(buf)
	if err != nil {
		t.Fatal(err)
	}
	if table.Path != "/usr/lib/libfoo.dylib" {
		t.Fatalf("Path = %q", table.Path)
	}

	s, err := table.Resolve(100)
	if err != nil {
		t.Fatal(err)
	}
	if s != "hello %d" {
		t.Fatalf("Resolve(100) = %q, want %q", s, "hello %d")
	}

	s, err = table.Resolve(200)
	if err != nil {
		t.Fatal(err)
	}
	if s != "world %s" {
		t.Fatalf("Resolve(200) = %q, want %q", s, "world %s")
	}

	if _, err := table.Resolve(50); err != ErrNotFound {
		t.Fatalf("Resolve(50) err = %v, want ErrNotFound", err)
	}

	offs := table.Offsets()
	if len(offs) != 2 || offs[0] != 100 || offs[1] != 200 {
		t.Fatalf("Offsets() = %v", offs)
	}
}

func TestParseBadMagic(t *testing.T) {
	buf := make([]byte, 16)
	if _, err := Parse(buf); err != ErrBadMagic {
		t.Fatalf("err = %v, want ErrBadMagic", err)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	strs := []string{"a format string\x00"}
	entries := [][2]uint32{{10, uint32(len(strs[0]))}}
	buf := buildTable(entries, strs, "/bin/foo")
	table, err := Parse(buf)
	if err != nil {
		t.Fatal(err)
	}
	a, err1 := table.Resolve(10)
	b, err2 := table.Resolve(10)
	if err1 != nil || err2 != nil || a != b {
		t.Fatalf("Resolve not idempotent: %q/%v vs %q/%v", a, err1, b, err2)
	}
}
