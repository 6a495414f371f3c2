package dsc

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
)

func buildDsc(ranges []rangeEntry, uuids []uuidEntry, blob []byte) []byte {
	var buf bytes.Buffer
	var hdr [16]byte
	binary.LittleEndian.PutUint32(hdr[0:4], headerMagic)
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(ranges)))
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(len(uuids)))
	buf.Write(hdr[:])
	for _, r := range ranges {
		var b [16]byte
		binary.LittleEndian.PutUint32(b[0:4], r.start)
		binary.LittleEndian.PutUint32(b[4:8], r.size)
		binary.LittleEndian.PutUint32(b[8:12], r.uuidIndex)
		binary.LittleEndian.PutUint32(b[12:16], r.strOffset)
		buf.Write(b[:])
	}
	for _, u := range uuids {
		raw, _ := u.id.MarshalBinary()
		buf.Write(raw)
		var pathOff [4]byte
		buf.Write(pathOff[:])
		buf.WriteString(u.path)
		buf.WriteByte(0)
	}
	buf.Write(blob)
	return buf.Bytes()
}

func TestParseAndResolve(t *testing.T) {
	id1 := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	id2 := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	blob := []byte("first string\x00second string\x00")
	ranges := []rangeEntry{
		{start: 0, size: 13, uuidIndex: 0, strOffset: 0},
		{start: 13, size: 14, uuidIndex: 1, strOffset: 13},
	}
	uuids := []uuidEntry{
		{id: id1, path: "/usr/lib/dyld"},
		{id: id2, path: "/usr/lib/libSystem.dylib"},
	}
	buf := buildDsc(ranges, uuids, blob)

	d, err := Parse(buf)
	if err != nil {
		t.Fatal(err)
	}

	s, path, err := d.Resolve(0)
	if err != nil {
		t.Fatal(err)
	}
	if s != "first string" || path != "/usr/lib/dyld" {
		t.Fatalf("Resolve(0) = %q, %q", s, path)
	}

	s, path, err = d.Resolve(13)
	if err != nil {
		t.Fatal(err)
	}
	if s != "second string" || path != "/usr/lib/libSystem.dylib" {
		t.Fatalf("Resolve(13) = %q, %q", s, path)
	}

	if _, _, err := d.Resolve(999); err != ErrNotFound {
		t.Fatalf("Resolve(999) err = %v, want ErrNotFound", err)
	}

	gotID, ok := d.UUIDAt(1)
	if !ok || gotID != id2 {
		t.Fatalf("UUIDAt(1) = %s, %v", gotID, ok)
	}
	if _, ok := d.UUIDAt(5); ok {
		t.Fatal("UUIDAt(5) should be out of range")
	}

	offs := d.Offsets()
	if len(offs) != 2 || offs[0] != 0 || offs[1] != 13 {
		t.Fatalf("Offsets() = %v", offs)
	}
}

func TestParseBadMagic(t *testing.T) {
	buf := make([]byte, 16)
	if _, err := Parse(buf); err != ErrBadMagic {
		t.Fatalf("err = %v, want ErrBadMagic", err)
	}
}
