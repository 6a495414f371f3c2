package pipeline

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/gravwell/unifiedlog/dsc"
	"github.com/gravwell/unifiedlog/oversize"
	"github.com/gravwell/unifiedlog/record"
	"github.com/gravwell/unifiedlog/timesync"
	"github.com/gravwell/unifiedlog/uuidtext"
)

func put16(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }
func put32(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }
func put64(v uint64) []byte { b := make([]byte, 8); binary.LittleEndian.PutUint64(b, v); return b }

func appendChunk(buf []byte, tag uint32, payload []byte) []byte {
	var hdr [16]byte
	binary.LittleEndian.PutUint32(hdr[0:4], tag)
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(len(payload)))
	buf = append(buf, hdr[:]...)
	buf = append(buf, payload...)
	if pad := len(buf) % 8; pad != 0 {
		buf = append(buf, make([]byte, 8-pad)...)
	}
	return buf
}

func buildHeaderPayload(bootID uuid.UUID) []byte {
	buf := make([]byte, 8+16+4+4)
	binary.LittleEndian.PutUint64(buf[0:8], 0)
	copy(buf[8:24], bootID[:])
	return buf
}

func buildCatalogPayload(pid int32, euid uint32, firstProcID uint64, secondProcID uint32) []byte {
	var hdr [16]byte
	// subOff=0,subSize=0,procInfoCount=1,subChunkCount=0,reserved,uuidCount=0
	binary.LittleEndian.PutUint16(hdr[4:6], 1)
	var body []byte
	// proc info: mainIdx, dscIdx, pid, euid, firstProcID, secondProcID, numUUIDRefs=0, numCatRefs=0
	body = append(body, put16(0)...)
	body = append(body, put16(0)...)
	body = append(body, put32(uint32(pid))...)
	body = append(body, put32(euid)...)
	body = append(body, put64(firstProcID)...)
	body = append(body, put32(secondProcID)...)
	body = append(body, put32(0)...)
	body = append(body, put32(0)...)
	return append(hdr[:], body...)
}

func buildLossFirehoseRecord(threadID uint64, delta uint32, start, end, count uint64) []byte {
	var hdr [6]byte
	hdr[0] = 0x7 // RecordLoss
	body := append(put64(threadID), put32(delta)...)
	body = append(body, put64(start)...)
	body = append(body, put64(end)...)
	body = append(body, put64(count)...)
	binary.LittleEndian.PutUint16(hdr[4:6], uint16(len(body)))
	out := append(hdr[:], body...)
	if pad := len(out) % 4; pad != 0 {
		out = append(out, make([]byte, 4-pad)...)
	}
	return out
}

func buildFirehosePagePayload(firstProcID uint64, secondProcID uint32, base uint64, public []byte) []byte {
	hdr := make([]byte, 2+2+8+8+4+1+3+4+4+4)
	off := 4 // subtag + flags left zero
	binary.LittleEndian.PutUint64(hdr[off:off+8], base)
	off += 8
	binary.LittleEndian.PutUint64(hdr[off:off+8], firstProcID)
	off += 8
	binary.LittleEndian.PutUint32(hdr[off:off+4], secondProcID)
	off += 4 + 1 + 3 // ttl + reserved
	binary.LittleEndian.PutUint32(hdr[off:off+4], uint32(len(public)))
	return append(hdr, public...)
}

func failLoader(uuid.UUID) ([]byte, error) { return nil, errors.New("not found") }

func TestDriverScanAndRecordsLossEndToEnd(t *testing.T) {
	bootID := uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")

	var buf []byte
	buf = appendChunk(buf, 0x1000, buildHeaderPayload(bootID))
	buf = appendChunk(buf, 0x600b, buildCatalogPayload(4242, 501, 0xaabb, 1))

	lossRec := buildLossFirehoseRecord(7, 100, 1, 2, 3)
	pagePayload := buildFirehosePagePayload(0xaabb, 1, 5000, lossRec)
	buf = appendChunk(buf, 0x6001, pagePayload)

	uuidStore := uuidtext.NewStore(failLoader)
	dscStore := dsc.NewStore(func(uuid.UUID) ([]byte, error) { return nil, errors.New("not found") })
	tsStore := timesync.NewStore()
	ovStore := oversize.NewStore()

	d := NewDriver("test.tracev3", buf, uuidStore, dscStore, tsStore, ovStore, nil)
	if err := d.Scan(); err != nil {
		t.Fatal(err)
	}

	pull := d.Records()
	lr, ok, err := pull()
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected one record")
	}
	if lr.Level != record.Loss {
		t.Fatalf("Level = %v, want Loss", lr.Level)
	}
	if lr.PID != 4242 || lr.EUID != 501 {
		t.Fatalf("PID/EUID = %d/%d, want 4242/501", lr.PID, lr.EUID)
	}
	if lr.Message == "" {
		t.Fatal("expected a pre-rendered loss message")
	}
	if lr.BootUUID != bootID {
		t.Fatalf("BootUUID = %s, want %s", lr.BootUUID, bootID)
	}
	if lr.SourceFile != "test.tracev3" {
		t.Fatalf("SourceFile = %q", lr.SourceFile)
	}

	_, ok, err = pull()
	if err != nil || ok {
		t.Fatalf("expected iterator to be exhausted, got ok=%v err=%v", ok, err)
	}

	stats := d.Stats()
	if stats.RecordsEmitted != 1 {
		t.Fatalf("RecordsEmitted = %d, want 1", stats.RecordsEmitted)
	}
	if stats.FramingErrors != 0 {
		t.Fatalf("FramingErrors = %d, want 0", stats.FramingErrors)
	}
}

func TestDriverScanCatalogMissIncrementsStat(t *testing.T) {
	bootID := uuid.New()
	var buf []byte
	buf = appendChunk(buf, 0x1000, buildHeaderPayload(bootID))
	// no catalog chunk at all: ProcInfoFor will always miss
	lossRec := buildLossFirehoseRecord(1, 10, 0, 1, 1)
	pagePayload := buildFirehosePagePayload(1, 1, 100, lossRec)
	buf = appendChunk(buf, 0x6001, pagePayload)

	uuidStore := uuidtext.NewStore(failLoader)
	dscStore := dsc.NewStore(func(uuid.UUID) ([]byte, error) { return nil, errors.New("not found") })
	tsStore := timesync.NewStore()
	ovStore := oversize.NewStore()

	d := NewDriver("test2.tracev3", buf, uuidStore, dscStore, tsStore, ovStore, nil)
	if err := d.Scan(); err != nil {
		t.Fatal(err)
	}
	if d.Stats().CatalogMisses != 1 {
		t.Fatalf("CatalogMisses = %d, want 1", d.Stats().CatalogMisses)
	}
}
