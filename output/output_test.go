package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gravwell/unifiedlog/record"
)

func TestWriteJSONLNullTimeForUnresolved(t *testing.T) {
	recs := make(chan record.LogRecord, 2)
	recs <- record.LogRecord{Message: "no timesync", TimeValid: false}
	recs <- record.LogRecord{Message: "resolved", TimeValid: true, Time: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	close(recs)

	var buf bytes.Buffer
	if err := WriteJSONL(&buf, recs); err != nil {
		t.Fatal(err)
	}

	lines := bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	var first map[string]interface{}
	if err := json.Unmarshal(lines[0], &first); err != nil {
		t.Fatal(err)
	}
	if first["time"] != nil {
		t.Fatalf("time = %v, want nil for an unresolved record", first["time"])
	}

	var second map[string]interface{}
	if err := json.Unmarshal(lines[1], &second); err != nil {
		t.Fatal(err)
	}
	if second["time"] == nil {
		t.Fatal("time should not be nil for a resolved record")
	}
}

func TestWriteJSONLLevelRendersAsName(t *testing.T) {
	recs := make(chan record.LogRecord, 1)
	recs <- record.LogRecord{Level: record.Fault}
	close(recs)

	var buf bytes.Buffer
	if err := WriteJSONL(&buf, recs); err != nil {
		t.Fatal(err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["level"] != "Fault" {
		t.Fatalf("level = %v, want %q (CSV renders the same name via Level.String)", got["level"], "Fault")
	}
}

func TestWriteJSONLBootUUIDAsString(t *testing.T) {
	id := uuid.New()
	recs := make(chan record.LogRecord, 1)
	recs <- record.LogRecord{BootUUID: id}
	close(recs)

	var buf bytes.Buffer
	if err := WriteJSONL(&buf, recs); err != nil {
		t.Fatal(err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["boot_uuid"] != id.String() {
		t.Fatalf("boot_uuid = %v, want %s", got["boot_uuid"], id.String())
	}
}
