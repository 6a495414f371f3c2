package output

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/gravwell/unifiedlog/record"
)

func TestWriteCSVHeaderAndRow(t *testing.T) {
	recs := make(chan record.LogRecord, 1)
	recs <- record.LogRecord{
		Process: "launchd",
		Sender:  "libSystem",
		Message: "hello",
		Level:   record.Info,
		TimeValid: true,
		Time:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	close(recs)

	var buf bytes.Buffer
	columns := []string{"time", "process", "sender", "level", "message"}
	if err := WriteCSV(&buf, recs, columns); err != nil {
		t.Fatal(err)
	}

	r := csv.NewReader(strings.NewReader(buf.String()))
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (header + 1 record)", len(rows))
	}
	if rows[0][1] != "process" {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[1][1] != "launchd" || rows[1][2] != "libSystem" || rows[1][3] != "Info" || rows[1][4] != "hello" {
		t.Fatalf("row = %v", rows[1])
	}
}

func TestWriteCSVUnknownColumnRendersEmpty(t *testing.T) {
	recs := make(chan record.LogRecord, 1)
	recs <- record.LogRecord{Process: "launchd"}
	close(recs)

	var buf bytes.Buffer
	if err := WriteCSV(&buf, recs, []string{"process", "not_a_real_column"}); err != nil {
		t.Fatal(err)
	}
	r := csv.NewReader(strings.NewReader(buf.String()))
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if rows[1][1] != "" {
		t.Fatalf("unknown column = %q, want empty", rows[1][1])
	}
}

func TestWriteCSVTimeUnresolvedIsEmpty(t *testing.T) {
	recs := make(chan record.LogRecord, 1)
	recs <- record.LogRecord{TimeValid: false}
	close(recs)

	var buf bytes.Buffer
	if err := WriteCSV(&buf, recs, []string{"time"}); err != nil {
		t.Fatal(err)
	}
	r := csv.NewReader(strings.NewReader(buf.String()))
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if rows[1][0] != "" {
		t.Fatalf("time column = %q, want empty for an unresolved record", rows[1][0])
	}
}
