package record

import (
	"encoding/json"
	"testing"
	"time"
)

func TestLevelString(t *testing.T) {
	cases := map[Level]string{
		Default:             "Default",
		Info:                "Info",
		Debug:               "Debug",
		Error:               "Error",
		Fault:               "Fault",
		ActivityCreate:      "ActivityCreate",
		SignpostSystem:      "SignpostSystem",
		Loss:                "Loss",
		Level(200):          "Unknown",
	}
	for lvl, want := range cases {
		if got := lvl.String(); got != want {
			t.Fatalf("Level(%d).String() = %q, want %q", lvl, got, want)
		}
	}
}

func TestSignpostScopeString(t *testing.T) {
	cases := map[SignpostScope]string{
		SignpostScopeNone:    "",
		SignpostScopeProcess: "process",
		SignpostScopeThread:  "thread",
		SignpostScopeSystem:  "system",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Fatalf("SignpostScope(%d).String() = %q, want %q", s, got, want)
		}
	}
}

func TestSignpostKindString(t *testing.T) {
	cases := map[SignpostKind]string{
		SignpostKindNone:  "",
		SignpostKindBegin: "begin",
		SignpostKindEnd:   "end",
		SignpostKindEvent: "event",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Fatalf("SignpostKind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestLevelMarshalJSONUsesName(t *testing.T) {
	b, err := json.Marshal(Fault)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"Fault"` {
		t.Fatalf("json.Marshal(Fault) = %s, want %q", b, `"Fault"`)
	}
}

func TestSignpostScopeMarshalJSONUsesName(t *testing.T) {
	b, err := json.Marshal(SignpostScopeThread)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"thread"` {
		t.Fatalf("json.Marshal(SignpostScopeThread) = %s, want %q", b, `"thread"`)
	}
}

func TestSignpostKindMarshalJSONUsesName(t *testing.T) {
	b, err := json.Marshal(SignpostKindBegin)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"begin"` {
		t.Fatalf("json.Marshal(SignpostKindBegin) = %s, want %q", b, `"begin"`)
	}
}

func TestMarshalTimeValid(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := LogRecord{Time: now, TimeValid: true}
	got, ok := r.MarshalTime().(time.Time)
	if !ok || !got.Equal(now) {
		t.Fatalf("MarshalTime() = %v, want %v", r.MarshalTime(), now)
	}
}

func TestMarshalTimeInvalidIsNil(t *testing.T) {
	r := LogRecord{TimeValid: false}
	if r.MarshalTime() != nil {
		t.Fatalf("MarshalTime() = %v, want nil", r.MarshalTime())
	}
}
