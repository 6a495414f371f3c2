package assembler

import (
	"encoding/binary"
	"strings"
	"testing"
)

func intItem(v int32) Item {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return Item{Bytes: b}
}

func strItem(s string) Item {
	return Item{Bytes: []byte(s)}
}

func TestRenderBasicVerbs(t *testing.T) {
	var stats Stats
	got := Render("pid=%d name=%s done", []Item{intItem(42), strItem("launchd")}, &stats)
	want := "pid=42 name=launchd done"
	if got != want {
		t.Fatalf("Render = %q, want %q", got, want)
	}
	if stats.MissingData != 0 {
		t.Fatalf("MissingData = %d, want 0", stats.MissingData)
	}
}

func TestRenderMissingData(t *testing.T) {
	var stats Stats
	got := Render("value=%d", nil, &stats)
	if got != "value=<missing data>" {
		t.Fatalf("Render = %q", got)
	}
	if stats.MissingData != 1 {
		t.Fatalf("MissingData = %d, want 1", stats.MissingData)
	}
}

func TestRenderPrivateItem(t *testing.T) {
	var stats Stats
	got := Render("secret=%s", []Item{{Private: true}}, &stats)
	if got != "secret=<private>" {
		t.Fatalf("Render = %q", got)
	}
}

func TestRenderPendingItem(t *testing.T) {
	var stats Stats
	got := Render("data=%s", []Item{{Pending: true, RefIndex: 7}}, &stats)
	if got != "data=<missing oversize: ref=7>" {
		t.Fatalf("Render = %q", got)
	}
}

func TestRenderWidthAndPrecision(t *testing.T) {
	var stats Stats
	got := Render("[%5d]", []Item{intItem(7)}, &stats)
	if got != "[    7]" {
		t.Fatalf("Render = %q", got)
	}

	got = Render("[%-5d]", []Item{intItem(7)}, &stats)
	if got != "[7    ]" {
		t.Fatalf("Render = %q", got)
	}

	got = Render("[%.3s]", []Item{strItem("hello")}, &stats)
	if got != "[hel]" {
		t.Fatalf("Render = %q", got)
	}
}

func TestRenderStarWidth(t *testing.T) {
	var stats Stats
	// width consumed from a leading numeric item, then the value item
	got := Render("[%*d]", []Item{intItem(6), intItem(9)}, &stats)
	if got != "[     9]" {
		t.Fatalf("Render = %q", got)
	}
}

func TestRenderHexVerbs(t *testing.T) {
	var stats Stats
	got := Render("%x %X", []Item{intItem(255), intItem(255)}, &stats)
	if got != "ff FF" {
		t.Fatalf("Render = %q", got)
	}
}

func TestRenderLiteralPercent(t *testing.T) {
	var stats Stats
	got := Render("100%% done", nil, &stats)
	if got != "100% done" {
		t.Fatalf("Render = %q", got)
	}
}

func TestRenderCustomSpecifierBool(t *testing.T) {
	var stats Stats
	got := Render("ok=%{bool}d", []Item{intItem(1)}, &stats)
	if got != "ok=true" {
		t.Fatalf("Render = %q", got)
	}
	if stats.UnknownDecoders != 0 {
		t.Fatalf("UnknownDecoders = %d, want 0", stats.UnknownDecoders)
	}
}

func TestRenderCustomSpecifierUnknown(t *testing.T) {
	var stats Stats
	got := Render("v=%{totally-made-up}d", []Item{intItem(1)}, &stats)
	if stats.UnknownDecoders != 1 {
		t.Fatalf("UnknownDecoders = %d, want 1", stats.UnknownDecoders)
	}
	if got == "" {
		t.Fatal("expected a placeholder rendering for an unknown decoder")
	}
}

func TestRenderCustomSpecifierErrno(t *testing.T) {
	var stats Stats
	got := Render("errno=%{errno}d", []Item{intItem(2)}, &stats)
	if !strings.Contains(got, "ENOENT") {
		t.Fatalf("Render = %q, want a rendering containing ENOENT", got)
	}
}

func TestRenderCustomSpecifierSignal(t *testing.T) {
	var stats Stats
	got := Render("signal=%{signal}d", []Item{intItem(9)}, &stats)
	if !strings.Contains(got, "SIGKILL") {
		t.Fatalf("Render = %q, want a rendering containing SIGKILL", got)
	}
}

func TestRenderCustomSpecifierErrnoUnknown(t *testing.T) {
	var stats Stats
	got := Render("errno=%{errno}d", []Item{intItem(9999)}, &stats)
	if got != "errno=9999" {
		t.Fatalf("Render = %q, want the bare number for an unmapped errno", got)
	}
}

func TestRenderCustomSpecifierPrivateQualifier(t *testing.T) {
	var stats Stats
	got := Render("v=%{private,mdns:dnshdr}", []Item{{Private: true}}, &stats)
	if got != "v=<private>" {
		t.Fatalf("Render = %q", got)
	}
}

func TestParseSpecifierLengthModifiers(t *testing.T) {
	spec, n := parseSpecifier("%lld rest")
	if n == 0 {
		t.Fatal("expected a parsed specifier")
	}
	if spec.verb != 'd' {
		t.Fatalf("verb = %q, want 'd'", spec.verb)
	}
}

func TestParseSpecifierUnterminatedCustom(t *testing.T) {
	_, n := parseSpecifier("%{oops")
	if n != 0 {
		t.Fatalf("n = %d, want 0 for unterminated custom specifier", n)
	}
}

func TestDecodeIntItemSizes(t *testing.T) {
	cases := []struct {
		bytes []byte
		want  int64
	}{
		{[]byte{0xff}, -1},
		{[]byte{0xff, 0xff}, -1},
		{[]byte{0xff, 0xff, 0xff, 0xff}, -1},
	}
	for _, c := range cases {
		if got := decodeIntItem(Item{Bytes: c.bytes}); got != c.want {
			t.Fatalf("decodeIntItem(%v) = %d, want %d", c.bytes, got, c.want)
		}
	}
}
