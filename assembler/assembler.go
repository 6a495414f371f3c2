/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package assembler renders a format string and an ordered list of data
// items into the final human-readable message, implementing printf-like
// specifier handling plus Apple's custom "%{decoder}" specifiers.
package assembler

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Item is one resolved data item handed to the assembler: either a
// public byte payload, or a marker that the payload was private/
// sensitive and absent from the capture.
type Item struct {
	Bytes   []byte
	Private bool // censored at capture: Bytes is empty/absent
	// UTF16 marks a string item encoded as UTF-16 rather than UTF-8 bytes.
	UTF16 bool
	// Pending marks an oversize-referenced item whose payload had not
	// yet arrived when the record was first assembled.
	Pending bool
	// RefIndex is the oversize data-ref index Pending refers to, used to
	// name the offending reference in the rendered placeholder.
	RefIndex uint32
}

// DecoderFunc renders a custom "%{name}" specifier's raw item bytes to a
// string. Registered decoders are read-only after package init per the
// "custom decoder dispatch" design note.
type DecoderFunc func(item Item) string

var registry = map[string]DecoderFunc{}

// RegisterDecoder adds name to the custom-decoder registry. Intended to
// be called from package init by files in this package (see decoders.go);
// external callers may register additional decoders before first use.
func RegisterDecoder(name string, fn DecoderFunc) {
	registry[name] = fn
}

// lookupDecoder returns the registered decoder for name, or a decoder
// that hex-dumps and annotates an unrecognized decoder name instead of
// failing the render.
func lookupDecoder(name string) DecoderFunc {
	if fn, ok := registry[name]; ok {
		return fn
	}
	return func(item Item) string {
		if item.Private {
			return "<private>"
		}
		return fmt.Sprintf("<decode:unknown:%X>", item.Bytes)
	}
}

// specifier is one parsed conversion from the format string.
type specifier struct {
	raw        string // the full "%..." text, for passthrough on %%
	flags      string
	width      string // may be "*"
	precision  string // may be "*", includes leading '.' stripped
	hasPrec    bool
	verb       byte   // the standard conversion letter, 0 for custom
	custom     string // decoder name for "%{name}"
	private    bool   // set by a "private" qualifier, e.g. "%{private,name}"
}

// Stats accumulates assembly-level counters useful for measuring how
// often format strings and data items fail to line up.
type Stats struct {
	MissingData int
	UnknownDecoders int
}

// Render assembles format against items, consuming items left to right
// as specifiers are encountered. Extra items beyond what the format
// string consumes are ignored silently; a specifier with no item left
// renders as "<missing data>".
func Render(format string, items []Item, stats *Stats) string {
	var out strings.Builder
	idx := 0
	next := func() (Item, bool) {
		if idx >= len(items) {
			return Item{}, false
		}
		it := items[idx]
		idx++
		return it, true
	}

	i := 0
	for i < len(format) {
		ch := format[i]
		if ch != '%' {
			out.WriteByte(ch)
			i++
			continue
		}
		spec, n := parseSpecifier(format[i:])
		if n == 0 {
			// malformed trailing '%': emit literally
			out.WriteByte(ch)
			i++
			continue
		}
		i += n

		if spec.verb == '%' {
			out.WriteByte('%')
			continue
		}

		// '*' width/precision each consume one numeric item before the
		// value item itself
		if spec.width == "*" {
			if it, ok := next(); ok {
				spec.width = strconv.Itoa(int(decodeIntItem(it)))
			} else {
				spec.width = ""
			}
		}
		if spec.hasPrec && spec.precision == "*" {
			if it, ok := next(); ok {
				spec.precision = strconv.Itoa(int(decodeIntItem(it)))
			} else {
				spec.precision = ""
			}
		}

		if spec.custom != "" {
			it, ok := next()
			if !ok {
				out.WriteString("<missing data>")
				stats.bump(&stats.MissingData)
				continue
			}
			if it.Pending {
				fmt.Fprintf(&out, "<missing oversize: ref=%d>", it.RefIndex)
				continue
			}
			if it.Private {
				out.WriteString("<private>")
				continue
			}
			name := spec.custom
			if _, known := registry[name]; !known {
				stats.bump(&stats.UnknownDecoders)
			}
			out.WriteString(lookupDecoder(name)(it))
			continue
		}

		it, ok := next()
		if !ok {
			out.WriteString("<missing data>")
			stats.bump(&stats.MissingData)
			continue
		}
		out.WriteString(renderStandard(spec, it))
	}
	return out.String()
}

func (s *Stats) bump(counter *int) {
	if s == nil {
		return
	}
	*counter++
}

// parseSpecifier parses one "%..." conversion starting at s[0]=='%',
// returning the parsed specifier and the number of bytes consumed. n==0
// means the '%' could not be parsed as a specifier at all.
func parseSpecifier(s string) (specifier, int) {
	if len(s) < 2 {
		return specifier{}, 0
	}
	i := 1
	var spec specifier

	// flags
	flagsStart := i
	for i < len(s) && strings.ContainsRune("#0- +", rune(s[i])) {
		i++
	}
	spec.flags = s[flagsStart:i]

	// width
	widthStart := i
	if i < len(s) && s[i] == '*' {
		i++
	} else {
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
	}
	spec.width = s[widthStart:i]

	// precision
	if i < len(s) && s[i] == '.' {
		i++
		spec.hasPrec = true
		precStart := i
		if i < len(s) && s[i] == '*' {
			i++
		} else {
			for i < len(s) && s[i] >= '0' && s[i] <= '9' {
				i++
			}
		}
		spec.precision = s[precStart:i]
	}

	// length modifiers (l, ll, h, hh, z, q) - consumed, not retained;
	// Go's ints are wide enough that width tracking is unnecessary
	for i < len(s) && strings.ContainsRune("lhzq", rune(s[i])) {
		i++
	}

	if i >= len(s) {
		return specifier{}, 0
	}

	if s[i] == '{' {
		// custom specifier: %{[private|public,]name}[verb]
		end := strings.IndexByte(s[i:], '}')
		if end < 0 {
			return specifier{}, 0
		}
		body := s[i+1 : i+end]
		i += end + 1
		if comma := strings.IndexByte(body, ','); comma >= 0 {
			qualifier := strings.TrimSpace(body[:comma])
			spec.custom = strings.TrimSpace(body[comma+1:])
			spec.private = qualifier == "private"
		} else {
			spec.custom = strings.TrimSpace(body)
		}
		// an optional trailing verb (commonly 'd'/'u'/'s') may follow a
		// custom specifier in Apple's format strings; consume it but it
		// doesn't change dispatch, the decoder owns rendering
		if i < len(s) && isVerbByte(s[i]) {
			i++
		}
		spec.raw = s[:i]
		return spec, i
	}

	spec.verb = s[i]
	i++
	spec.raw = s[:i]
	return spec, i
}

func isVerbByte(b byte) bool {
	return strings.IndexByte("diouxXpfeEgGaAcs@m%", b) >= 0
}

func decodeIntItem(it Item) int64 {
	switch len(it.Bytes) {
	case 1:
		return int64(int8(it.Bytes[0]))
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(it.Bytes)))
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(it.Bytes)))
	case 8:
		return int64(binary.LittleEndian.Uint64(it.Bytes))
	default:
		return 0
	}
}

func renderStandard(spec specifier, it Item) string {
	if it.Pending {
		return fmt.Sprintf("<missing oversize: ref=%d>", it.RefIndex)
	}
	if it.Private {
		return "<private>"
	}
	var rendered string
	switch spec.verb {
	case 'd', 'i':
		rendered = strconv.FormatInt(decodeIntItem(it), 10)
	case 'u':
		rendered = strconv.FormatUint(uint64(decodeIntItem(it)), 10)
	case 'o':
		rendered = strconv.FormatUint(uint64(decodeIntItem(it)), 8)
	case 'x':
		rendered = strconv.FormatUint(uint64(decodeIntItem(it)), 16)
	case 'X':
		rendered = strings.ToUpper(strconv.FormatUint(uint64(decodeIntItem(it)), 16))
	case 'p':
		rendered = fmt.Sprintf("0x%x", uint64(decodeIntItem(it)))
	case 'f', 'e', 'g', 'a', 'E', 'G', 'A':
		rendered = renderFloat(spec, it)
	case 'c':
		if len(it.Bytes) > 0 {
			rendered = string(rune(it.Bytes[0]))
		}
	case 's', '@':
		rendered = decodeStringItem(it)
	case 'm':
		// raw numeric errno, no symbol lookup
		rendered = strconv.FormatInt(decodeIntItem(it), 10)
	default:
		rendered = string(it.Bytes)
	}
	return applyWidthPrecision(spec, rendered)
}

func renderFloat(spec specifier, it Item) string {
	var f float64
	switch len(it.Bytes) {
	case 4:
		f = float64(math.Float32frombits(binary.LittleEndian.Uint32(it.Bytes)))
	case 8:
		f = math.Float64frombits(binary.LittleEndian.Uint64(it.Bytes))
	}
	verb := byte('f')
	switch spec.verb {
	case 'e', 'E':
		verb = 'e'
	case 'g', 'G':
		verb = 'g'
	}
	prec := -1
	if spec.hasPrec {
		if p, err := strconv.Atoi(spec.precision); err == nil {
			prec = p
		}
	}
	return strconv.FormatFloat(f, verb, prec, 64)
}

func decodeStringItem(it Item) string {
	if it.UTF16 {
		return decodeUTF16LE(it.Bytes)
	}
	// C-strings in the data-item blob are frequently NUL-terminated even
	// though their declared length already excludes the terminator; trim
	// defensively.
	b := it.Bytes
	if i := indexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func indexByte(b []byte, v byte) int {
	for i, c := range b {
		if c == v {
			return i
		}
	}
	return -1
}

// decodeUTF16LE converts a little-endian UTF-16 byte string (as Apple's
// "%@"-rendered NSString items sometimes arrive) to a Go string.
func decodeUTF16LE(b []byte) string {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	return string(utf16.Decode(units))
}

func applyWidthPrecision(spec specifier, s string) string {
	if spec.hasPrec && spec.verb == 's' {
		if p, err := strconv.Atoi(spec.precision); err == nil && p < len(s) {
			s = s[:p]
		}
	}
	width := 0
	if spec.width != "" {
		if w, err := strconv.Atoi(spec.width); err == nil {
			width = w
		}
	}
	if width <= 0 || len(s) >= width {
		return s
	}
	pad := strings.Repeat(" ", width-len(s))
	if strings.ContainsRune(spec.flags, '-') {
		return s + pad
	}
	if strings.ContainsRune(spec.flags, '0') {
		return strings.Repeat("0", width-len(s)) + s
	}
	return pad + s
}
