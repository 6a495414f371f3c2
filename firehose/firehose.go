/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package firehose decodes firehose pages: the high-frequency log-record
// stream produced by a chunkset decompression, and its five record
// variants (non-activity, activity, signpost, trace, loss).
package firehose

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gravwell/unifiedlog/breader"
)

// RecordType is the firehose record's leading type byte.
type RecordType uint8

const (
	RecordNonActivity RecordType = 0x2
	RecordActivity    RecordType = 0x3
	RecordTrace       RecordType = 0x4
	RecordSignpost    RecordType = 0x6
	RecordLoss        RecordType = 0x7
)

// Flag bits, low byte of a record's 16-bit flags field: format-string
// resolution path. Only one of these four should be set; an unknown or
// absent combination resolves to emitting a placeholder format string
// rather than failing the record.
const (
	FlagMainExeUUID   uint16 = 0x0002
	FlagAbsolute      uint16 = 0x0008
	FlagUUIDRelative  uint16 = 0x000a
	FlagSharedCache   uint16 = 0x000c
	formatRefMask     uint16 = 0x000e
)

// Flag bits outside the format-reference mask: presence of optional
// record fields.
const (
	FlagHasSubsystem    uint16 = 0x0200
	FlagHasPrivateData  uint16 = 0x0100
	FlagHasActivityCtx  uint16 = 0x0001
	FlagHasTTL          uint16 = 0x0400
	FlagHasSignpostName uint16 = 0x8000
	FlagHasDataRef      uint16 = 0x4000
)

// FormatRefKind classifies how a record's format-string reference must
// be resolved, derived from the low flag bits.
type FormatRefKind uint8

const (
	FormatRefUnknown FormatRefKind = iota
	FormatRefMainExe
	FormatRefAbsolute
	FormatRefUUIDRelative
	FormatRefSharedCache
)

// FormatRef describes where a record's format string comes from.
type FormatRef struct {
	Kind     FormatRefKind
	Offset   uint32
	UUID     uuid.UUID // set for Absolute/UUIDRelative when carried inline or by catalog index
	UUIDIdx  int       // catalog UUID-list index, for UUIDRelative
	HasUUID  bool
}

// ClassifyFlags maps a record's low flag byte to a FormatRefKind per the
// four documented combinations.
func ClassifyFlags(flags uint16) FormatRefKind {
	switch flags & formatRefMask {
	case FlagMainExeUUID:
		return FormatRefMainExe
	case FlagAbsolute:
		return FormatRefAbsolute
	case FlagUUIDRelative:
		return FormatRefUUIDRelative
	case FlagSharedCache:
		return FormatRefSharedCache
	default:
		return FormatRefUnknown
	}
}

// DataItemType tags one data-item descriptor's payload kind.
type DataItemType uint8

const (
	ItemNumeric         DataItemType = 0x0
	ItemString          DataItemType = 0x2
	ItemPrecision       DataItemType = 0x10
	ItemPrivateString    DataItemType = 0x21
	ItemSensitiveString  DataItemType = 0x41
	ItemArbitraryBytes   DataItemType = 0x30
	ItemOversizeRef       DataItemType = 0xf2
	ItemOversizeRefAlt    DataItemType = 0xf4
	ItemPrecisionQualifier DataItemType = 0x12
)

// IsOversizeRef reports whether t identifies a data item whose payload
// lives in the oversize region rather than inline.
func (t DataItemType) IsOversizeRef() bool {
	return t == ItemOversizeRef || t == ItemOversizeRefAlt
}

// DataItem is one decoded data-item descriptor plus its payload, which
// is either inline bytes or an (offset, length) reference resolved
// later against the record's trailing blob or the oversize region.
type DataItem struct {
	Type    DataItemType
	Size    uint8
	Inline  []byte // set when the item's bytes are carried directly
	RefOff  uint16 // set when Inline is nil: offset into the record's trailing blob, or the data-ref index for an oversize item
	RefLen  uint16
	IsRef   bool
}

// Page is one decoded firehose page: its header plus the raw records
// that follow it, still undecoded until DecodeRecords walks them.
type Page struct {
	BootUUID          uuid.UUID
	BaseContinuousTime uint64
	FirstProcID       uint64
	SecondProcID      uint32
	Collapsed         bool
	TTL               uint8
	PublicDataSize    uint32
	PrivateDataVOffset uint32
	PrivateDataSize    uint32

	publicData  []byte
	privateData []byte
}

var (
	// ErrTruncated is returned when a page or record ends mid-field.
	ErrTruncated = errors.New("firehose: truncated page or record")
)

// ParsePage decodes one firehose page's preamble and splits its body
// into the public (record stream) and private data regions.
func ParsePage(bootUUID uuid.UUID, buf []byte) (*Page, error) {
	c := breader.NewCursor(buf)

	subtag, err := c.Uint16()
	if err != nil {
		return nil, ErrTruncated
	}
	_ = subtag // chunk sub-tag, informational
	flags, err := c.Uint16()
	if err != nil {
		return nil, ErrTruncated
	}
	base, err := c.Uint64()
	if err != nil {
		return nil, ErrTruncated
	}
	firstProcID, err := c.Uint64()
	if err != nil {
		return nil, ErrTruncated
	}
	secondProcID, err := c.Uint32()
	if err != nil {
		return nil, ErrTruncated
	}
	ttl, err := c.Uint8()
	if err != nil {
		return nil, ErrTruncated
	}
	if err := c.Skip(3); err != nil { // reserved/alignment
		return nil, ErrTruncated
	}
	publicSize, err := c.Uint32()
	if err != nil {
		return nil, ErrTruncated
	}
	privateVOff, err := c.Uint32()
	if err != nil {
		return nil, ErrTruncated
	}
	privateSize, err := c.Uint32()
	if err != nil {
		return nil, ErrTruncated
	}

	public, err := c.Take(int(publicSize))
	if err != nil {
		return nil, ErrTruncated
	}
	private := c.Bytes()
	if len(private) > int(privateSize) {
		private = private[:privateSize]
	}

	return &Page{
		BootUUID:           bootUUID,
		BaseContinuousTime: base,
		FirstProcID:        firstProcID,
		SecondProcID:       secondProcID,
		Collapsed:          flags&0x1 != 0,
		TTL:                ttl,
		PublicDataSize:     publicSize,
		PrivateDataVOffset: privateVOff,
		PrivateDataSize:    privateSize,
		publicData:         public,
		privateData:        private,
	}, nil
}

// Record is one decoded firehose record, still referencing the owning
// Page's private-data region for any private/sensitive items.
type Record struct {
	Type              RecordType
	Flags             uint16
	ThreadID          uint64
	ContinuousTime    uint64 // absolute: page base + delta
	FormatRef         FormatRef
	ActivityID        uint32
	ParentActivityID  uint32
	PrivateDataOffset uint32
	SubsystemCatIndex int
	HasSubsystemCat   bool
	TTL               uint8
	Items             []DataItem

	// Signpost-only fields.
	SignpostID    uint64
	SignpostName  FormatRef
	HasSignpost   bool
	Scope         uint8
	Kind          uint8

	// Loss-only fields.
	LossStart uint64
	LossEnd   uint64
	LossCount uint64
	// Message is pre-rendered for loss records (they have no format
	// string to assemble against) and left empty otherwise.
	Message string

	// SubType carries the non-activity severity byte (Default/Info/Debug/
	// Error/Fault) or the activity create/transition discriminator;
	// meaningless for other variants.
	SubType uint8

	page *Page
}

// PrivateData returns the owning page's private-data region, used to
// resolve a private/sensitive data item's payload.
func (r *Record) PrivateData() []byte {
	if r.page == nil {
		return nil
	}
	return r.page.privateData
}

// DecodeRecords walks p's public-data region and returns every record it
// contains, in file order. Each record's continuous time is the page's
// base plus that record's own delta.
func DecodeRecords(p *Page) ([]Record, error) {
	c := breader.NewCursor(p.publicData)
	var out []Record

	for c.Len() > 0 {
		if c.Len() < 6 {
			break // trailing padding shorter than a record header
		}
		typ, err := c.Uint8()
		if err != nil {
			return out, ErrTruncated
		}
		if err := c.Skip(1); err != nil { // unknown/reserved byte following type
			return out, ErrTruncated
		}
		flags, err := c.Uint16()
		if err != nil {
			return out, ErrTruncated
		}
		length, err := c.Uint16()
		if err != nil {
			return out, ErrTruncated
		}
		body, err := c.Take(int(length))
		if err != nil {
			return out, ErrTruncated
		}

		rec, err := decodeRecordBody(RecordType(typ), flags, body)
		if err != nil {
			return out, err
		}
		rec.ContinuousTime += p.BaseContinuousTime // body carried the delta; add the page's base
		rec.page = p
		out = append(out, rec)

		if err := c.AlignTo(4); err != nil {
			c.SeekEnd()
		}
	}
	return out, nil
}

func decodeRecordBody(typ RecordType, flags uint16, body []byte) (Record, error) {
	c := breader.NewCursor(body)
	var rec Record
	rec.Type = typ
	rec.Flags = flags

	threadID, err := c.Uint64()
	if err != nil {
		return rec, ErrTruncated
	}
	delta, err := c.Uint32()
	if err != nil {
		return rec, ErrTruncated
	}
	rec.ThreadID = threadID
	rec.ContinuousTime = uint64(delta) // delta only; the caller adds the page's base

	switch typ {
	case RecordLoss:
		start, err := c.Uint64()
		if err != nil {
			return rec, ErrTruncated
		}
		end, err := c.Uint64()
		if err != nil {
			return rec, ErrTruncated
		}
		count, err := c.Uint64()
		if err != nil {
			return rec, ErrTruncated
		}
		rec.LossStart, rec.LossEnd, rec.LossCount = start, end, count
		rec.Message = fmt.Sprintf("lost %d records between %d and %d", count, start, end)
		return rec, nil
	}

	if typ == RecordNonActivity || typ == RecordActivity {
		sub, err := c.Uint8()
		if err != nil {
			return rec, ErrTruncated
		}
		rec.SubType = sub
	}

	kind := ClassifyFlags(flags)
	rec.FormatRef.Kind = kind

	switch kind {
	case FormatRefMainExe, FormatRefSharedCache:
		off, err := c.Uint32()
		if err != nil {
			return rec, ErrTruncated
		}
		rec.FormatRef.Offset = off
	case FormatRefAbsolute:
		raw, err := c.UUID()
		if err != nil {
			return rec, ErrTruncated
		}
		id, err := uuid.FromBytes(raw[:])
		if err != nil {
			return rec, err
		}
		rec.FormatRef.UUID = id
		rec.FormatRef.HasUUID = true
		off, err := c.Uint32()
		if err != nil {
			return rec, ErrTruncated
		}
		rec.FormatRef.Offset = off
	case FormatRefUUIDRelative:
		idx, err := c.Uint16()
		if err != nil {
			return rec, ErrTruncated
		}
		rec.FormatRef.UUIDIdx = int(idx)
		off, err := c.Uint32()
		if err != nil {
			return rec, ErrTruncated
		}
		rec.FormatRef.Offset = off
	default:
		// unknown combination: still consume the 4-byte offset field so
		// the remaining record body stays aligned, but mark unresolved
		off, err := c.Uint32()
		if err != nil {
			return rec, ErrTruncated
		}
		rec.FormatRef.Offset = off
	}

	if flags&FlagHasActivityCtx != 0 {
		aid, err := c.Uint32()
		if err != nil {
			return rec, ErrTruncated
		}
		rec.ActivityID = aid
		if typ == RecordActivity {
			pid, err := c.Uint32()
			if err != nil {
				return rec, ErrTruncated
			}
			rec.ParentActivityID = pid
		}
	}

	if flags&FlagHasPrivateData != 0 {
		v, err := c.Uint32()
		if err != nil {
			return rec, ErrTruncated
		}
		rec.PrivateDataOffset = v
	}

	if flags&FlagHasSubsystem != 0 {
		idx, err := c.Uint16()
		if err != nil {
			return rec, ErrTruncated
		}
		rec.HasSubsystemCat = true
		rec.SubsystemCatIndex = int(idx)
	}

	if flags&FlagHasTTL != 0 {
		ttl, err := c.Uint8()
		if err != nil {
			return rec, ErrTruncated
		}
		rec.TTL = ttl
	}

	if typ == RecordSignpost {
		sid, err := c.Uint64()
		if err != nil {
			return rec, ErrTruncated
		}
		rec.SignpostID = sid
		scope, err := c.Uint8()
		if err != nil {
			return rec, ErrTruncated
		}
		kindB, err := c.Uint8()
		if err != nil {
			return rec, ErrTruncated
		}
		rec.Scope = scope
		rec.Kind = kindB
		if flags&FlagHasSignpostName != 0 {
			off, err := c.Uint32()
			if err != nil {
				return rec, ErrTruncated
			}
			rec.SignpostName = FormatRef{Kind: kind, Offset: off}
			rec.HasSignpost = true
		}
	}

	items, err := decodeDataItems(c)
	if err != nil {
		return rec, err
	}
	rec.Items = items
	return rec, nil
}

func decodeDataItems(c *breader.Cursor) ([]DataItem, error) {
	if c.Len() == 0 {
		return nil, nil
	}
	count, err := c.Uint8()
	if err != nil {
		return nil, ErrTruncated
	}
	if _, err := c.Uint8(); err != nil { // declared total size, informational
		return nil, ErrTruncated
	}
	items := make([]DataItem, 0, count)
	for i := 0; i < int(count); i++ {
		if c.Len() < 4 {
			break
		}
		typ, err := c.Uint8()
		if err != nil {
			return items, ErrTruncated
		}
		size, err := c.Uint8()
		if err != nil {
			return items, ErrTruncated
		}
		dit := DataItemType(typ)
		item := DataItem{Type: dit, Size: size}

		if dit.IsOversizeRef() {
			off, err := c.Uint16()
			if err != nil {
				return items, ErrTruncated
			}
			item.IsRef = true
			item.RefOff = off
		} else if int(size) <= 2 {
			b, err := c.Take(int(size))
			if err != nil {
				return items, ErrTruncated
			}
			item.Inline = append([]byte(nil), b...)
			if err := c.Skip(2 - int(size)); err != nil {
				return items, ErrTruncated
			}
		} else {
			// value is (offset, length) into the trailing variable blob
			off, err := c.Uint16()
			if err != nil {
				return items, ErrTruncated
			}
			item.RefOff = off
			item.RefLen = uint16(size)
		}
		items = append(items, item)
	}

	// trailing variable-length blob: any item whose payload wasn't
	// inline or an oversize ref is resolved against this region by
	// RefOff/RefLen
	blob := c.Bytes()
	for i := range items {
		if items[i].Inline == nil && !items[i].IsRef {
			off, ln := int(items[i].RefOff), int(items[i].RefLen)
			if off >= 0 && off+ln <= len(blob) {
				items[i].Inline = blob[off : off+ln]
			}
		}
	}
	_ = c.Skip(c.Len())
	return items, nil
}
