package chunk

import (
	"github.com/google/uuid"

	"github.com/gravwell/unifiedlog/breader"
)

// Header subtype severity/discriminator bytes for non-activity and
// activity records, read from firehose.Record.SubType.
const (
	SeverityDefault uint8 = 0x00
	SeverityInfo    uint8 = 0x01
	SeverityDebug   uint8 = 0x02
	SeverityError   uint8 = 0x10
	SeverityFault   uint8 = 0x11

	ActivityCreate     uint8 = 0x01
	ActivityTransition uint8 = 0x02
)

// FileHeader is the decoded payload of a tracev3 file's leading
// TagHeader chunk: the boot UUID every following firehose page is
// scoped to, plus bookkeeping fields not otherwise used by this
// decoder.
type FileHeader struct {
	ContinuousTimeBase    uint64
	BootUUID              uuid.UUID
	TimezoneOffsetMinutes int32
	DST                   bool
}

// ParseHeader decodes a TagHeader chunk's payload.
func ParseHeader(payload []byte) (FileHeader, error) {
	var h FileHeader
	c := breader.NewCursor(payload)

	base, err := c.Uint64()
	if err != nil {
		return h, err
	}
	raw, err := c.UUID()
	if err != nil {
		return h, err
	}
	id, err := uuid.FromBytes(raw[:])
	if err != nil {
		return h, err
	}
	tz, err := c.Int32()
	if err != nil {
		return h, err
	}
	dst, err := c.Uint32()
	if err != nil {
		return h, err
	}

	h.ContinuousTimeBase = base
	h.BootUUID = id
	h.TimezoneOffsetMinutes = tz
	h.DST = dst != 0
	return h, nil
}
