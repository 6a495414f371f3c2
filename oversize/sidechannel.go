package oversize

import (
	"github.com/gravwell/unifiedlog/breader"
)

// Statedump is a decoded statedump chunk: a point-in-time snapshot a
// process wrote into the log (plist, custom object, or protocol
// buffer), carried as an opaque blob plus identifying metadata.
type Statedump struct {
	FirstProcID    uint64
	SecondProcID   uint32
	ContinuousTime uint64
	ActivityID     uint32
	Title          string
	DataType       uint32
	Data           []byte
}

// ParseStatedump decodes a statedump chunk's payload.
func ParseStatedump(payload []byte) (Statedump, error) {
	c := breader.NewCursor(payload)
	var sd Statedump

	first, err := c.Uint64()
	if err != nil {
		return sd, err
	}
	second, err := c.Uint32()
	if err != nil {
		return sd, err
	}
	ct, err := c.Uint64()
	if err != nil {
		return sd, err
	}
	aid, err := c.Uint32()
	if err != nil {
		return sd, err
	}
	dtype, err := c.Uint32()
	if err != nil {
		return sd, err
	}
	titleBuf, err := c.Take(64) // fixed-width title field, NUL-padded
	if err != nil {
		return sd, err
	}
	title := string(titleBuf)
	if i := indexNUL(titleBuf); i >= 0 {
		title = string(titleBuf[:i])
	}
	dataLen, err := c.Uint32()
	if err != nil {
		return sd, err
	}
	data, err := c.Take(int(dataLen))
	if err != nil {
		return sd, err
	}

	sd.FirstProcID = first
	sd.SecondProcID = second
	sd.ContinuousTime = ct
	sd.ActivityID = aid
	sd.DataType = dtype
	sd.Title = title
	sd.Data = append([]byte(nil), data...)
	return sd, nil
}

// Simpledump is a decoded simpledump chunk: a lightweight single-string
// message with no format-string indirection at all.
type Simpledump struct {
	FirstProcID    uint64
	SecondProcID   uint32
	ContinuousTime uint64
	ThreadID       uint64
	Subsystem      string
	Message        string
}

// ParseSimpledump decodes a simpledump chunk's payload.
func ParseSimpledump(payload []byte) (Simpledump, error) {
	c := breader.NewCursor(payload)
	var s Simpledump

	first, err := c.Uint64()
	if err != nil {
		return s, err
	}
	second, err := c.Uint32()
	if err != nil {
		return s, err
	}
	ct, err := c.Uint64()
	if err != nil {
		return s, err
	}
	tid, err := c.Uint64()
	if err != nil {
		return s, err
	}
	subsys, err := c.CString()
	if err != nil {
		return s, err
	}
	msg, err := c.CString()
	if err != nil {
		return s, err
	}

	s.FirstProcID = first
	s.SecondProcID = second
	s.ContinuousTime = ct
	s.ThreadID = tid
	s.Subsystem = subsys
	s.Message = msg
	return s, nil
}

func indexNUL(b []byte) int {
	for i, v := range b {
		if v == 0 {
			return i
		}
	}
	return -1
}
