/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package catalog decodes catalog chunks: the process/subsystem/UUID
// metadata blocks that scope the firehose pages following them, until
// the next catalog supersedes them.
package catalog

import (
	"github.com/google/uuid"

	"github.com/gravwell/unifiedlog/breader"
)

// SubsystemCategory is one (subsystem, category) string pair referenced
// by proc-info entries.
type SubsystemCategory struct {
	Subsystem string
	Category  string
}

// ProcInfo describes one process scoped by this catalog.
type ProcInfo struct {
	MainUUID     uuid.UUID
	DSCUUID      uuid.UUID
	PID          int32
	EUID         uint32
	FirstProcID  uint64
	SecondProcID uint32

	// UUIDRefs indexes into the catalog's UUID list; used by firehose
	// records whose flags name an alternate/absolute UUID by index.
	UUIDRefs []int
	// SubsystemCatRefs indexes into SubsystemCats.
	SubsystemCatRefs []int

	// ImagePath is left empty by Parse, and nothing in this module fills
	// it in: the pipeline resolves the image path per record from
	// MainUUID and stores it on the record, not here.
	ImagePath string
}

// SubChunk names the proc-ids active over one continuous-time range
// within the catalog.
type SubChunk struct {
	FirstContinuousTime uint64
	LastContinuousTime  uint64
	ProcIDs             []uint64 // packed (FirstProcID<<32 | SecondProcID) per entry, see ProcIDKey
}

// ProcIDKey packs a (first, second) proc-id pair into the same
// representation used in SubChunk.ProcIDs and firehose page headers, so
// matching a firehose page to its owning catalog entry is a plain map
// lookup.
func ProcIDKey(first uint64, second uint32) uint64 {
	return first<<32 | uint64(second)
}

// Catalog is one decoded catalog chunk.
type Catalog struct {
	UUIDs         []uuid.UUID
	ProcInfos     []ProcInfo
	SubsystemCats []SubsystemCategory
	SubChunks     []SubChunk
}

// Parse decodes a catalog chunk's payload: a fixed header, a
// subsystem/category string table, a UUID list, proc-info entries, then
// sub-chunks.
func Parse(payload []byte) (*Catalog, error) {
	c := breader.NewCursor(payload)

	subOff, err := c.Uint16()
	if err != nil {
		return nil, err
	}
	subSize, err := c.Uint16()
	if err != nil {
		return nil, err
	}
	procInfoCount, err := c.Uint16()
	if err != nil {
		return nil, err
	}
	subChunkCount, err := c.Uint16()
	if err != nil {
		return nil, err
	}
	if _, err := c.Uint32(); err != nil { // reserved/padding to 8-byte header boundary
		return nil, err
	}

	uuidCount, err := c.Uint16()
	if err != nil {
		return nil, err
	}
	if _, err := c.Uint16(); err != nil { // reserved
		return nil, err
	}

	uuids := make([]uuid.UUID, uuidCount)
	for i := range uuids {
		raw, err := c.UUID()
		if err != nil {
			return nil, err
		}
		id, err := uuid.FromBytes(raw[:])
		if err != nil {
			return nil, err
		}
		uuids[i] = id
	}

	procInfos := make([]ProcInfo, procInfoCount)
	for i := range procInfos {
		pi, err := parseProcInfo(c, uuids)
		if err != nil {
			return nil, err
		}
		procInfos[i] = pi
	}

	subChunks := make([]SubChunk, subChunkCount)
	for i := range subChunks {
		sc, err := parseSubChunk(c)
		if err != nil {
			return nil, err
		}
		subChunks[i] = sc
	}

	// the subsystem/category string table lives at a caller-relative
	// offset (subOff) from the start of the payload; it is decoded
	// separately because its size is declared up front rather than
	// interleaved with the tables above
	cats, err := parseSubsystemCats(payload, int(subOff), int(subSize))
	if err != nil {
		return nil, err
	}

	return &Catalog{
		UUIDs:         uuids,
		ProcInfos:     procInfos,
		SubsystemCats: cats,
		SubChunks:     subChunks,
	}, nil
}

func parseProcInfo(c *breader.Cursor, uuids []uuid.UUID) (ProcInfo, error) {
	var pi ProcInfo

	mainIdx, err := c.Uint16()
	if err != nil {
		return pi, err
	}
	dscIdx, err := c.Uint16()
	if err != nil {
		return pi, err
	}
	pid, err := c.Int32()
	if err != nil {
		return pi, err
	}
	euid, err := c.Uint32()
	if err != nil {
		return pi, err
	}
	firstProcID, err := c.Uint64()
	if err != nil {
		return pi, err
	}
	secondProcID, err := c.Uint32()
	if err != nil {
		return pi, err
	}
	numUUIDRefs, err := c.Uint32()
	if err != nil {
		return pi, err
	}
	numCatRefs, err := c.Uint32()
	if err != nil {
		return pi, err
	}

	uuidRefs := make([]int, numUUIDRefs)
	for i := range uuidRefs {
		v, err := c.Uint16()
		if err != nil {
			return pi, err
		}
		uuidRefs[i] = int(v)
	}
	catRefs := make([]int, numCatRefs)
	for i := range catRefs {
		v, err := c.Uint16()
		if err != nil {
			return pi, err
		}
		catRefs[i] = int(v)
	}

	if int(mainIdx) < len(uuids) {
		pi.MainUUID = uuids[mainIdx]
	}
	if int(dscIdx) < len(uuids) {
		pi.DSCUUID = uuids[dscIdx]
	}
	pi.PID = pid
	pi.EUID = euid
	pi.FirstProcID = firstProcID
	pi.SecondProcID = secondProcID
	pi.UUIDRefs = uuidRefs
	pi.SubsystemCatRefs = catRefs
	return pi, nil
}

func parseSubChunk(c *breader.Cursor) (SubChunk, error) {
	var sc SubChunk
	first, err := c.Uint64()
	if err != nil {
		return sc, err
	}
	last, err := c.Uint64()
	if err != nil {
		return sc, err
	}
	count, err := c.Uint32()
	if err != nil {
		return sc, err
	}
	ids := make([]uint64, count)
	for i := range ids {
		fp, err := c.Uint64()
		if err != nil {
			return sc, err
		}
		sp, err := c.Uint32()
		if err != nil {
			return sc, err
		}
		ids[i] = ProcIDKey(fp, sp)
	}
	sc.FirstContinuousTime = first
	sc.LastContinuousTime = last
	sc.ProcIDs = ids
	return sc, nil
}

func parseSubsystemCats(payload []byte, off, size int) ([]SubsystemCategory, error) {
	if off == 0 && size == 0 {
		return nil, nil
	}
	if off < 0 || size < 0 || off+size > len(payload) {
		return nil, breader.ErrOutOfRange
	}
	c := breader.NewCursor(payload[off : off+size])
	var cats []SubsystemCategory
	for c.Len() > 0 {
		subsystem, err := c.CString()
		if err != nil {
			break
		}
		category, err := c.CString()
		if err != nil {
			break
		}
		cats = append(cats, SubsystemCategory{Subsystem: subsystem, Category: category})
	}
	return cats, nil
}

// ProcInfoFor returns the proc-info entry matching (firstProcID,
// secondProcID): the owning process of a firehose page is whichever
// proc-info entry in the most recent catalog carries that exact proc-id
// pair.
func (cat *Catalog) ProcInfoFor(firstProcID uint64, secondProcID uint32) (ProcInfo, bool) {
	for _, pi := range cat.ProcInfos {
		if pi.FirstProcID == firstProcID && pi.SecondProcID == secondProcID {
			return pi, true
		}
	}
	return ProcInfo{}, false
}
