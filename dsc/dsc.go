/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package dsc decodes "dyld shared cache" string files: the shared
// system-library format-string table referenced by firehose records
// whose flags mark them "shared cache" (flag 0x000c). Resolution
// mirrors uuidtext but adds a UUID indirection: a range entry names a
// uuid-table index, not a path directly.
package dsc

import (
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/gravwell/unifiedlog/breader"
)

const headerMagic uint32 = 0x64736300 // read little-endian: on-disk bytes 00 63 73 64

var (
	// ErrBadMagic is returned when the header's magic doesn't match headerMagic.
	ErrBadMagic = errors.New("dsc: bad header magic")
	// ErrNotFound is returned by Resolve when no range entry covers the offset.
	ErrNotFound = errors.New("dsc: offset not in any range entry")
)

// rangeEntry is one (range-start, size, uuid-index) table row.
type rangeEntry struct {
	start     uint32
	size      uint32
	uuidIndex uint32
	strOffset uint32
}

// uuidEntry names one binary contributing strings to the shared cache.
type uuidEntry struct {
	id   uuid.UUID
	path string
}

// Dsc is a single decoded DSC file.
type Dsc struct {
	ranges []rangeEntry
	uuids  []uuidEntry
	blob   []byte
}

// Parse decodes a DSC file's raw bytes: header (magic, version, range
// count, uuid count), range table, uuid table (UUID + path-offset into a
// following path table, inlined here as NUL-terminated strings), then
// the format-string blob.
func Parse(buf []byte) (*Dsc, error) {
	c := breader.NewCursor(buf)

	magic, err := c.Uint32()
	if err != nil {
		return nil, err
	}
	if magic != headerMagic {
		return nil, ErrBadMagic
	}
	if _, err := c.Uint32(); err != nil { // version
		return nil, err
	}
	rangeCount, err := c.Uint32()
	if err != nil {
		return nil, err
	}
	uuidCount, err := c.Uint32()
	if err != nil {
		return nil, err
	}

	ranges := make([]rangeEntry, rangeCount)
	for i := range ranges {
		start, err := c.Uint32()
		if err != nil {
			return nil, err
		}
		size, err := c.Uint32()
		if err != nil {
			return nil, err
		}
		uidx, err := c.Uint32()
		if err != nil {
			return nil, err
		}
		stroff, err := c.Uint32()
		if err != nil {
			return nil, err
		}
		ranges[i] = rangeEntry{start: start, size: size, uuidIndex: uidx, strOffset: stroff}
	}

	uuids := make([]uuidEntry, uuidCount)
	for i := range uuids {
		raw, err := c.UUID()
		if err != nil {
			return nil, err
		}
		id, err := uuid.FromBytes(raw[:])
		if err != nil {
			return nil, err
		}
		if _, err := c.Uint32(); err != nil { // binary-path-offset, path is inlined below
			return nil, err
		}
		path, err := c.CString()
		if err != nil {
			return nil, err
		}
		uuids[i] = uuidEntry{id: id, path: path}
	}

	blob := c.Bytes()

	d := &Dsc{ranges: ranges, uuids: uuids, blob: blob}
	sort.Slice(d.ranges, func(i, j int) bool { return d.ranges[i].start < d.ranges[j].start })
	return d, nil
}

// Offsets returns every range entry's start offset, in ascending order,
// mirroring uuidtext.Table.Offsets for the "strings" debug command.
func (d *Dsc) Offsets() []uint32 {
	offs := make([]uint32, len(d.ranges))
	for i, r := range d.ranges {
		offs[i] = r.start
	}
	return offs
}

// Resolve returns the format string and owning-binary path for file
// offset off, following the range entry's extra UUID indirection to its
// owning image.
func (d *Dsc) Resolve(off uint32) (formatString string, path string, err error) {
	i := sort.Search(len(d.ranges), func(i int) bool {
		return d.ranges[i].start+d.ranges[i].size > off
	})
	if i >= len(d.ranges) || off < d.ranges[i].start {
		return "", "", ErrNotFound
	}
	re := d.ranges[i]
	base := re.strOffset + (off - re.start)
	if int(base) > len(d.blob) {
		return "", "", ErrNotFound
	}
	rest := d.blob[base:]
	for j, b := range rest {
		if b == 0 {
			formatString = string(rest[:j])
			break
		}
	}
	if formatString == "" && len(rest) > 0 {
		formatString = string(rest)
	}
	if int(re.uuidIndex) < len(d.uuids) {
		path = d.uuids[re.uuidIndex].path
	}
	return formatString, path, nil
}

// UUIDAt returns the UUID at index i of the file's UUID table, and false
// when i is out of range.
func (d *Dsc) UUIDAt(i int) (uuid.UUID, bool) {
	if i < 0 || i >= len(d.uuids) {
		return uuid.UUID{}, false
	}
	return d.uuids[i].id, true
}
