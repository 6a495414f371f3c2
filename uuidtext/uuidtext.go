/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package uuidtext decodes per-binary UUID text files: the format-string
// tables stored under a two-hex-char directory convention and indexed by
// (range-start, size) to resolve a firehose record's format-string
// offset to bytes. Parsing is lazy and idempotent: a Table is built once
// from raw bytes and then only read.
package uuidtext

import (
	"errors"
	"sort"

	"github.com/gravwell/unifiedlog/breader"
)

const headerMagic uint32 = 0x66778899

var (
	// ErrBadMagic is returned when the header's magic field doesn't match.
	ErrBadMagic = errors.New("uuidtext: bad header magic")
	// ErrNotFound is returned by Resolve when no entry's range contains
	// the requested offset.
	ErrNotFound = errors.New("uuidtext: offset not in any range entry")
)

// rangeEntry is one (range-start, size) table entry; the format-string
// bytes for offset O within this range live at
// blobBase + (O - Start) within the string blob.
type rangeEntry struct {
	start    uint32
	size     uint32
	blobBase uint32
}

// Table is a single decoded UUID text file: the owning binary's path and
// a sorted table of format-string ranges.
type Table struct {
	Path    string
	entries []rangeEntry
	blob    []byte
}

// Parse decodes the raw bytes of a UUID text file. The layout is:
// header (magic, unknown[4], entry count u32, unknown u32), N entries of
// (range-start u32, entry-size u32), the string blob, then the owning
// binary's path as a NUL-terminated trailer.
func Parse(buf []byte) (*Table, error) {
	c := breader.NewCursor(buf)

	magic, err := c.Uint32()
	if err != nil {
		return nil, err
	}
	if magic != headerMagic {
		return nil, ErrBadMagic
	}
	if err := c.Skip(4); err != nil { // unknown field (flags/version)
		return nil, err
	}
	count, err := c.Uint32()
	if err != nil {
		return nil, err
	}
	if err := c.Skip(4); err != nil { // unknown field
		return nil, err
	}

	type rawEntry struct {
		start, size uint32
	}
	raw := make([]rawEntry, count)
	for i := range raw {
		start, err := c.Uint32()
		if err != nil {
			return nil, err
		}
		size, err := c.Uint32()
		if err != nil {
			return nil, err
		}
		raw[i] = rawEntry{start, size}
	}

	// the string blob is the concatenation of each entry's format
	// strings, in table order; blobBase accumulates as we assign ranges
	t := &Table{}
	var blobBase uint32
	entries := make([]rangeEntry, count)
	for i, re := range raw {
		entries[i] = rangeEntry{start: re.start, size: re.size, blobBase: blobBase}
		blobBase += re.size
	}
	blob, err := c.Take(int(blobBase))
	if err != nil {
		return nil, err
	}
	t.blob = blob

	path, err := c.CString()
	if err != nil {
		return nil, err
	}
	t.Path = path

	sort.Slice(entries, func(i, j int) bool { return entries[i].start < entries[j].start })
	t.entries = entries
	return t, nil
}

// Offsets returns every range entry's start offset, in ascending order,
// for tools that want to dump a table's full contents (tracev3cat
// strings) rather than resolve one specific offset.
func (t *Table) Offsets() []uint32 {
	offs := make([]uint32, len(t.entries))
	for i, e := range t.entries {
		offs[i] = e.start
	}
	return offs
}

// Resolve returns the NUL-terminated format string beginning at file
// offset off. The same (table, offset) pair always yields identical
// bytes since Table is immutable after Parse.
func (t *Table) Resolve(off uint32) (string, error) {
	i := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].start+t.entries[i].size > off
	})
	if i >= len(t.entries) || off < t.entries[i].start {
		return "", ErrNotFound
	}
	e := t.entries[i]
	base := e.blobBase + (off - e.start)
	if int(base) > len(t.blob) {
		return "", ErrNotFound
	}
	rest := t.blob[base:]
	for j, b := range rest {
		if b == 0 {
			return string(rest[:j]), nil
		}
	}
	return string(rest), nil
}
