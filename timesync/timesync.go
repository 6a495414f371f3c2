/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package timesync decodes .timesync files and reconstructs wall-clock
// timestamps from continuous-time ticks. Each boot's sync records are
// loaded once and treated as read-only shared state thereafter.
package timesync

import (
	"encoding/binary"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrTruncated is returned when a .timesync buffer ends mid-record.
	ErrTruncated = errors.New("timesync: truncated record")
	// ErrBadMagic is returned when a boot header's magic field doesn't
	// match the expected constant.
	ErrBadMagic = errors.New("timesync: bad boot header magic")
)

const (
	bootHeaderMagic  uint16 = 0xbbb0
	syncRecordMagic  uint16 = 0xbbb1
	bootHeaderSize          = 48
	syncRecordSize          = 32
)

// syncPoint is one (continuous time, wall clock) correlation within a
// boot.
type syncPoint struct {
	continuous uint64
	wallNS     int64
}

// boot holds the header plus every sync record seen for one boot UUID,
// kept sorted by continuous time for the binary search in Resolve.
type boot struct {
	id            uuid.UUID
	timebaseNum   uint32
	timebaseDenom uint32
	bootWallNS    int64
	points        []syncPoint // sorted ascending by continuous
}

// insert adds a sync point keeping points sorted; timesync files are
// normally already ordered but the store tolerates out-of-order appends
// from multiple files covering the same boot.
func (b *boot) insert(p syncPoint) {
	i := sort.Search(len(b.points), func(i int) bool { return b.points[i].continuous >= p.continuous })
	b.points = append(b.points, syncPoint{})
	copy(b.points[i+1:], b.points[i:])
	b.points[i] = p
}

// Store is the per-archive collection of boot tables. Safe for
// concurrent use: LoadFile takes the write lock, and Resolve and Known
// only read under the read lock.
type Store struct {
	mtx   sync.RWMutex
	boots map[uuid.UUID]*boot
}

// NewStore returns an empty timesync store.
func NewStore() *Store {
	return &Store{boots: make(map[uuid.UUID]*boot)}
}

// LoadFile decodes one .timesync file's bytes, merging its boot records
// into the store. A file may contain records for more than one boot.
func (s *Store) LoadFile(buf []byte) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	var cur *boot
	for off := 0; off < len(buf); {
		if off+2 > len(buf) {
			return ErrTruncated
		}
		magic := binary.LittleEndian.Uint16(buf[off:])
		switch magic {
		case bootHeaderMagic:
			if off+bootHeaderSize > len(buf) {
				return ErrTruncated
			}
			b := buf[off : off+bootHeaderSize]
			id, err := uuid.FromBytes(b[8:24])
			if err != nil {
				return err
			}
			nb := &boot{
				id:            id,
				timebaseNum:   binary.LittleEndian.Uint32(b[24:28]),
				timebaseDenom: binary.LittleEndian.Uint32(b[28:32]),
				bootWallNS:    int64(binary.LittleEndian.Uint64(b[32:40])),
			}
			if existing, ok := s.boots[id]; ok {
				cur = existing
			} else {
				s.boots[id] = nb
				cur = nb
			}
			off += bootHeaderSize
		case syncRecordMagic:
			if off+syncRecordSize > len(buf) {
				return ErrTruncated
			}
			b := buf[off : off+syncRecordSize]
			if cur == nil {
				return ErrBadMagic
			}
			cur.insert(syncPoint{
				continuous: binary.LittleEndian.Uint64(b[8:16]),
				wallNS:     int64(binary.LittleEndian.Uint64(b[16:24])),
			})
			off += syncRecordSize
		default:
			return ErrBadMagic
		}
	}
	return nil
}

// Resolve returns the wall-clock time for continuous time c within boot
// bootID. ok is false if bootID is unknown to the store, in which case
// the caller marks the record's timestamp missing.
func (s *Store) Resolve(bootID uuid.UUID, c uint64) (t time.Time, ok bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	b, known := s.boots[bootID]
	if !known {
		return time.Time{}, false
	}

	num, denom := int64(b.timebaseNum), int64(b.timebaseDenom)
	if denom == 0 {
		denom = 1
	}
	if num == 0 {
		num = 1
	}

	// find the greatest sync point with continuous <= c
	i := sort.Search(len(b.points), func(i int) bool { return b.points[i].continuous > c }) - 1
	if i < 0 {
		// no sync point precedes c: fall back to the boot header itself
		delta := int64(c) * num / denom
		return time.Unix(0, b.bootWallNS+delta), true
	}
	p := b.points[i]
	delta := int64(c-p.continuous) * num / denom
	return time.Unix(0, p.wallNS+delta), true
}

// Known reports whether bootID has any loaded sync data.
func (s *Store) Known(bootID uuid.UUID) bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	_, ok := s.boots[bootID]
	return ok
}
