/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package oversize decodes oversize chunks and implements the cross-file
// accumulator the pipeline uses to resolve firehose records whose
// message data exceeded a single inline data item. It also decodes the
// statedump and simpledump side-channel chunk kinds, which produce their
// own LogRecords rather than feeding the oversize map.
package oversize

import (
	"sync"

	"github.com/gravwell/unifiedlog/breader"
)

// Key identifies one oversize payload. Exactly one firehose record
// references a given Key.
type Key struct {
	FirstProcID    uint64
	SecondProcID   uint32
	ContinuousTime uint64
	DataRefIndex   uint32
}

// Entry is one decoded oversize payload: its raw data items, inlined
// verbatim (the assembler re-parses them the same way it would inline
// firehose items).
type Entry struct {
	FirstProcID    uint64
	SecondProcID   uint32
	ContinuousTime uint64
	Items          [][]byte
}

// Parse decodes one oversize chunk's payload.
func Parse(payload []byte) (Key, Entry, error) {
	c := breader.NewCursor(payload)

	first, err := c.Uint64()
	if err != nil {
		return Key{}, Entry{}, err
	}
	second, err := c.Uint32()
	if err != nil {
		return Key{}, Entry{}, err
	}
	ct, err := c.Uint64()
	if err != nil {
		return Key{}, Entry{}, err
	}
	ref, err := c.Uint32()
	if err != nil {
		return Key{}, Entry{}, err
	}
	count, err := c.Uint32()
	if err != nil {
		return Key{}, Entry{}, err
	}

	items := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		size, err := c.Uint32()
		if err != nil {
			break
		}
		b, err := c.Take(int(size))
		if err != nil {
			break
		}
		items = append(items, append([]byte(nil), b...))
	}

	k := Key{FirstProcID: first, SecondProcID: second, ContinuousTime: ct, DataRefIndex: ref}
	e := Entry{FirstProcID: first, SecondProcID: second, ContinuousTime: ct, Items: items}
	return k, e, nil
}

// Resolver is invoked once an oversize Entry for a deferred key becomes
// available. It is called once, from Defer (if the key is already
// present), or from the Add or Merge that brings the key's entry in.
// ResolveDeferred does not call resolvers; it only counts those left.
type Resolver func(Entry)

// Store is the cross-file oversize accumulator. Exclusively owned by one
// pipeline driver; when drivers run one-per-file in parallel, each owns
// a private Store and the results are combined with Merge before the
// final ResolveDeferred pass.
type Store struct {
	mtx      sync.Mutex
	entries  map[Key]Entry
	deferred map[Key][]Resolver
}

// NewStore returns an empty oversize accumulator.
func NewStore() *Store {
	return &Store{
		entries:  make(map[Key]Entry),
		deferred: make(map[Key][]Resolver),
	}
}

// Add records a decoded oversize entry, immediately invoking and
// clearing any resolvers that were waiting on its key.
func (s *Store) Add(k Key, e Entry) {
	s.mtx.Lock()
	s.entries[k] = e
	waiting := s.deferred[k]
	delete(s.deferred, k)
	s.mtx.Unlock()

	for _, r := range waiting {
		r(e)
	}
}

// Lookup resolves k immediately if known, reporting a miss otherwise
// (the caller should then call Defer to be notified later).
func (s *Store) Lookup(k Key) (Entry, bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	e, ok := s.entries[k]
	return e, ok
}

// Defer registers r to run once k's entry arrives. If k is already
// known, r is invoked immediately rather than queued.
func (s *Store) Defer(k Key, r Resolver) {
	s.mtx.Lock()
	if e, ok := s.entries[k]; ok {
		s.mtx.Unlock()
		r(e)
		return
	}
	s.deferred[k] = append(s.deferred[k], r)
	s.mtx.Unlock()
}

// ResolveDeferred is called once after all files have been scanned. Any
// resolver still waiting did not find its entry anywhere in the
// archive; residualMisses counts them so callers can track how often an
// oversize reference never resolves.
func (s *Store) ResolveDeferred() (residualMisses int) {
	s.mtx.Lock()
	remaining := s.deferred
	s.deferred = make(map[Key][]Resolver)
	s.mtx.Unlock()

	for _, rs := range remaining {
		residualMisses += len(rs)
	}
	return residualMisses
}

// Merge unions b's entries into a and returns a, used to combine
// per-file partial maps from a parallel multi-driver run before the
// final deferred-resolution pass. Deferred resolvers are combined too,
// so a resolver registered against one file's Store still fires if
// another file's Store held the matching entry.
func Merge(a, b *Store) *Store {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	a.mtx.Lock()
	defer a.mtx.Unlock()

	for k, e := range b.entries {
		if _, ok := a.entries[k]; !ok {
			a.entries[k] = e
		}
	}
	for k, rs := range a.deferred {
		if e, ok := a.entries[k]; ok {
			for _, r := range rs {
				r(e)
			}
			delete(a.deferred, k)
		}
	}
	for k, rs := range b.deferred {
		if e, ok := a.entries[k]; ok {
			for _, r := range rs {
				r(e)
			}
			continue
		}
		a.deferred[k] = append(a.deferred[k], rs...)
	}
	return a
}
