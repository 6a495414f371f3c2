/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package pipeline wires the chunk framer, catalog, chunkset, firehose,
// oversize, timesync, and string-table packages into the reconstructed
// LogRecord sequence.
package pipeline

import (
	"io"

	"github.com/google/uuid"

	"github.com/gravwell/unifiedlog/catalog"
	"github.com/gravwell/unifiedlog/chunk"
	"github.com/gravwell/unifiedlog/chunkset"
	"github.com/gravwell/unifiedlog/dsc"
	"github.com/gravwell/unifiedlog/firehose"
	"github.com/gravwell/unifiedlog/oversize"
	"github.com/gravwell/unifiedlog/record"
	"github.com/gravwell/unifiedlog/timesync"
	"github.com/gravwell/unifiedlog/ulog"
	"github.com/gravwell/unifiedlog/uuidtext"
)

// Driver decodes one tracev3 file into a sequence of LogRecords. A
// Driver is single-use: create one per file via NewDriver, call Scan
// once, then drain Records.
type Driver struct {
	name string
	buf  []byte

	uuidStore *uuidtext.Store
	dscStore  *dsc.Store
	tsStore   *timesync.Store
	ovStore   *oversize.Store
	log       *ulog.Logger

	stats Stats

	bootUUID       uuid.UUID
	currentCatalog *catalog.Catalog
	pending        []*record.LogRecord
	warnedRefKinds map[uint16]bool
}

// NewDriver constructs a driver for one tracev3 file's raw bytes. The
// three stores are expected to be shared, read-only, across every
// driver in an archive; ovStore is private to this driver until merged
// by RunMany.
func NewDriver(name string, buf []byte, uuidStore *uuidtext.Store, dscStore *dsc.Store, tsStore *timesync.Store, ovStore *oversize.Store, log *ulog.Logger) *Driver {
	if log == nil {
		log = ulog.Discard()
	}
	return &Driver{
		name:           name,
		buf:            buf,
		uuidStore:      uuidStore,
		dscStore:       dscStore,
		tsStore:        tsStore,
		ovStore:        ovStore,
		log:            log,
		warnedRefKinds: make(map[uint16]bool),
	}
}

// Stats returns the driver's accumulated counters. Safe to call any time
// after Scan returns.
func (d *Driver) Stats() *Stats { return &d.stats }

// Scan decodes the entire file's chunks, populating the driver's
// internal pending-record buffer and its oversize store. It must
// complete (including, for multi-file runs, the cross-file merge and
// ResolveDeferred pass) before Records is called, so that oversize
// records healed by data appearing later in the stream (or in another
// file) resolve deterministically rather than racing a concurrent
// reader. This is the one deliberate departure from a byte-for-byte
// streaming iterator: an oversize reference can point at content the
// Driver hasn't seen yet, so resolution needs a second pass over the
// buffered records rather than a single forward scan.
func (d *Driver) Scan() error {
	framer := chunk.NewFramer(d.buf)
	for {
		ch, err := framer.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			d.stats.incFramingErrors()
			d.log.Warnf("tracev3 framing error in %s: %v", d.name, err)
			return err
		}
		d.dispatch(ch)
	}
}

func (d *Driver) dispatch(ch chunk.Chunk) {
	switch ch.Header.Tag {
	case chunk.TagHeader:
		h, err := chunk.ParseHeader(ch.Payload)
		if err != nil {
			d.stats.incFramingErrors()
			d.log.Warnf("bad header chunk in %s: %v", d.name, err)
			return
		}
		d.bootUUID = h.BootUUID
	case chunk.TagCatalog:
		cat, err := catalog.Parse(ch.Payload)
		if err != nil {
			d.stats.incFramingErrors()
			d.log.Warnf("bad catalog chunk in %s: %v", d.name, err)
			return
		}
		d.currentCatalog = cat
	case chunk.TagChunkset:
		raw, err := chunkset.Decompress(ch.Payload)
		if err != nil {
			d.stats.incFramingErrors()
			d.log.Warnf("bad chunkset in %s: %v", d.name, err)
			return
		}
		inner := chunk.NewFramer(raw)
		for {
			ic, err := inner.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				d.stats.incFramingErrors()
				return
			}
			d.dispatch(ic)
		}
	case chunk.TagFirehose:
		d.handleFirehose(ch.Payload)
	case chunk.TagOversize:
		d.handleOversize(ch.Payload)
	case chunk.TagStatedump:
		d.handleStatedump(ch.Payload)
	case chunk.TagSimpledump:
		d.handleSimpledump(ch.Payload)
	}
}

func (d *Driver) handleFirehose(payload []byte) {
	page, err := firehose.ParsePage(d.bootUUID, payload)
	if err != nil {
		d.stats.incFramingErrors()
		d.log.Warnf("bad firehose page in %s: %v", d.name, err)
		return
	}
	recs, err := firehose.DecodeRecords(page)
	if err != nil {
		d.stats.incFramingErrors()
		d.log.Warnf("truncated firehose page in %s: %v", d.name, err)
	}

	var pi catalog.ProcInfo
	var piOK bool
	if d.currentCatalog != nil {
		pi, piOK = d.currentCatalog.ProcInfoFor(page.FirstProcID, page.SecondProcID)
	}
	if !piOK {
		d.stats.incCatalogMisses()
	}

	for i := range recs {
		lr := d.buildLogRecord(&recs[i], page, pi, piOK)
		d.pending = append(d.pending, lr)
		d.stats.incRecordsEmitted()
	}
}

func (d *Driver) handleOversize(payload []byte) {
	key, entry, err := oversize.Parse(payload)
	if err != nil {
		d.stats.incFramingErrors()
		d.log.Warnf("bad oversize chunk in %s: %v", d.name, err)
		return
	}
	d.ovStore.Add(key, entry)
}

func (d *Driver) handleStatedump(payload []byte) {
	sd, err := oversize.ParseStatedump(payload)
	if err != nil {
		d.stats.incFramingErrors()
		d.log.Warnf("bad statedump chunk in %s: %v", d.name, err)
		return
	}
	lr := &record.LogRecord{
		ContinuousTime: sd.ContinuousTime,
		PID:            procPID(d, sd.FirstProcID, sd.SecondProcID),
		Level:          record.Statedump,
		ActivityID:     sd.ActivityID,
		Message:        sd.Title,
		RawData:        sd.Data,
		BootUUID:       d.bootUUID,
		SourceFile:     d.name,
	}
	d.resolveTime(lr)
	d.pending = append(d.pending, lr)
	d.stats.incRecordsEmitted()
}

func (d *Driver) handleSimpledump(payload []byte) {
	sd, err := oversize.ParseSimpledump(payload)
	if err != nil {
		d.stats.incFramingErrors()
		d.log.Warnf("bad simpledump chunk in %s: %v", d.name, err)
		return
	}
	lr := &record.LogRecord{
		ContinuousTime: sd.ContinuousTime,
		ThreadID:       sd.ThreadID,
		PID:            procPID(d, sd.FirstProcID, sd.SecondProcID),
		Level:          record.Simpledump,
		Subsystem:      sd.Subsystem,
		Message:        sd.Message,
		BootUUID:       d.bootUUID,
		SourceFile:     d.name,
	}
	d.resolveTime(lr)
	d.pending = append(d.pending, lr)
	d.stats.incRecordsEmitted()
}

func procPID(d *Driver, first uint64, second uint32) int32 {
	if d.currentCatalog == nil {
		return 0
	}
	if pi, ok := d.currentCatalog.ProcInfoFor(first, second); ok {
		return pi.PID
	}
	return 0
}

func (d *Driver) resolveTime(lr *record.LogRecord) {
	t, ok := d.tsStore.Resolve(d.bootUUID, lr.ContinuousTime)
	if !ok {
		d.stats.incMissingTimesync()
		return
	}
	lr.Time = t
	lr.TimeValid = true
}

// Records returns a pull iterator over every LogRecord this driver
// decoded during Scan, in the order they were produced (page-local
// ordering preserved, no global sort). Call only after Scan (and, for
// multi-file archives, the cross-file oversize merge) has completed.
func (d *Driver) Records() func() (record.LogRecord, bool, error) {
	i := 0
	return func() (record.LogRecord, bool, error) {
		if i >= len(d.pending) {
			return record.LogRecord{}, false, nil
		}
		lr := d.pending[i]
		i++
		return *lr, true, nil
	}
}
