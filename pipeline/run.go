package pipeline

import (
	"golang.org/x/sync/errgroup"

	"github.com/gravwell/unifiedlog/dsc"
	"github.com/gravwell/unifiedlog/oversize"
	"github.com/gravwell/unifiedlog/record"
	"github.com/gravwell/unifiedlog/timesync"
	"github.com/gravwell/unifiedlog/ulog"
	"github.com/gravwell/unifiedlog/uuidtext"
)

// Source is one tracev3 file to be decoded, named for SourceFile/error
// reporting.
type Source struct {
	Name string
	Data []byte
}

// Run decodes a single tracev3 file and returns a pull iterator over its
// records plus the final stats. Any oversize reference left unresolved
// within this one file is healed against nothing else and stays a
// placeholder (residual misses are counted in Stats).
func Run(src Source, uuidStore *uuidtext.Store, dscStore *dsc.Store, tsStore *timesync.Store, log *ulog.Logger) (func() (record.LogRecord, bool, error), *Stats, error) {
	ov := oversize.NewStore()
	d := NewDriver(src.Name, src.Data, uuidStore, dscStore, tsStore, ov, log)
	if err := d.Scan(); err != nil {
		return nil, d.Stats(), err
	}
	residual := ov.ResolveDeferred()
	d.stats.addOversizeResidual(residual)
	return d.Records(), d.Stats(), nil
}

// RunMany decodes every source concurrently, one Driver per file, via
// golang.org/x/sync/errgroup, sharing the read-only uuidtext/dsc/
// timesync stores across all of them. Each driver's private oversize
// store is merged into one combined store before the deferred-
// resolution pass runs, so an oversize entry in file B can heal a
// record decoded from file A. The returned iterator walks each driver's
// records in turn, file order, with no global sort.
func RunMany(srcs []Source, uuidStore *uuidtext.Store, dscStore *dsc.Store, tsStore *timesync.Store, log *ulog.Logger) (func() (record.LogRecord, bool, error), *Stats, error) {
	drivers := make([]*Driver, len(srcs))
	stores := make([]*oversize.Store, len(srcs))

	var g errgroup.Group
	for i, src := range srcs {
		i, src := i, src
		stores[i] = oversize.NewStore()
		d := NewDriver(src.Name, src.Data, uuidStore, dscStore, tsStore, stores[i], log)
		drivers[i] = d
		g.Go(func() error {
			return d.Scan()
		})
	}
	scanErr := g.Wait()

	var merged *oversize.Store
	for _, s := range stores {
		if merged == nil {
			merged = s
			continue
		}
		merged = oversize.Merge(merged, s)
	}
	if merged == nil {
		merged = oversize.NewStore()
	}
	residual := merged.ResolveDeferred()

	stats := &Stats{}
	for _, d := range drivers {
		stats.Merge(d.Stats())
	}
	stats.addOversizeResidual(residual)

	idx := 0
	var cur func() (record.LogRecord, bool, error)
	next := func() (record.LogRecord, bool, error) {
		for {
			if cur == nil {
				if idx >= len(drivers) {
					return record.LogRecord{}, false, nil
				}
				cur = drivers[idx].Records()
				idx++
			}
			lr, ok, err := cur()
			if err != nil {
				return lr, ok, err
			}
			if !ok {
				cur = nil
				continue
			}
			return lr, true, nil
		}
	}
	return next, stats, scanErr
}
