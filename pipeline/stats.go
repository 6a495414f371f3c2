package pipeline

import "sync/atomic"

// Stats accumulates non-fatal counters across a driver's run, making the
// testable properties around resolution failures and oversize healing
// externally observable without re-walking every emitted record.
type Stats struct {
	RecordsEmitted         int64
	FramingErrors          int64
	CatalogMisses          int64
	FormatRefUnresolved    int64
	MissingTimesync        int64
	OversizeHealed         int64
	OversizeResidualMisses int64
	UnknownDecoders        int64
	MissingData            int64
}

func (s *Stats) incRecordsEmitted()      { atomic.AddInt64(&s.RecordsEmitted, 1) }
func (s *Stats) incFramingErrors()       { atomic.AddInt64(&s.FramingErrors, 1) }
func (s *Stats) incCatalogMisses()       { atomic.AddInt64(&s.CatalogMisses, 1) }
func (s *Stats) incFormatRefUnresolved() { atomic.AddInt64(&s.FormatRefUnresolved, 1) }
func (s *Stats) incMissingTimesync()     { atomic.AddInt64(&s.MissingTimesync, 1) }
func (s *Stats) incOversizeHealed()      { atomic.AddInt64(&s.OversizeHealed, 1) }
func (s *Stats) addOversizeResidual(n int) {
	atomic.AddInt64(&s.OversizeResidualMisses, int64(n))
}
func (s *Stats) addUnknownDecoders(n int) { atomic.AddInt64(&s.UnknownDecoders, int64(n)) }
func (s *Stats) addMissingData(n int)     { atomic.AddInt64(&s.MissingData, int64(n)) }

// Merge folds other's counters into s, used to combine per-driver stats
// after a parallel multi-file run.
func (s *Stats) Merge(other *Stats) {
	atomic.AddInt64(&s.RecordsEmitted, atomic.LoadInt64(&other.RecordsEmitted))
	atomic.AddInt64(&s.FramingErrors, atomic.LoadInt64(&other.FramingErrors))
	atomic.AddInt64(&s.CatalogMisses, atomic.LoadInt64(&other.CatalogMisses))
	atomic.AddInt64(&s.FormatRefUnresolved, atomic.LoadInt64(&other.FormatRefUnresolved))
	atomic.AddInt64(&s.MissingTimesync, atomic.LoadInt64(&other.MissingTimesync))
	atomic.AddInt64(&s.OversizeHealed, atomic.LoadInt64(&other.OversizeHealed))
	atomic.AddInt64(&s.OversizeResidualMisses, atomic.LoadInt64(&other.OversizeResidualMisses))
	atomic.AddInt64(&s.UnknownDecoders, atomic.LoadInt64(&other.UnknownDecoders))
	atomic.AddInt64(&s.MissingData, atomic.LoadInt64(&other.MissingData))
}
