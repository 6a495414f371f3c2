package pipeline

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/gravwell/unifiedlog/assembler"
	"github.com/gravwell/unifiedlog/catalog"
	"github.com/gravwell/unifiedlog/chunk"
	"github.com/gravwell/unifiedlog/firehose"
	"github.com/gravwell/unifiedlog/oversize"
	"github.com/gravwell/unifiedlog/record"
)

// buildLogRecord lifts one decoded firehose.Record, in the scope of
// page and its owning proc-info (if found), into a record.LogRecord.
func (d *Driver) buildLogRecord(rec *firehose.Record, page *firehose.Page, pi catalog.ProcInfo, piOK bool) *record.LogRecord {
	lr := &record.LogRecord{
		ContinuousTime:   rec.ContinuousTime,
		ThreadID:         rec.ThreadID,
		BootUUID:         d.bootUUID,
		SourceFile:       d.name,
		ActivityID:       rec.ActivityID,
		ParentActivityID: rec.ParentActivityID,
	}
	if piOK {
		lr.PID = pi.PID
		lr.EUID = pi.EUID
		lr.Process = d.resolveImagePath(pi.MainUUID)
	}
	d.resolveTime(lr)

	if rec.Type == firehose.RecordLoss {
		lr.Level = record.Loss
		lr.Message = rec.Message
		return lr
	}

	d.applyLevel(lr, rec)

	if rec.HasSubsystemCat && piOK && d.currentCatalog != nil {
		if rec.SubsystemCatIndex < len(pi.SubsystemCatRefs) {
			globalIdx := pi.SubsystemCatRefs[rec.SubsystemCatIndex]
			if globalIdx >= 0 && globalIdx < len(d.currentCatalog.SubsystemCats) {
				sc := d.currentCatalog.SubsystemCats[globalIdx]
				lr.Subsystem = sc.Subsystem
				lr.Category = sc.Category
			}
		}
	}

	if rec.Type == firehose.RecordSignpost {
		lr.SignpostID = rec.SignpostID
		lr.SignpostScope = signpostScope(rec.Scope)
		lr.SignpostKind = signpostKind(rec.Kind)
		if rec.HasSignpost {
			if name, sender, ok := d.resolveFormatRef(rec.SignpostName, pi); ok {
				lr.SignpostName = name
				if sender != "" {
					lr.Sender = sender
				}
			}
		}
	}

	formatStr, sender, ok := d.resolveFormatRef(rec.FormatRef, pi)
	if sender != "" {
		lr.Sender = sender
	} else {
		lr.Sender = lr.Process
	}
	if !ok {
		d.stats.incFormatRefUnresolved()
		lr.Message = missingFormatPlaceholder(rec.FormatRef, pi)
		return lr
	}

	msg, key, hasRef, resolved := d.renderMessage(rec, page, formatStr)
	lr.Message = msg
	if hasRef && !resolved {
		captured := lr
		capturedRec, capturedFormat := rec, formatStr
		d.ovStore.Defer(key, func(e oversize.Entry) {
			captured.Message = d.renderMessageWithEntry(capturedRec, capturedFormat, e)
			d.stats.incOversizeHealed()
		})
	}
	return lr
}

func signpostScope(scope uint8) record.SignpostScope {
	switch scope {
	case 1:
		return record.SignpostScopeProcess
	case 2:
		return record.SignpostScopeThread
	case 3:
		return record.SignpostScopeSystem
	default:
		return record.SignpostScopeNone
	}
}

func signpostKind(kind uint8) record.SignpostKind {
	switch kind {
	case 1:
		return record.SignpostKindBegin
	case 2:
		return record.SignpostKindEnd
	case 3:
		return record.SignpostKindEvent
	default:
		return record.SignpostKindNone
	}
}

func (d *Driver) applyLevel(lr *record.LogRecord, rec *firehose.Record) {
	switch rec.Type {
	case firehose.RecordNonActivity:
		switch rec.SubType {
		case chunk.SeverityInfo:
			lr.Level = record.Info
		case chunk.SeverityDebug:
			lr.Level = record.Debug
		case chunk.SeverityError:
			lr.Level = record.Error
		case chunk.SeverityFault:
			lr.Level = record.Fault
		default:
			lr.Level = record.Default
		}
	case firehose.RecordActivity:
		if rec.SubType == chunk.ActivityTransition {
			lr.Level = record.ActivityTransition
		} else {
			lr.Level = record.ActivityCreate
		}
	case firehose.RecordSignpost:
		switch rec.Scope {
		case 2:
			lr.Level = record.SignpostThread
		case 3:
			lr.Level = record.SignpostSystem
		default:
			lr.Level = record.SignpostProcess
		}
	case firehose.RecordTrace:
		lr.Level = record.Default
	}
}

// resolveImagePath resolves a main-executable UUID to its owning binary
// path via the shared uuidtext store, lazily — a process whose binary is
// never referenced by a record never pays this lookup (buildLogRecord
// only calls it for proc-infos that did match a page).
func (d *Driver) resolveImagePath(id uuid.UUID) string {
	if id == (uuid.UUID{}) {
		return ""
	}
	t, err := d.uuidStore.Get(id)
	if err != nil {
		return ""
	}
	return t.Path
}

// resolveFormatRef resolves ref to its format string and the path of the
// binary that owns it (used for LogRecord.Sender), using the one of the
// four resolution paths that ref.Kind names. ok is false when that path
// fails or the kind is unknown, in which case the caller emits a
// placeholder message.
func (d *Driver) resolveFormatRef(ref firehose.FormatRef, pi catalog.ProcInfo) (formatStr, sender string, ok bool) {
	switch ref.Kind {
	case firehose.FormatRefMainExe:
		t, err := d.uuidStore.Get(pi.MainUUID)
		if err != nil {
			return "", "", false
		}
		s, err := t.Resolve(ref.Offset)
		if err != nil {
			return "", "", false
		}
		return s, t.Path, true
	case firehose.FormatRefAbsolute:
		id := ref.UUID
		if !ref.HasUUID {
			id = pi.MainUUID
		}
		t, err := d.uuidStore.Get(id)
		if err != nil {
			return "", "", false
		}
		s, err := t.Resolve(ref.Offset)
		if err != nil {
			return "", "", false
		}
		return s, t.Path, true
	case firehose.FormatRefUUIDRelative:
		if d.currentCatalog == nil || ref.UUIDIdx < 0 || ref.UUIDIdx >= len(d.currentCatalog.UUIDs) {
			return "", "", false
		}
		id := d.currentCatalog.UUIDs[ref.UUIDIdx]
		t, err := d.uuidStore.Get(id)
		if err != nil {
			return "", "", false
		}
		s, err := t.Resolve(ref.Offset)
		if err != nil {
			return "", "", false
		}
		return s, t.Path, true
	case firehose.FormatRefSharedCache:
		dscFile, err := d.dscStore.Get(pi.DSCUUID)
		if err != nil {
			return "", "", false
		}
		s, path, err := dscFile.Resolve(ref.Offset)
		if err != nil {
			return "", "", false
		}
		return s, path, true
	default:
		if !d.warnedRefKinds[uint16(ref.Kind)] {
			d.warnedRefKinds[uint16(ref.Kind)] = true
			d.log.Warnf("unknown format-ref flag combination in %s (kind=%d)", d.name, ref.Kind)
		}
		return "", "", false
	}
}

// missingFormatPlaceholder renders the diagnostic placeholder for a
// record whose format string could not be resolved, naming whichever
// UUID the failed lookup would have used.
func missingFormatPlaceholder(ref firehose.FormatRef, pi catalog.ProcInfo) string {
	id := ref.UUID
	if !ref.HasUUID {
		if ref.Kind == firehose.FormatRefSharedCache {
			id = pi.DSCUUID
		} else {
			id = pi.MainUUID
		}
	}
	return fmt.Sprintf("<missing format string: UUID=%s>", id)
}

// renderMessage builds the assembler.Item list for rec's data items and
// renders formatStr against them, resolving oversize-referenced items
// immediately if already known. hasRef reports whether any item
// referenced the oversize store at all; resolved reports whether that
// reference (if any) was already satisfied.
func (d *Driver) renderMessage(rec *firehose.Record, page *firehose.Page, formatStr string) (msg string, key oversize.Key, hasRef bool, resolved bool) {
	resolved = true
	var entryItems [][]byte
	entryFound := false
	refSeen := false

	items := make([]assembler.Item, 0, len(rec.Items))
	refCounter := 0
	for _, di := range rec.Items {
		if di.IsRef {
			hasRef = true
			if !refSeen {
				refSeen = true
				key = oversize.Key{
					FirstProcID:    page.FirstProcID,
					SecondProcID:   page.SecondProcID,
					ContinuousTime: rec.ContinuousTime,
					DataRefIndex:   uint32(di.RefOff),
				}
				if e, ok := d.ovStore.Lookup(key); ok {
					entryItems = e.Items
					entryFound = true
				}
			}
			if entryFound && refCounter < len(entryItems) {
				items = append(items, assembler.Item{Bytes: entryItems[refCounter]})
			} else {
				items = append(items, assembler.Item{Pending: !entryFound, RefIndex: key.DataRefIndex})
				resolved = false
			}
			refCounter++
			continue
		}
		items = append(items, dataItemToAssemblerItem(di))
	}

	var st assembler.Stats
	msg = assembler.Render(formatStr, items, &st)
	d.stats.addUnknownDecoders(st.UnknownDecoders)
	d.stats.addMissingData(st.MissingData)
	return msg, key, hasRef, resolved
}

// renderMessageWithEntry re-renders rec against a now-known oversize
// entry, used by the deferred resolver once the cross-file accumulator
// gains the record's referenced key.
func (d *Driver) renderMessageWithEntry(rec *firehose.Record, formatStr string, e oversize.Entry) string {
	items := make([]assembler.Item, 0, len(rec.Items))
	refCounter := 0
	for _, di := range rec.Items {
		if di.IsRef {
			if refCounter < len(e.Items) {
				items = append(items, assembler.Item{Bytes: e.Items[refCounter]})
			} else {
				items = append(items, assembler.Item{Pending: true, RefIndex: uint32(di.RefOff)})
			}
			refCounter++
			continue
		}
		items = append(items, dataItemToAssemblerItem(di))
	}
	var st assembler.Stats
	msg := assembler.Render(formatStr, items, &st)
	d.stats.addUnknownDecoders(st.UnknownDecoders)
	d.stats.addMissingData(st.MissingData)
	return msg
}

func dataItemToAssemblerItem(di firehose.DataItem) assembler.Item {
	switch di.Type {
	case firehose.ItemPrivateString, firehose.ItemSensitiveString:
		if len(di.Inline) == 0 {
			return assembler.Item{Private: true}
		}
		return assembler.Item{Bytes: di.Inline}
	default:
		return assembler.Item{Bytes: di.Inline}
	}
}
