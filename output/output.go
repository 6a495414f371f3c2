/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package output serializes decoded LogRecords to JSONL or CSV. A
// reflection-based column lookup (walking an arbitrary caller struct by
// field name) isn't needed here: every record is the same concrete
// record.LogRecord, so column lookup is a plain field switch rather than
// reflect.Value.FieldByIndex.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gravwell/unifiedlog/record"
)

// WriteJSONL writes one JSON object per line, reading from recs until it
// is closed. Time fields use record.LogRecord.MarshalTime's null
// convention (see that type) by encoding through jsonRecord below rather
// than marshaling LogRecord directly, since a zero time.Time would
// otherwise render as a real-looking timestamp.
func WriteJSONL(w io.Writer, recs <-chan record.LogRecord) error {
	enc := json.NewEncoder(w)
	for r := range recs {
		if err := enc.Encode(jsonRecordOf(r)); err != nil {
			return fmt.Errorf("output: encode record: %w", err)
		}
	}
	return nil
}

// jsonRecord mirrors record.LogRecord's json tags but replaces Time with
// an interface{} so MarshalTime's null-on-unresolved behavior survives
// encoding/json instead of the zero-value time.Time default.
type jsonRecord struct {
	Time             interface{}          `json:"time"`
	ContinuousTime   uint64               `json:"continuous_time"`
	ThreadID         uint64               `json:"thread_id"`
	PID              int32                `json:"pid"`
	EUID             uint32               `json:"euid"`
	Level            record.Level         `json:"level"`
	Process          string               `json:"process"`
	Sender           string               `json:"sender"`
	Subsystem        string               `json:"subsystem,omitempty"`
	Category         string               `json:"category,omitempty"`
	Message          string               `json:"message"`
	ActivityID       uint32               `json:"activity_id,omitempty"`
	ParentActivityID uint32               `json:"parent_activity_id,omitempty"`
	BootUUID         string               `json:"boot_uuid"`
	SignpostName     string               `json:"signpost_name,omitempty"`
	SignpostID       uint64               `json:"signpost_id,omitempty"`
	SignpostScope    record.SignpostScope `json:"signpost_scope,omitempty"`
	SignpostKind     record.SignpostKind  `json:"signpost_kind,omitempty"`
	SourceFile       string               `json:"source_file,omitempty"`
	RawData          []byte               `json:"raw_data,omitempty"`
}

func jsonRecordOf(r record.LogRecord) jsonRecord {
	return jsonRecord{
		Time:             r.MarshalTime(),
		ContinuousTime:   r.ContinuousTime,
		ThreadID:         r.ThreadID,
		PID:              r.PID,
		EUID:             r.EUID,
		Level:            r.Level,
		Process:          r.Process,
		Sender:           r.Sender,
		Subsystem:        r.Subsystem,
		Category:         r.Category,
		Message:          r.Message,
		ActivityID:       r.ActivityID,
		ParentActivityID: r.ParentActivityID,
		BootUUID:         r.BootUUID.String(),
		SignpostName:     r.SignpostName,
		SignpostID:       r.SignpostID,
		SignpostScope:    r.SignpostScope,
		SignpostKind:     r.SignpostKind,
		SourceFile:       r.SourceFile,
		RawData:          r.RawData,
	}
}
