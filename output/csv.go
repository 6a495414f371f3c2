/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package output

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/gravwell/unifiedlog/record"
)

// WriteCSV writes a header row of columns followed by one row per
// record, in the order given. An unrecognized column name renders as an
// empty field in every row rather than an error.
func WriteCSV(w io.Writer, recs <-chan record.LogRecord, columns []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("output: write csv header: %w", err)
	}
	row := make([]string, len(columns))
	for r := range recs {
		for i, col := range columns {
			row[i] = csvField(r, col)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("output: write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// csvField stringifies one named LogRecord field by a concrete name
// switch instead of reflection, since the record shape is fixed.
func csvField(r record.LogRecord, col string) string {
	switch col {
	case "time":
		if !r.TimeValid {
			return ""
		}
		return r.Time.Format("2006-01-02T15:04:05.000000000Z07:00")
	case "continuous_time":
		return fmt.Sprintf("%d", r.ContinuousTime)
	case "thread_id":
		return fmt.Sprintf("%d", r.ThreadID)
	case "pid":
		return fmt.Sprintf("%d", r.PID)
	case "euid":
		return fmt.Sprintf("%d", r.EUID)
	case "level":
		return r.Level.String()
	case "process":
		return r.Process
	case "sender":
		return r.Sender
	case "subsystem":
		return r.Subsystem
	case "category":
		return r.Category
	case "message":
		return r.Message
	case "activity_id":
		return fmt.Sprintf("%d", r.ActivityID)
	case "parent_activity_id":
		return fmt.Sprintf("%d", r.ParentActivityID)
	case "boot_uuid":
		return r.BootUUID.String()
	case "signpost_name":
		return r.SignpostName
	case "signpost_id":
		return fmt.Sprintf("%d", r.SignpostID)
	case "signpost_scope":
		return r.SignpostScope.String()
	case "signpost_kind":
		return r.SignpostKind.String()
	case "source_file":
		return r.SourceFile
	default:
		return ""
	}
}

// DefaultColumns is the column order tracev3cat scan uses for CSV output.
var DefaultColumns = []string{
	"time", "process", "sender", "subsystem", "category", "level", "message",
}
