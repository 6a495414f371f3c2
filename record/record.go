/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package record defines the reconstructed output of the unified log
// parsing pipeline: LogRecord and its Level enumeration. Every other
// package in this module either produces or decorates a LogRecord; none
// of them hold a reference back to it, keeping the dependency graph
// acyclic.
package record

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Level classifies the kind of record, spanning both the five firehose
// log levels and the side-channel record kinds.
type Level uint8

const (
	Default Level = iota
	Info
	Debug
	Error
	Fault
	ActivityCreate
	ActivityTransition
	SignpostProcess
	SignpostThread
	SignpostSystem
	Simpledump
	Statedump
	Loss
)

var levelNames = [...]string{
	Default:             "Default",
	Info:                "Info",
	Debug:               "Debug",
	Error:               "Error",
	Fault:               "Fault",
	ActivityCreate:       "ActivityCreate",
	ActivityTransition:   "ActivityTransition",
	SignpostProcess:      "SignpostProcess",
	SignpostThread:       "SignpostThread",
	SignpostSystem:       "SignpostSystem",
	Simpledump:           "Simpledump",
	Statedump:            "Statedump",
	Loss:                 "Loss",
}

// String renders the level using its stable output name.
func (l Level) String() string {
	if int(l) < len(levelNames) && levelNames[l] != "" {
		return levelNames[l]
	}
	return "Unknown"
}

// MarshalJSON renders the level by name rather than its underlying
// integer, so JSONL and CSV output agree on the same value for the same
// field.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// SignpostScope identifies who a signpost event is scoped to.
type SignpostScope uint8

const (
	SignpostScopeNone SignpostScope = iota
	SignpostScopeProcess
	SignpostScopeThread
	SignpostScopeSystem
)

func (s SignpostScope) String() string {
	switch s {
	case SignpostScopeProcess:
		return "process"
	case SignpostScopeThread:
		return "thread"
	case SignpostScopeSystem:
		return "system"
	default:
		return ""
	}
}

// MarshalJSON renders the scope by name, matching the CSV encoder.
func (s SignpostScope) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// SignpostKind identifies the phase of a signpost event.
type SignpostKind uint8

const (
	SignpostKindNone SignpostKind = iota
	SignpostKindBegin
	SignpostKindEnd
	SignpostKindEvent
)

func (s SignpostKind) String() string {
	switch s {
	case SignpostKindBegin:
		return "begin"
	case SignpostKindEnd:
		return "end"
	case SignpostKindEvent:
		return "event"
	default:
		return ""
	}
}

// MarshalJSON renders the kind by name, matching the CSV encoder.
func (s SignpostKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// LogRecord is the fully reconstructed, human-readable form of a single
// firehose/oversize/statedump/simpledump/loss entry. Field names carry
// stable `json` tags; the same names are used as CSV column headers by
// the output package.
type LogRecord struct {
	Time               time.Time `json:"time"`
	TimeValid          bool      `json:"-"` // false => Time is a placeholder, render null
	ContinuousTime      uint64    `json:"continuous_time"`
	ThreadID            uint64    `json:"thread_id"`
	PID                 int32     `json:"pid"`
	EUID                uint32    `json:"euid"`
	Level               Level     `json:"level"`
	Process              string    `json:"process"`
	Sender               string    `json:"sender"`
	Subsystem            string    `json:"subsystem"`
	Category             string    `json:"category"`
	Message              string    `json:"message"`
	ActivityID           uint32    `json:"activity_id"`
	ParentActivityID      uint32    `json:"parent_activity_id"`
	BootUUID             uuid.UUID `json:"boot_uuid"`
	SignpostName          string        `json:"signpost_name,omitempty"`
	SignpostID            uint64        `json:"signpost_id,omitempty"`
	SignpostScope         SignpostScope `json:"signpost_scope,omitempty"`
	SignpostKind          SignpostKind  `json:"signpost_kind,omitempty"`
	RawData              []byte `json:"raw_data,omitempty"`

	// SourceFile is an enrichment beyond Apple's own renderer: the
	// tracev3 file this record was decoded from, useful for forensic
	// provenance.
	SourceFile string `json:"source_file,omitempty"`
}

// MarshalTime renders Time per TimeValid, used by the output encoders so
// a missing timesync resolution serializes as a JSON null rather than
// the zero time.
func (r LogRecord) MarshalTime() interface{} {
	if !r.TimeValid {
		return nil
	}
	return r.Time
}
