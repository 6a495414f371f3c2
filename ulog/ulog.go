/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package ulog is leveled, structured logging scaled down for a library
// invoked per-run: no UDP relay, no rotation, and no kernel-panic
// capture.
package ulog

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/crewjam/rfc5424"
)

// Level orders log severities; a Logger suppresses anything below its
// configured level.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) priority() rfc5424.Priority {
	switch l {
	case Debug:
		return rfc5424.User | rfc5424.Debug
	case Info:
		return rfc5424.User | rfc5424.Info
	case Warn:
		return rfc5424.User | rfc5424.Warning
	case Error:
		return rfc5424.User | rfc5424.Error
	default:
		return rfc5424.User | rfc5424.Debug
	}
}

// Logger writes leveled, RFC5424-structured lines to a single writer.
type Logger struct {
	mtx      sync.Mutex
	w        io.Writer
	lvl      Level
	hostname string
	appname  string
}

// New wraps w at the given minimum level.
func New(w io.Writer, lvl Level) *Logger {
	return &Logger{w: w, lvl: lvl, appname: "tracev3cat"}
}

// Discard returns a Logger that drops everything, used as the default
// when a caller doesn't care to supply one.
func Discard() *Logger {
	return New(io.Discard, Error+1)
}

// SetLevel changes the minimum level logged from this point on.
func (l *Logger) SetLevel(lvl Level) {
	l.mtx.Lock()
	l.lvl = lvl
	l.mtx.Unlock()
}

func (l *Logger) Debugf(f string, args ...interface{}) { l.outputf(Debug, f, args...) }
func (l *Logger) Infof(f string, args ...interface{})  { l.outputf(Info, f, args...) }
func (l *Logger) Warnf(f string, args ...interface{})  { l.outputf(Warn, f, args...) }
func (l *Logger) Errorf(f string, args ...interface{}) { l.outputf(Error, f, args...) }

// Info writes a structured INFO entry; Warn/Error siblings follow the
// same shape. sds are typically built with KV/KVErr.
func (l *Logger) Info(msg string, sds ...rfc5424.SDParam)  { l.output(Info, msg, sds...) }
func (l *Logger) Warn(msg string, sds ...rfc5424.SDParam)  { l.output(Warn, msg, sds...) }
func (l *Logger) Error(msg string, sds ...rfc5424.SDParam) { l.output(Error, msg, sds...) }

func (l *Logger) outputf(lvl Level, f string, args ...interface{}) {
	if lvl < l.lvl {
		return
	}
	l.write(lvl, fmt.Sprintf(f, args...))
}

func (l *Logger) output(lvl Level, msg string, sds ...rfc5424.SDParam) {
	if lvl < l.lvl {
		return
	}
	m := rfc5424.Message{
		Priority:  lvl.priority(),
		Timestamp: time.Now(),
		Hostname:  l.hostname,
		AppName:   l.appname,
		Message:   []byte(msg),
	}
	filtered := sds[:0]
	for _, p := range sds {
		if p.Name != "" {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) > 0 {
		m.StructuredData = []rfc5424.StructuredData{{ID: "gw@1", Parameters: filtered}}
	}
	b, err := m.MarshalBinary()
	if err != nil {
		l.write(lvl, msg)
		return
	}
	line := strings.TrimRight(string(b), "\n\t\r")
	l.mtx.Lock()
	io.WriteString(l.w, line)
	io.WriteString(l.w, "\n")
	l.mtx.Unlock()
}

func (l *Logger) write(lvl Level, msg string) {
	l.mtx.Lock()
	fmt.Fprintf(l.w, "%s %s %s\n", time.Now().UTC().Format(time.RFC3339), lvl, msg)
	l.mtx.Unlock()
}

// KV builds a plain string structured-data parameter.
func KV(name, value string) rfc5424.SDParam {
	return rfc5424.SDParam{Name: name, Value: value}
}

// KVErr builds an "err" structured-data parameter from an error, or a
// zero-value SDParam (silently dropped by the message writer) if err is
// nil.
func KVErr(err error) rfc5424.SDParam {
	if err == nil {
		return rfc5424.SDParam{}
	}
	return rfc5424.SDParam{Name: "err", Value: err.Error()}
}
