/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package provider

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/gravwell/unifiedlog/ulog"
)

// Watch wraps a Dir for a live diagnostics directory: Tracev3Files and
// TimesyncFiles re-walk the tree on every call (cheap relative to
// parsing), but also drain any fsnotify Create/Write events accumulated
// since the last call so a caller looping on Watch picks up files that
// landed between scans without missing one due to a race between the
// walk and the watch registration.
type Watch struct {
	dir     *Dir
	watcher *fsnotify.Watcher
	log     *ulog.Logger
}

// NewWatch starts watching root (recursively) and returns a Watch
// provider over it. Callers should call Close when done to release the
// fsnotify file descriptor.
func NewWatch(root string, log *ulog.Logger) (*Watch, error) {
	if log == nil {
		log = ulog.Discard()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return w.Add(path)
		}
		return nil
	})
	if err != nil {
		w.Close()
		return nil, err
	}
	return &Watch{dir: NewDir(root), watcher: w, log: log}, nil
}

// Close stops the underlying fsnotify watcher.
func (w *Watch) Close() error { return w.watcher.Close() }

// drain consumes pending fsnotify events without blocking, adding newly
// created directories to the watch and logging watcher errors; it
// relies on the next Tracev3Files/TimesyncFiles call to re-walk and
// pick up anything new.
func (w *Watch) drain() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					w.watcher.Add(ev.Name)
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warnf("watch: fsnotify error: %v", err)
		default:
			return
		}
	}
}

func (w *Watch) Tracev3Files(ctx context.Context) ([]FileRef, error) {
	w.drain()
	return w.dir.Tracev3Files(ctx)
}

func (w *Watch) TimesyncFiles(ctx context.Context) ([]FileRef, error) {
	w.drain()
	return w.dir.TimesyncFiles(ctx)
}

func (w *Watch) OpenUUIDText(ctx context.Context, id uuid.UUID) (io.ReadCloser, error) {
	return w.dir.OpenUUIDText(ctx, id)
}

func (w *Watch) OpenDSC(ctx context.Context, id uuid.UUID) (io.ReadCloser, error) {
	return w.dir.OpenDSC(ctx, id)
}
