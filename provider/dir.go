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
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
)

const (
	tracev3Pattern  = "**/*.tracev3"
	timesyncPattern = "timesync/*.timesync"
)

// Dir is a Provider over a plain directory tree laid out the way a
// macOS/iOS .logarchive bundle or a live /var/db/diagnostics tree is:
// tracev3 files anywhere under the root, a timesync/ directory of
// .timesync files, and a uuidtext/ directory whose UUID-text files live
// two hex digits deep (uuidtext/XX/XXXXXXXXXXXXXXXXXXXXXXXXXXXXXX) with
// DSC files flat under uuidtext/dsc/.
type Dir struct {
	root string
}

// NewDir returns a Dir rooted at root. root is not validated until the
// first discovery call.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

func (d *Dir) walkMatch(pattern string) ([]FileRef, error) {
	var refs []FileRef
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		ok, err := doublestar.Match(pattern, rel)
		if err != nil || !ok {
			return nil
		}
		p := path
		refs = append(refs, FileRef{
			Path: p,
			Open: func() (io.ReadCloser, error) { return os.Open(p) },
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// Tracev3Files returns every *.tracev3 file anywhere under the root.
func (d *Dir) Tracev3Files(ctx context.Context) ([]FileRef, error) {
	return d.walkMatch(tracev3Pattern)
}

// TimesyncFiles returns every timesync/*.timesync file.
func (d *Dir) TimesyncFiles(ctx context.Context) ([]FileRef, error) {
	return d.walkMatch(timesyncPattern)
}

// uuidTextPath builds the two-hex-char-directory path a UUID-text file
// lives at: the first two hex digits of the (uppercase, no dashes) UUID
// name a subdirectory, the remaining 30 name the file.
func uuidTextPath(root string, id uuid.UUID) string {
	hexName := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
	return filepath.Join(root, "uuidtext", hexName[:2], hexName[2:])
}

func dscPath(root string, id uuid.UUID) string {
	hexName := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
	return filepath.Join(root, "uuidtext", "dsc", hexName)
}

// OpenUUIDText opens the UUID-text file for id at its conventional path.
func (d *Dir) OpenUUIDText(ctx context.Context, id uuid.UUID) (io.ReadCloser, error) {
	f, err := os.Open(uuidTextPath(d.root, id))
	if err != nil {
		return nil, fmt.Errorf("provider: open uuidtext %s: %w", id, err)
	}
	return f, nil
}

// OpenDSC opens the shared-cache string file for id at its conventional
// path under uuidtext/dsc/.
func (d *Dir) OpenDSC(ctx context.Context, id uuid.UUID) (io.ReadCloser, error) {
	f, err := os.Open(dscPath(d.root, id))
	if err != nil {
		return nil, fmt.Errorf("provider: open dsc %s: %w", id, err)
	}
	return f, nil
}
