/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package provider

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/klauspost/compress/gzip"
)

// StageArchive extracts a .logarchive.tar.gz bundle into scratchDir and
// returns a Dir rooted at the extracted tree. scratchDir is
// advisory-locked for the duration of the extraction via
// github.com/gofrs/flock so two concurrent tracev3cat invocations
// against the same bundle don't race the same scratch directory; a
// process that loses the lock race waits for the winner to finish and
// then reuses its output rather than re-extracting.
func StageArchive(archivePath, scratchDir string) (*Dir, error) {
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("provider: create scratch dir: %w", err)
	}

	lock := flock.New(filepath.Join(scratchDir, ".tracev3cat.lock"))
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("provider: lock scratch dir: %w", err)
	}
	defer lock.Unlock()

	doneMarker := filepath.Join(scratchDir, ".extracted")
	if _, err := os.Stat(doneMarker); err == nil {
		return NewDir(scratchDir), nil
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("provider: open archive %s: %w", archivePath, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("provider: gzip header %s: %w", archivePath, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("provider: tar entry in %s: %w", archivePath, err)
		}
		target := filepath.Join(scratchDir, filepath.Clean(hdr.Name))
		if !withinDir(scratchDir, target) {
			return nil, fmt.Errorf("provider: tar entry %q escapes scratch dir", hdr.Name)
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return nil, fmt.Errorf("provider: write %s: %w", target, err)
			}
			out.Close()
		}
	}

	if err := os.WriteFile(doneMarker, []byte{}, 0o644); err != nil {
		return nil, fmt.Errorf("provider: write extraction marker: %w", err)
	}
	return NewDir(scratchDir), nil
}

// withinDir reports whether target, once made absolute, stays under
// root: a defense against tar entries using ".." to escape the scratch
// directory (Zip Slip).
func withinDir(root, target string) bool {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil {
		return false
	}
	return rel != ".." && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.' &&
		(len(rel) == 2 || rel[2] == filepath.Separator)
}
