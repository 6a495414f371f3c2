/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package provider abstracts where tracev3/timesync/uuidtext/dsc bytes
// come from: a plain directory, a live-watched one, or a pre-compressed
// .logarchive.tar.gz bundle staged to a scratch directory first.
package provider

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// FileRef names one discovered file plus a lazy opener, so a caller that
// only wants a subset (e.g. tracev3cat strings) never reads files it
// doesn't need.
type FileRef struct {
	Path string
	Open func() (io.ReadCloser, error)
}

// Provider discovers the four kinds of file a tracev3 archive is made
// of. Implementations must be safe for a single walker goroutine; none
// of the methods here are required to be called concurrently with each
// other.
type Provider interface {
	Tracev3Files(ctx context.Context) ([]FileRef, error)
	TimesyncFiles(ctx context.Context) ([]FileRef, error)
	OpenUUIDText(ctx context.Context, id uuid.UUID) (io.ReadCloser, error)
	OpenDSC(ctx context.Context, id uuid.UUID) (io.ReadCloser, error)
}
