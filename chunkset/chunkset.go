/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package chunkset decompresses chunkset payloads into a sequence of raw
// firehose pages. A chunkset's payload holds one or more LZ4-compressed
// or stored blocks, each self-describing its own sizes.
package chunkset

import (
	"errors"

	"github.com/pierrec/lz4/v4"

	"github.com/gravwell/unifiedlog/breader"
)

var (
	sigLZ4   = [4]byte{'b', 'v', '4', '1'}
	sigEnd   = [4]byte{'b', 'v', '4', '$'}
	sigStore = [4]byte{'b', 'v', '4', '-'}
)

// ErrUnknownSignature is returned when a block's 4-byte algorithm
// signature is none of "bv41", "bv4$", "bv4-".
var ErrUnknownSignature = errors.New("chunkset: unknown block signature")

// Decompress walks payload's blocks and returns the concatenated
// decompressed bytes, which are a run of firehose pages to be parsed by
// the firehose package. A block-level failure is reported but does not
// panic; it is treated as fatal for this chunkset only, not for the
// whole file.
func Decompress(payload []byte) ([]byte, error) {
	var out []byte
	c := breader.NewCursor(payload)

	for c.Len() > 0 {
		if c.Len() < 4 {
			break
		}
		sigBytes, err := c.Take(4)
		if err != nil {
			return out, err
		}
		var sig [4]byte
		copy(sig[:], sigBytes)

		switch sig {
		case sigEnd:
			return out, nil
		case sigLZ4:
			decompSize, err := c.Uint32()
			if err != nil {
				return out, err
			}
			compSize, err := c.Uint32()
			if err != nil {
				return out, err
			}
			compressed, err := c.Take(int(compSize))
			if err != nil {
				return out, err
			}
			decompressed := make([]byte, decompSize)
			n, err := lz4.UncompressBlock(compressed, decompressed)
			if err != nil {
				return out, err
			}
			out = append(out, decompressed[:n]...)
		case sigStore:
			size, err := c.Uint32()
			if err != nil {
				return out, err
			}
			raw, err := c.Take(int(size))
			if err != nil {
				return out, err
			}
			out = append(out, raw...)
		default:
			return out, ErrUnknownSignature
		}
	}
	return out, nil
}
