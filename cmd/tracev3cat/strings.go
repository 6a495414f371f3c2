/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gravwell/unifiedlog/dsc"
	"github.com/gravwell/unifiedlog/ulog"
	"github.com/gravwell/unifiedlog/uuidtext"
)

var stringsDSC bool

func newStringsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strings <path> <uuid>",
		Short: "Dump every resolved format string from one UUID-text or DSC table",
		Args:  cobra.ExactArgs(2),
		RunE:  runStrings,
	}
	cmd.Flags().BoolVar(&stringsDSC, "dsc", false, "the path is a dyld shared-cache file, not a per-binary UUID-text file")
	return cmd
}

func runStrings(cmd *cobra.Command, args []string) error {
	log := ulog.New(os.Stderr, verbosityToLevel(verbosity))
	id, err := uuid.Parse(args[1])
	if err != nil {
		return fmt.Errorf("parse uuid: %w", err)
	}

	buf, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	if stringsDSC {
		d, err := dsc.Parse(buf)
		if err != nil {
			return fmt.Errorf("parse dsc file: %w", err)
		}
		log.Debugf("loaded dsc file %s, %d ranges", args[0], len(d.Offsets()))
		for _, off := range d.Offsets() {
			s, path, err := d.Resolve(off)
			if err != nil {
				continue
			}
			fmt.Printf("%08x\t%s\t%s\n", off, path, s)
		}
		return nil
	}

	t, err := uuidtext.Parse(buf)
	if err != nil {
		return fmt.Errorf("parse uuidtext file: %w", err)
	}
	log.Debugf("loaded uuidtext table for %s, binary path %s", id, t.Path)
	for _, off := range t.Offsets() {
		s, err := t.Resolve(off)
		if err != nil {
			continue
		}
		fmt.Printf("%08x\t%s\n", off, s)
	}
	return nil
}
