/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Command tracev3cat decodes Apple Unified Log archives into JSONL or
// CSV. It is thin flag parsing and wiring, no business logic of its
// own.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gravwell/unifiedlog/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tracev3cat",
		Short: "Decode Apple Unified Log (tracev3) archives to JSONL or CSV",
	}
	root.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeatable)")
	root.AddCommand(newScanCmd())
	root.AddCommand(newStringsCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the tracev3cat version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			version.PrintVersion(cmd.OutOrStdout())
			return nil
		},
	})
	return root
}

var verbosity int
