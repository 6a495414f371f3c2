/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gravwell/unifiedlog/dsc"
	"github.com/gravwell/unifiedlog/output"
	"github.com/gravwell/unifiedlog/pipeline"
	"github.com/gravwell/unifiedlog/provider"
	"github.com/gravwell/unifiedlog/record"
	"github.com/gravwell/unifiedlog/timesync"
	"github.com/gravwell/unifiedlog/ulog"
	"github.com/gravwell/unifiedlog/uuidtext"
)

var (
	scanFormat string
	scanSince  string
	scanLevel  string
	scanOutput string
)

// severityRank orders only the five true severities (the rest of
// record.Level covers activity/signpost/loss/statedump kinds that
// --level doesn't filter, since "more severe than a signpost" isn't a
// meaningful comparison).
var severityRank = map[record.Level]int{
	record.Debug:   0,
	record.Info:    1,
	record.Default: 2,
	record.Error:   3,
	record.Fault:   4,
}

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <path>",
		Short: "Decode a tracev3 archive directory or .logarchive.tar.gz bundle",
		Args:  cobra.ExactArgs(1),
		RunE:  runScan,
	}
	cmd.Flags().StringVar(&scanFormat, "format", "jsonl", "output format: jsonl or csv")
	cmd.Flags().StringVar(&scanSince, "since", "", "only emit records at or after this RFC3339 timestamp")
	cmd.Flags().StringVar(&scanLevel, "level", "", "minimum severity to emit: debug, info, default, error, fault")
	cmd.Flags().StringVarP(&scanOutput, "output", "o", "", "output file (default stdout)")
	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	log := ulog.New(os.Stderr, verbosityToLevel(verbosity))

	prov, cleanup, err := openProvider(args[0], log)
	if err != nil {
		return err
	}
	defer cleanup()

	var since time.Time
	if scanSince != "" {
		since, err = time.Parse(time.RFC3339, scanSince)
		if err != nil {
			return fmt.Errorf("--since: %w", err)
		}
	}
	minRank, filterLevel := -1, false
	if scanLevel != "" {
		lvl, ok := parseLevelName(scanLevel)
		if !ok {
			return fmt.Errorf("--level: unrecognized severity %q", scanLevel)
		}
		minRank, filterLevel = severityRank[lvl], true
	}

	out := io.Writer(os.Stdout)
	if scanOutput != "" {
		f, err := os.Create(scanOutput)
		if err != nil {
			return fmt.Errorf("open --output: %w", err)
		}
		defer f.Close()
		out = f
	}

	next, stats, runErr := runPipeline(ctx, prov, log)
	if next == nil {
		return runErr
	}

	recs := make(chan record.LogRecord, 64)
	var writeErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		switch strings.ToLower(scanFormat) {
		case "csv":
			writeErr = output.WriteCSV(out, recs, output.DefaultColumns)
		default:
			writeErr = output.WriteJSONL(out, recs)
		}
	}()

	for {
		lr, ok, err := next()
		if err != nil {
			log.Errorf("decode error: %v", err)
		}
		if !ok {
			break
		}
		if !since.IsZero() && (!lr.TimeValid || lr.Time.Before(since)) {
			continue
		}
		if filterLevel {
			if rank, known := severityRank[lr.Level]; known && rank < minRank {
				continue
			}
		}
		recs <- lr
	}
	close(recs)
	<-done

	log.Infof("scan complete: %d records, %d framing errors, %d format refs unresolved, %d oversize healed, %d residual oversize misses",
		stats.RecordsEmitted, stats.FramingErrors, stats.FormatRefUnresolved, stats.OversizeHealed, stats.OversizeResidualMisses)

	if runErr != nil {
		return runErr
	}
	return writeErr
}

func parseLevelName(s string) (record.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return record.Debug, true
	case "info":
		return record.Info, true
	case "default":
		return record.Default, true
	case "error":
		return record.Error, true
	case "fault":
		return record.Fault, true
	default:
		return 0, false
	}
}

func verbosityToLevel(v int) ulog.Level {
	switch {
	case v >= 2:
		return ulog.Debug
	case v == 1:
		return ulog.Info
	default:
		return ulog.Warn
	}
}

// openProvider picks provider.Dir directly for a plain directory, or
// stages a .logarchive.tar.gz bundle to a scratch directory under the
// user's cache dir first. cleanup is always non-nil and safe to call.
func openProvider(path string, log *ulog.Logger) (provider.Provider, func(), error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, func() {}, fmt.Errorf("open %s: %w", path, err)
	}
	if fi.IsDir() {
		return provider.NewDir(path), func() {}, nil
	}
	if strings.HasSuffix(path, ".tar.gz") || strings.HasSuffix(path, ".tgz") {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			cacheDir = os.TempDir()
		}
		scratch := filepath.Join(cacheDir, "tracev3cat", filepath.Base(path))
		dir, err := provider.StageArchive(path, scratch)
		if err != nil {
			return nil, func() {}, err
		}
		return dir, func() {}, nil
	}
	return nil, func() {}, fmt.Errorf("%s: not a directory or .tar.gz bundle", path)
}

// runPipeline wires a Provider's discovered files into uuidtext/dsc/
// timesync stores and runs pipeline.RunMany over every tracev3 file.
func runPipeline(ctx context.Context, prov provider.Provider, log *ulog.Logger) (func() (record.LogRecord, bool, error), *pipeline.Stats, error) {
	uuidStore := uuidtext.NewStore(func(id uuid.UUID) ([]byte, error) {
		rc, err := prov.OpenUUIDText(ctx, id)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	})
	dscStore := dsc.NewStore(func(id uuid.UUID) ([]byte, error) {
		rc, err := prov.OpenDSC(ctx, id)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	})
	tsStore := timesync.NewStore()

	tsFiles, err := prov.TimesyncFiles(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list timesync files: %w", err)
	}
	for _, f := range tsFiles {
		rc, err := f.Open()
		if err != nil {
			log.Warnf("open timesync file %s: %v", f.Path, err)
			continue
		}
		buf, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			log.Warnf("read timesync file %s: %v", f.Path, err)
			continue
		}
		if err := tsStore.LoadFile(buf); err != nil {
			log.Warnf("parse timesync file %s: %v", f.Path, err)
		}
	}

	tracev3Files, err := prov.Tracev3Files(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list tracev3 files: %w", err)
	}
	srcs := make([]pipeline.Source, 0, len(tracev3Files))
	for _, f := range tracev3Files {
		rc, err := f.Open()
		if err != nil {
			log.Warnf("open tracev3 file %s: %v", f.Path, err)
			continue
		}
		buf, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			log.Warnf("read tracev3 file %s: %v", f.Path, err)
			continue
		}
		srcs = append(srcs, pipeline.Source{Name: f.Path, Data: buf})
	}

	next, stats, err := pipeline.RunMany(srcs, uuidStore, dscStore, tsStore, log)
	return next, stats, err
}
