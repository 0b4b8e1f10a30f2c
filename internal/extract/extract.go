// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract runs a decoder over many files on a bounded worker pool
// and gathers the records into one stream.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/neo-chem-synth-wave/ncsw-data-sub001/internal/decode"
	"github.com/neo-chem-synth-wave/ncsw-data-sub001/pkg/types"
)

// DefaultWorkers is used when the worker count is not positive.
const DefaultWorkers = 1

// WorkerError reports a worker that failed on one file, either because the
// decoder returned an error or because it panicked. It aborts the whole
// extraction.
type WorkerError struct {
	Path  string
	Err   error
	Panic bool
}

func (e *WorkerError) Error() string {
	kind := "failed"
	if e.Panic {
		kind = "crashed"
	}
	return fmt.Sprintf("worker %s on %s: %v", kind, filepath.Base(e.Path), e.Err)
}

func (e *WorkerError) Unwrap() error { return e.Err }

// Extractor decodes files concurrently. Records reach the result in the
// order files complete; the records of one file stay in decoder order.
type Extractor struct {
	Workers int
	Log     *zap.Logger

	// Progress, when set, is called after each file with the number of
	// completed files and the total. Calls are serialized.
	Progress func(done, total int)

	completed atomic.Int64
}

// New returns an Extractor with the given worker count.
func New(workers int, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{Workers: workers, Log: log}
}

// Completed returns the number of files decoded so far. It only grows.
func (e *Extractor) Completed() int64 {
	return e.completed.Load()
}

// Extract schedules every path exactly once. The first worker failure
// cancels the remaining files and no records are returned. Each record's
// File is set to the path it was decoded from.
func (e *Extractor) Extract(ctx context.Context, paths []string, dec decode.Decoder) ([]types.Record, types.ExtractionReport, error) {
	workers := e.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	log := e.Log
	if log == nil {
		log = zap.NewNop()
	}

	var (
		mu      sync.Mutex
		records []types.Record
		report  = types.ExtractionReport{FilesAttempted: len(paths)}
		done    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	log.Info("extracting", zap.Int("files", len(paths)), zap.Int("workers", workers))

	for _, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &WorkerError{Path: path, Err: fmt.Errorf("panic: %v", r), Panic: true}
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}

			recs, err := dec.Decode(gctx, path)
			if err != nil {
				return &WorkerError{Path: path, Err: err}
			}
			for i := range recs {
				recs[i].File = path
			}

			mu.Lock()
			defer mu.Unlock()
			records = append(records, recs...)
			report.Records += len(recs)
			if len(recs) == 0 {
				report.FilesEmpty++
				log.Debug("file produced no records", zap.String("file", filepath.Base(path)))
			}
			done++
			e.completed.Add(1)
			if e.Progress != nil {
				e.Progress(done, len(paths))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, types.ExtractionReport{}, err
	}
	// The parent context may have been cancelled before any file was scheduled.
	if err := ctx.Err(); err != nil {
		return nil, types.ExtractionReport{}, err
	}

	log.Info("extraction finished",
		zap.Int("files", report.FilesAttempted),
		zap.Int("empty", report.FilesEmpty),
		zap.Int("records", report.Records))
	return records, report, nil
}
