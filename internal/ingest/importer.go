// Package ingest runs batch imports: decoding provider export files and
// feeding their records through the resolution engine with a bounded worker
// pool. One import runs at a time per data directory, enforced with a file
// lock so separate processes cannot interleave batches.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"stride/internal/config"
	"stride/internal/logging"
	"stride/internal/matching"
	"stride/internal/preflight"
)

// ErrImportRunning indicates another import holds the batch lock.
var ErrImportRunning = errors.New("another import is already running")

// Importer drives batch imports through the engine.
type Importer struct {
	cfg    *config.Config
	engine *matching.Engine
	logger *slog.Logger
	lock   *flock.Flock
}

// NewImporter builds an importer bound to the config's data directory lock.
func NewImporter(cfg *config.Config, engine *matching.Engine, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Importer{
		cfg:    cfg,
		engine: engine,
		logger: logging.NewComponentLogger(logger, "ingest"),
		lock:   flock.New(cfg.LockPath()),
	}
}

// RecordError pairs a failed record with its rejection cause.
type RecordError struct {
	SourceResultID string
	Err            error
}

// Summary aggregates the outcomes of one batch.
type Summary struct {
	BatchID string

	Total         int
	AutoMatched   int
	PendingReview int
	NewIdentities int
	Duplicates    int
	Failed        int

	Errors  []RecordError
	Elapsed time.Duration
}

// ImportFile decodes the file and resolves every record in it.
func (i *Importer) ImportFile(ctx context.Context, path string, batch Batch) (*Summary, error) {
	records, err := DecodeFile(path, batch)
	if err != nil {
		return nil, err
	}
	return i.ImportRecords(ctx, records)
}

// ImportRecords resolves a batch of raw records concurrently. Preflight
// checks gate the batch; malformed records are counted and reported in the
// summary rather than aborting the rest. Cancellation stops between
// records, never mid-resolution.
func (i *Importer) ImportRecords(ctx context.Context, records []matching.RawResult) (*Summary, error) {
	checks := preflight.Run(i.cfg)
	if !preflight.AllPassed(checks) {
		for _, check := range checks {
			if !check.Passed {
				return nil, fmt.Errorf("preflight %s: %s", check.Name, check.Detail)
			}
		}
	}

	locked, err := i.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire import lock: %w", err)
	}
	if !locked {
		return nil, ErrImportRunning
	}
	defer func() { _ = i.lock.Unlock() }()

	summary := &Summary{
		BatchID: uuid.NewString(),
		Total:   len(records),
	}
	started := time.Now()

	i.logger.InfoContext(ctx, "batch started",
		logging.String("batch_id", summary.BatchID),
		logging.Int("records", len(records)),
		logging.Int("workers", i.cfg.Import.Workers))

	work := make(chan matching.RawResult)
	var mu sync.Mutex
	var wg sync.WaitGroup

	workers := i.cfg.Import.Workers
	if workers < 1 {
		workers = 1
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for record := range work {
				resolution, err := i.engine.Ingest(ctx, record, summary.BatchID)

				mu.Lock()
				if err != nil {
					summary.Failed++
					summary.Errors = append(summary.Errors, RecordError{
						SourceResultID: record.SourceResultID,
						Err:            err,
					})
				} else {
					if resolution.Duplicate {
						summary.Duplicates++
					}
					switch resolution.Outcome {
					case matching.OutcomeAutoMatched:
						summary.AutoMatched++
					case matching.OutcomePendingReview:
						summary.PendingReview++
					case matching.OutcomeNewIdentity:
						summary.NewIdentities++
					}
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, record := range records {
		select {
		case <-ctx.Done():
			break feed
		case work <- record:
		}
	}
	close(work)
	wg.Wait()

	summary.Elapsed = time.Since(started)

	i.logger.InfoContext(ctx, "batch finished",
		logging.String("batch_id", summary.BatchID),
		logging.Int("auto_matched", summary.AutoMatched),
		logging.Int("pending_review", summary.PendingReview),
		logging.Int("new_identities", summary.NewIdentities),
		logging.Int("duplicates", summary.Duplicates),
		logging.Int("failed", summary.Failed),
		logging.Duration("elapsed", summary.Elapsed))

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}
