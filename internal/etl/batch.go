package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/BartekS5/donorsync/pkg/logger"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Allocator yields surrogate ids for inserts.
type Allocator interface {
	Next(ctx context.Context) (int64, error)
}

// Summary is the running tally of a batch commit run.
type Summary struct {
	Batches  int
	Commits  int
	Inserted int
	Updated  int
	Errored  int
	// Skipped counts records of an aborted batch that were never written.
	Skipped int
}

// Total is the number of match results accounted for so far.
func (s Summary) Total() int { return s.Inserted + s.Updated + s.Errored }

// Outcome is the result of writing one match result. Skipped is set when
// the batch was aborted before the record was written.
type Outcome struct {
	Input    int
	Kind     MatchKind
	TargetID int64
	Err      error
	Skipped  bool
}

// BatchOutcome collects the outcomes of one batch in input order.
type BatchOutcome struct {
	Number   int
	Outcomes []Outcome
}

func (s *Summary) add(b BatchOutcome) {
	for _, o := range b.Outcomes {
		switch {
		case o.Skipped:
			s.Skipped++
		case o.Err != nil:
			s.Errored++
		case o.Kind == MatchInsert:
			s.Inserted++
		case o.Kind == MatchUpdate:
			s.Updated++
		}
	}
}

// BatchCommitter writes match results in consecutive batches of BatchSize
// and commits after every CommitEvery batches and once more at the end.
// A failing record is counted and skipped; a lost connection or a failed
// commit aborts the run and rolls back the open transaction.
type BatchCommitter struct {
	Writer      AddressWriter
	IDs         Allocator
	BatchSize   int
	CommitEvery int
	// Workers bounds the number of concurrent writes inside one batch.
	Workers int
	DryRun  bool

	// OnBatch, when set, is called after every batch has been written.
	OnBatch func(BatchOutcome)
}

// Run processes results and returns the cumulative counts. On a fatal
// error the counts cover the batches attempted so far.
func (b *BatchCommitter) Run(ctx context.Context, results []MatchResult) (Summary, error) {
	var sum Summary
	size := max(b.BatchSize, 1)
	every := max(b.CommitEvery, 1)
	total := (len(results) + size - 1) / size
	start := time.Now()
	pending := false

	for g := 0; g < total; g++ {
		lo := g * size
		hi := min(lo+size, len(results))
		logger.Infof("Processing batch %d of %d", g+1, total)

		out, err := b.runBatch(ctx, g+1, results[lo:hi])
		sum.add(out)
		sum.Batches++
		if b.OnBatch != nil {
			b.OnBatch(out)
		}
		if err != nil {
			return sum, b.abort(ctx, fmt.Errorf("batch %d: %w", g+1, err))
		}

		rate := 0.0
		if d := time.Since(start).Seconds(); d > 0 {
			rate = float64(sum.Total()) / d
		}
		logger.Infof("Batch processed. Total progress: Updated: %d, Inserted: %d, Errors: %d (%.2f records/sec)",
			sum.Updated, sum.Inserted, sum.Errored, rate)

		if b.DryRun {
			continue
		}
		pending = true
		if (g+1)%every == 0 {
			if err := b.Writer.Commit(ctx); err != nil {
				return sum, b.abort(ctx, fmt.Errorf("checkpoint commit after batch %d: %w", g+1, err))
			}
			sum.Commits++
			pending = false
			logger.Infof("Committed batch %d", g+1)
		}
	}

	if b.DryRun {
		logger.Infof("[DRY RUN] Would insert %d and update %d records", sum.Inserted, sum.Updated)
		return sum, nil
	}
	if pending || total == 0 {
		if err := b.Writer.Commit(ctx); err != nil {
			return sum, b.abort(ctx, fmt.Errorf("final commit: %w", err))
		}
		sum.Commits++
	}
	return sum, nil
}

func (b *BatchCommitter) runBatch(ctx context.Context, number int, batch []MatchResult) (BatchOutcome, error) {
	out := BatchOutcome{Number: number, Outcomes: make([]Outcome, len(batch))}
	for i, r := range batch {
		out.Outcomes[i] = Outcome{Input: r.Input, Kind: r.Kind, TargetID: r.TargetID}
	}
	if b.DryRun {
		return out, nil
	}

	// Ids are taken in input order before any write is dispatched.
	for i, r := range batch {
		if r.Kind != MatchInsert {
			continue
		}
		id, err := b.IDs.Next(ctx)
		if err != nil {
			out.Outcomes[i].Err = err
			if IsConnectionError(err) {
				out.skipPending()
				return out, err
			}
			logger.Errorf("Error processing address (input %d): %v", r.Input, err)
			continue
		}
		out.Outcomes[i].TargetID = id
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(b.Workers, 1))
	for i := range batch {
		if out.Outcomes[i].Err != nil {
			continue
		}
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				out.Outcomes[i].Skipped = true
				return nil
			}
			err := b.write(gctx, batch[i], out.Outcomes[i].TargetID)
			if err == nil {
				return nil
			}
			out.Outcomes[i].Err = err
			if IsConnectionError(err) {
				return err
			}
			logger.Errorf("Error processing address (input %d): %v", batch[i].Input, err)
			return nil
		})
	}
	return out, g.Wait()
}

// skipPending marks every record not yet failed as never written.
func (o *BatchOutcome) skipPending() {
	for i := range o.Outcomes {
		if o.Outcomes[i].Err == nil {
			o.Outcomes[i].Skipped = true
		}
	}
}

func (b *BatchCommitter) write(ctx context.Context, r MatchResult, id int64) error {
	switch r.Kind {
	case MatchInsert:
		rec := r.Record
		rec.ID = id
		logger.Debugf("Inserting new address with ID: %d", id)
		if err := b.Writer.InsertAddress(ctx, rec); err != nil {
			return &WriteError{Op: "insert", ID: id, Err: err}
		}
	case MatchUpdate:
		logger.Debugf("Updating address with ID: %d (%v)", r.TargetID, r.Changed)
		if err := b.Writer.UpdateAddress(ctx, r.TargetID, r.Record); err != nil {
			return &WriteError{Op: "update", ID: r.TargetID, Err: err}
		}
	default:
		return fmt.Errorf("unknown match kind %d", r.Kind)
	}
	return nil
}

func (b *BatchCommitter) abort(ctx context.Context, cause error) error {
	logger.Errorf("Aborting run: %v", cause)
	if b.DryRun {
		return cause
	}
	if err := b.Writer.Rollback(context.WithoutCancel(ctx)); err != nil {
		return multierror.Append(cause, fmt.Errorf("rollback: %w", err))
	}
	return cause
}
