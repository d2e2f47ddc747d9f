package etl

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/BartekS5/donorsync/pkg/logger"
	"github.com/BartekS5/donorsync/pkg/models"
	"github.com/hashicorp/go-multierror"
)

// AddressTarget is the target store as seen by the address refresh.
type AddressTarget interface {
	TargetReader
	AddressWriter
}

// RefreshPipeline reconciles the source address table into the target.
type RefreshPipeline struct {
	Source      SourceReader
	Target      AddressTarget
	BatchSize   int
	CommitEvery int
	Workers     int
	DryRun      bool
}

// RefreshReport is the outcome of one address refresh.
type RefreshReport struct {
	Extracted int
	Existing  int
	Reconcile ReconcileStats
	Summary
}

func (p *RefreshPipeline) Run(ctx context.Context) (RefreshReport, error) {
	var report RefreshReport
	logger.Infof("Starting address refresh process. Batch size: %d, commit every: %d batches, dry run: %v",
		p.BatchSize, p.CommitEvery, p.DryRun)

	rows, err := p.Source.FetchAll(ctx)
	if err != nil {
		return report, fmt.Errorf("extracting source addresses: %w", err)
	}
	report.Extracted = len(rows)
	logger.Infof("Extracted %d addresses from source", len(rows))

	existing, err := p.Target.FetchAllExisting(ctx)
	if err != nil {
		return report, rollbackOn(ctx, p.Target, fmt.Errorf("loading existing addresses: %w", err))
	}
	report.Existing = len(existing)
	logger.Infof("Found %d existing addresses in target", len(existing))

	idx := BuildIndex(existing)
	results, stats := Reconcile(idx, TransformAddresses(rows))
	report.Reconcile = stats
	logger.Infof("Reconciled: %d to insert, %d to update, %d unchanged", stats.Inserts, stats.Updates, stats.NoOps)

	committer := &BatchCommitter{
		Writer:      p.Target,
		IDs:         NewIDAllocator(p.Target, models.EntityAddress),
		BatchSize:   p.BatchSize,
		CommitEvery: p.CommitEvery,
		Workers:     p.Workers,
		DryRun:      p.DryRun,
	}
	report.Summary, err = committer.Run(ctx, results)
	if err != nil {
		return report, err
	}
	if p.DryRun {
		// Reads opened a transaction; nothing was written to it.
		if err := p.Target.Rollback(ctx); err != nil {
			logger.Warnf("Closing dry-run transaction: %v", err)
		}
	}

	logger.Infof("Address refresh completed. Updated: %d, Inserted: %d, Errors: %d",
		report.Updated, report.Inserted, report.Errored)
	return report, nil
}

// DonationPipeline validates donation rows, inserts the valid ones and
// routes the rest to per-owner rejection buckets.
type DonationPipeline struct {
	Store     DonationStore
	Rows      RowSource
	Sink      RejectionSink
	Validator *ValidationPipeline
}

// DonationSummary is the outcome of one donation load.
type DonationSummary struct {
	Read     int
	Inserted int
	Rejected int
	// Errored counts rows that passed validation but failed to insert.
	Errored int
	Reasons map[FailureReason]int
	Buckets int
}

// Run consumes every row, commits the inserts and flushes the rejection
// buckets. The buckets are flushed even when the run fails.
func (p *DonationPipeline) Run(ctx context.Context) (sum DonationSummary, err error) {
	sum.Reasons = make(map[FailureReason]int)
	validator := p.Validator
	if validator == nil {
		validator = NewValidationPipeline(p.Store)
	}
	router := NewRejectionRouter(p.Store)

	defer func() {
		sum.Rejected = router.Len()
		sum.Buckets = len(router.Owners())
		if ferr := router.Flush(context.WithoutCancel(ctx), p.Sink); ferr != nil {
			err = multierror.Append(err, fmt.Errorf("flushing rejections: %w", ferr)).ErrorOrNil()
		}
	}()

	for {
		raw, rerr := p.Rows.Next()
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return sum, rollbackOn(ctx, p.Store, fmt.Errorf("reading donations: %w", rerr))
		}
		sum.Read++

		d := ParseDonation(raw)
		if err := p.process(ctx, validator, &d, &sum); err != nil {
			if IsConnectionError(err) {
				return sum, rollbackOn(ctx, p.Store, err)
			}
			logger.Warnf("Rejected donation from %s line %d: %v", raw.Source, raw.Line, err)
			router.Route(ctx, raw, d.VolunteerID)
		}
	}

	if err := p.Store.Commit(ctx); err != nil {
		return sum, rollbackOn(ctx, p.Store, fmt.Errorf("committing donations: %w", err))
	}
	logger.Infof("Donation processing complete. Read: %d, Inserted: %d, Rejected: %d",
		sum.Read, sum.Inserted, router.Len())
	return sum, nil
}

// process validates and inserts one donation. A returned error means the
// row is rejected, unless it is a connection error.
func (p *DonationPipeline) process(ctx context.Context, v *ValidationPipeline, d *models.Donation, sum *DonationSummary) error {
	if err := v.Validate(ctx, d); err != nil {
		var vf *ValidationFailure
		if errors.As(err, &vf) {
			sum.Reasons[vf.Reason]++
		}
		return err
	}
	if err := p.Store.InsertDonation(ctx, *d); err != nil {
		sum.Errored++
		return &WriteError{Op: "insert donation", ID: *d.ID, Err: classify("insert donation", err)}
	}
	sum.Inserted++
	return nil
}

func rollbackOn(ctx context.Context, c Committer, cause error) error {
	logger.Errorf("Aborting run: %v", cause)
	if err := c.Rollback(context.WithoutCancel(ctx)); err != nil {
		return multierror.Append(cause, fmt.Errorf("rollback: %w", err))
	}
	return cause
}
