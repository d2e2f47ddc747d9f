package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/BartekS5/donorsync/internal/config"
	"github.com/BartekS5/donorsync/internal/etl"
	"github.com/BartekS5/donorsync/pkg/database"
	"github.com/BartekS5/donorsync/pkg/logger"
	"github.com/BartekS5/donorsync/pkg/models"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
)

// runContext holds everything one run needs. It is built once per command
// and closed on every exit path.
type runContext struct {
	id     string
	cfg    *config.Config
	schema *models.Schema
	store  *etl.SQLStore

	closers []func() error
}

func newRunContext() (*runContext, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := logger.InitLogger(cfg.LogFile, cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to initialise logger: %w", err)
	}
	schema, err := config.LoadMapping(cfg.MappingFile)
	if err != nil {
		logger.Close()
		return nil, err
	}

	rc := &runContext{id: uuid.NewString(), cfg: cfg, schema: schema}
	rc.closers = append(rc.closers, func() error { logger.Close(); return nil })

	dialect, err := database.DialectFor(cfg.TargetDriver)
	if err != nil {
		rc.Close()
		return nil, err
	}
	targetDB, err := database.ConnectSQL(cfg.TargetDriver, cfg.TargetConnString)
	if err != nil {
		rc.Close()
		return nil, err
	}
	rc.store = etl.NewSQLStore(targetDB, dialect, schema)
	rc.closers = append(rc.closers, func() error {
		if err := rc.store.Rollback(context.Background()); err != nil {
			logger.Warnf("Rolling back open transaction on close: %v", err)
		}
		return targetDB.Close()
	})

	logger.Infof("Run %s started", rc.id)
	return rc, nil
}

func (rc *runContext) openSource() (*sql.DB, error) {
	if err := rc.cfg.RequireSource(); err != nil {
		return nil, err
	}
	db, err := database.ConnectSQL(rc.cfg.SourceDriver, rc.cfg.SourceConnString)
	if err != nil {
		return nil, err
	}
	rc.closers = append(rc.closers, db.Close)
	return db, nil
}

func (rc *runContext) rejectionSink(dir string) (etl.RejectionSink, error) {
	sinks := etl.MultiSink{&etl.CSVSink{
		Dir:    dir,
		Comma:  rc.cfg.RejectDelimiter,
		Header: rc.cfg.RejectHeader,
	}}
	if rc.cfg.MongoConnString == "" {
		return sinks, nil
	}
	client, err := database.ConnectMongo(rc.cfg.MongoConnString)
	if err != nil {
		return nil, err
	}
	rc.closers = append(rc.closers, func() error { return client.Disconnect(context.Background()) })
	return append(sinks, etl.NewMongoSink(client, rc.cfg.MongoDatabase, rc.cfg.MongoCollection, rc.id)), nil
}

// Close releases resources in reverse order of acquisition.
func (rc *runContext) Close() error {
	var result *multierror.Error
	for i := len(rc.closers) - 1; i >= 0; i-- {
		if err := rc.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	rc.closers = nil
	return result.ErrorOrNil()
}

func runRefresh(ctx context.Context, cmd *cobra.Command, opts *RefreshOptions) (err error) {
	rc, err := newRunContext()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			err = multierror.Append(err, cerr).ErrorOrNil()
		}
	}()

	sourceDB, err := rc.openSource()
	if err != nil {
		return err
	}

	p := &etl.RefreshPipeline{
		Source:      &etl.SQLSource{DB: sourceDB, Schema: rc.schema},
		Target:      rc.store,
		BatchSize:   override(opts.BatchSize, rc.cfg.BatchSize),
		CommitEvery: override(opts.CommitEvery, rc.cfg.CommitEvery),
		Workers:     override(opts.Workers, rc.cfg.WriteWorkers),
		DryRun:      opts.DryRun,
	}
	report, err := p.Run(ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "Address refresh: extracted %d, inserted %d, updated %d, unchanged %d, errors %d, skipped %d\n",
		report.Extracted, report.Inserted, report.Updated, report.Reconcile.NoOps, report.Errored, report.Skipped)
	return err
}

func runDonations(ctx context.Context, cmd *cobra.Command, opts *DonationOptions) (err error) {
	rc, err := newRunContext()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			err = multierror.Append(err, cerr).ErrorOrNil()
		}
	}()

	dir := opts.RejectDir
	if dir == "" {
		dir = rc.cfg.RejectDir
	}
	sink, err := rc.rejectionSink(dir)
	if err != nil {
		return err
	}

	rows := etl.NewCSVRowSource(',', opts.Files...)
	defer rows.Close()

	p := &etl.DonationPipeline{Store: rc.store, Rows: rows, Sink: sink}
	sum, err := p.Run(ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "Donations: read %d, inserted %d, rejected %d (%d rejection files)\n",
		sum.Read, sum.Inserted, sum.Rejected, sum.Buckets)
	return err
}

func override(flag, fromEnv int) int {
	if flag > 0 {
		return flag
	}
	return fromEnv
}
