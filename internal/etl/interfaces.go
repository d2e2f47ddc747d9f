package etl

import (
	"context"

	"github.com/BartekS5/donorsync/pkg/models"
)

// SourceReader pulls the complete source address set for a run.
type SourceReader interface {
	FetchAll(ctx context.Context) ([]models.SourceAddress, error)
}

// TargetReader is the read side of the target store.
type TargetReader interface {
	FetchAllExisting(ctx context.Context) ([]models.Address, error)
	// FetchMax returns the largest surrogate id of entity; ok is false when
	// the table is empty.
	FetchMax(ctx context.Context, entity models.Entity) (max int64, ok bool, err error)
	Exists(ctx context.Context, entity models.Entity, id int64) (bool, error)
	// ResolveOwnerChain returns the group leader of a volunteer, or the
	// volunteer itself when it has none or is unknown.
	ResolveOwnerChain(ctx context.Context, volunteerID int64) (int64, error)
}

// Committer ends the currently open transaction.
type Committer interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// AddressWriter is what the batch committer needs from the target store.
type AddressWriter interface {
	Committer
	InsertAddress(ctx context.Context, a models.Address) error
	UpdateAddress(ctx context.Context, id int64, a models.Address) error
}

// DonationStore is what the donation pipeline needs from the target store.
type DonationStore interface {
	Committer
	Exists(ctx context.Context, entity models.Entity, id int64) (bool, error)
	ResolveOwnerChain(ctx context.Context, volunteerID int64) (int64, error)
	InsertDonation(ctx context.Context, d models.Donation) error
}

// RowSource is a lazy sequence of raw rows. Next returns io.EOF once the
// sequence is exhausted; Reset starts it over.
type RowSource interface {
	Next() (models.RawRecord, error)
	Reset() error
	Close() error
}

// RejectionSink materialises one rejection bucket.
type RejectionSink interface {
	WriteBucket(ctx context.Context, owner string, records []models.RawRecord) error
}
