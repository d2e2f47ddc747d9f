package etl

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/BartekS5/donorsync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mainStreet(id int64, postal string) models.Address {
	a := TransformAddress(models.SourceAddress{
		StreetNumber: "100",
		StreetName:   "Main St",
		StreetType:   "ST",
		PostalCode:   postal,
		City:         "Springfield",
		Province:     "ON",
	})
	a.ID = id
	return a
}

func TestRefreshUpdatesMatchedAddress(t *testing.T) {
	store := newFakeStore(mainStreet(7, "12345"))
	source := &fakeSource{rows: []models.SourceAddress{{
		StreetNumber: "100",
		StreetName:   "Main St",
		StreetType:   "ST",
		PostalCode:   "12 345",
		City:         "Springfield",
		Province:     "ON",
	}}}

	p := &RefreshPipeline{Source: source, Target: store, BatchSize: 10, CommitEvery: 1}
	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Extracted)
	assert.Equal(t, 1, report.Existing)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 0, report.Inserted)
	require.Len(t, store.updated, 1)
	assert.Equal(t, int64(7), store.updated[0].ID)
	assert.Equal(t, "12 345", store.updated[0].PostalCode, "the full new record is written")
	assert.Equal(t, []string{"update:7", "commit"}, store.ops)
}

func TestRefreshInsertsUnknownAddress(t *testing.T) {
	store := newFakeStore(mainStreet(41, "12345"))
	source := &fakeSource{rows: []models.SourceAddress{
		{StreetNumber: "100", StreetName: "Main St", StreetType: "ST", PostalCode: "12345", City: "Springfield", Province: "ON"},
		{StreetNumber: "5", StreetName: "Elm", City: "Springfield", Province: "ON"},
	}}

	p := &RefreshPipeline{Source: source, Target: store, BatchSize: 10, CommitEvery: 10}
	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ReconcileStats{Inserts: 1, NoOps: 1}, report.Reconcile)
	require.Len(t, store.inserted, 1)
	got := store.inserted[0]
	assert.Equal(t, int64(42), got.ID)
	assert.Equal(t, models.Unknown, got.StreetType)
	assert.Equal(t, models.Unknown, got.PostalCode)
	assert.Equal(t, 1, report.Commits)
}

func TestRefreshDryRunWritesNothing(t *testing.T) {
	store := newFakeStore(mainStreet(7, "12345"))
	source := &fakeSource{rows: []models.SourceAddress{
		{StreetNumber: "100", StreetName: "Main St", StreetType: "ST", PostalCode: "12345", City: "Shelbyville", Province: "ON"},
		{StreetNumber: "1", StreetName: "Oak"},
	}}

	p := &RefreshPipeline{Source: source, Target: store, BatchSize: 1, CommitEvery: 1, DryRun: true}
	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, []string{"rollback"}, store.ops)
}

func TestRefreshSourceFailure(t *testing.T) {
	store := newFakeStore()
	p := &RefreshPipeline{Source: &fakeSource{err: errors.New("login failed")}, Target: store}
	_, err := p.Run(context.Background())
	assert.ErrorContains(t, err, "login failed")
	assert.Empty(t, store.ops)
}

func donationStore() *fakeStore {
	store := newFakeStore()
	store.addressIDs[3] = true
	store.volunteers[8] = ptr(int64(2))
	store.volunteers[2] = nil
	return store
}

func TestDonationLoadInsertsAndRejects(t *testing.T) {
	store := donationStore()
	rows := &sliceRows{records: []models.RawRecord{
		donationRow("1", "Ada Lovelace", "3", "2024-01-02", "25.50", "8"),
		donationRow("2", "Alan Turing", "3", "2024-01-03", "-5.00", "8"),
		donationRow("3", "Grace Hopper", "", "2024-01-04", "10", "2"),
		donationRow("4", "Edsger", "3", "2024-01-05", "10", "2"),
		donationRow("5", "Barbara Liskov", "3", "2024-01-06", "10", "x"),
	}}
	sink := newMemSink()

	p := &DonationPipeline{Store: store, Rows: rows, Sink: sink}
	sum, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, sum.Read)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, 4, sum.Rejected)
	assert.Equal(t, 2, sum.Buckets)
	assert.Equal(t, 1, sum.Reasons[NonPositiveAmount])
	assert.Equal(t, 1, sum.Reasons[EmptyReference])
	assert.Equal(t, 1, sum.Reasons[IncompleteRecord])
	assert.Equal(t, 1, sum.Reasons[EmptyOwner])

	require.Len(t, store.donations, 1)
	assert.Equal(t, "Ada", *store.donations[0].FirstName)
	assert.Equal(t, "Lovelace", *store.donations[0].LastName)
	assert.Equal(t, 1, store.commits)

	require.Len(t, sink.buckets["2"], 3, "volunteer 8 reports to leader 2")
	assert.Equal(t, "-5.00", sink.buckets["2"][0].Values[4])
	assert.Equal(t, []string{"2", UnassignedOwner}, sink.calls)
}

func TestDonationInsertFailureIsRejected(t *testing.T) {
	store := donationStore()
	store.donationErr = func(d models.Donation) error {
		if *d.ID == 2 {
			return errors.New("violation of PRIMARY KEY constraint")
		}
		return nil
	}
	rows := &sliceRows{records: []models.RawRecord{
		donationRow("1", "Ada Lovelace", "3", "2024-01-02", "25.50", "2"),
		donationRow("2", "Ada Lovelace", "3", "2024-01-02", "25.50", "2"),
	}}
	sink := newMemSink()

	sum, err := (&DonationPipeline{Store: store, Rows: rows, Sink: sink}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, 1, sum.Errored)
	assert.Equal(t, 1, sum.Rejected)
	assert.Len(t, sink.buckets["2"], 1)
}

func TestDonationConnectionLossAborts(t *testing.T) {
	store := donationStore()
	store.donationErr = func(d models.Donation) error {
		if *d.ID == 2 {
			return driver.ErrBadConn
		}
		return nil
	}
	rows := &sliceRows{records: []models.RawRecord{
		donationRow("1", "Ada Lovelace", "3", "2024-01-02", "-1", "2"),
		donationRow("2", "Alan Turing", "3", "2024-01-02", "25.50", "2"),
		donationRow("3", "Grace Hopper", "3", "2024-01-02", "25.50", "2"),
	}}
	sink := newMemSink()

	sum, err := (&DonationPipeline{Store: store, Rows: rows, Sink: sink}).Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
	assert.Equal(t, 2, sum.Read, "the run stops at the failing row")
	assert.Equal(t, 0, store.commits)
	assert.Equal(t, 1, store.rollbacks)
	assert.Len(t, sink.buckets["2"], 1, "rejections gathered before the failure are still written")
}

func TestDonationReadErrorAborts(t *testing.T) {
	store := donationStore()
	rows := &sliceRows{err: errors.New("bare \" in non-quoted field")}

	_, err := (&DonationPipeline{Store: store, Rows: rows, Sink: newMemSink()}).Run(context.Background())
	assert.ErrorContains(t, err, "reading donations")
	assert.Equal(t, 1, store.rollbacks)
}

func TestDonationFlushFailureIsReported(t *testing.T) {
	store := donationStore()
	rows := &sliceRows{records: []models.RawRecord{donationRow("1", "Ada Lovelace", "3", "2024-01-02", "0", "2")}}
	sink := newMemSink()
	sink.fail["2"] = errors.New("read-only file system")

	sum, err := (&DonationPipeline{Store: store, Rows: rows, Sink: sink}).Run(context.Background())
	assert.ErrorContains(t, err, "read-only file system")
	assert.Equal(t, 1, sum.Rejected)
	assert.Equal(t, 1, store.commits)
}
