package etl

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/BartekS5/donorsync/pkg/models"
)

// fakeStore is an in-memory target store. It records every write and
// commit in ops so tests can assert on ordering.
type fakeStore struct {
	mu sync.Mutex

	existing   []models.Address
	addressIDs map[int64]bool
	// volunteers maps a volunteer id to its group leader (nil when none).
	volunteers map[int64]*int64

	maxErr      error
	existsErr   error
	resolveErr  error
	commitErr   error
	insertErr   func(models.Address) error
	updateErr   func(int64) error
	donationErr func(models.Donation) error

	inserted    []models.Address
	updated     []models.Address
	donations   []models.Donation
	ops         []string
	commits     int
	rollbacks   int
	existsCalls int
}

func newFakeStore(existing ...models.Address) *fakeStore {
	return &fakeStore{
		existing:   existing,
		addressIDs: map[int64]bool{},
		volunteers: map[int64]*int64{},
	}
}

func (f *fakeStore) FetchAllExisting(context.Context) ([]models.Address, error) {
	return f.existing, nil
}

func (f *fakeStore) FetchMax(_ context.Context, entity models.Entity) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.maxErr != nil {
		return 0, false, f.maxErr
	}
	var max int64
	found := false
	for _, a := range append(append([]models.Address(nil), f.existing...), f.inserted...) {
		if a.ID > max {
			max = a.ID
		}
		found = true
	}
	return max, found, nil
}

func (f *fakeStore) Exists(_ context.Context, entity models.Entity, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsCalls++
	if f.existsErr != nil {
		return false, f.existsErr
	}
	switch entity {
	case models.EntityAddress:
		return f.addressIDs[id], nil
	case models.EntityVolunteer:
		_, ok := f.volunteers[id]
		return ok, nil
	}
	return false, fmt.Errorf("unexpected entity %s", entity)
}

func (f *fakeStore) ResolveOwnerChain(_ context.Context, id int64) (int64, error) {
	if f.resolveErr != nil {
		return 0, f.resolveErr
	}
	if leader, ok := f.volunteers[id]; ok && leader != nil {
		return *leader, nil
	}
	return id, nil
}

func (f *fakeStore) InsertAddress(_ context.Context, a models.Address) error {
	if f.insertErr != nil {
		if err := f.insertErr(a); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, a)
	f.ops = append(f.ops, fmt.Sprintf("insert:%d", a.ID))
	return nil
}

func (f *fakeStore) UpdateAddress(_ context.Context, id int64, a models.Address) error {
	if f.updateErr != nil {
		if err := f.updateErr(id); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = id
	f.updated = append(f.updated, a)
	f.ops = append(f.ops, fmt.Sprintf("update:%d", id))
	return nil
}

func (f *fakeStore) InsertDonation(_ context.Context, d models.Donation) error {
	if f.donationErr != nil {
		if err := f.donationErr(d); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.donations = append(f.donations, d)
	return nil
}

func (f *fakeStore) Commit(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return f.commitErr
	}
	f.commits++
	f.ops = append(f.ops, "commit")
	return nil
}

func (f *fakeStore) Rollback(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rollbacks++
	f.ops = append(f.ops, "rollback")
	return nil
}

type fakeSource struct {
	rows []models.SourceAddress
	err  error
}

func (s *fakeSource) FetchAll(context.Context) ([]models.SourceAddress, error) {
	return s.rows, s.err
}

// memSink keeps flushed buckets in memory.
type memSink struct {
	buckets map[string][]models.RawRecord
	fail    map[string]error
	calls   []string
}

func newMemSink() *memSink {
	return &memSink{buckets: map[string][]models.RawRecord{}, fail: map[string]error{}}
}

func (m *memSink) WriteBucket(_ context.Context, owner string, records []models.RawRecord) error {
	m.calls = append(m.calls, owner)
	if err := m.fail[owner]; err != nil {
		return err
	}
	m.buckets[owner] = append([]models.RawRecord(nil), records...)
	return nil
}

// sliceRows is a RowSource over fixed records.
type sliceRows struct {
	records []models.RawRecord
	pos     int
	err     error
}

func (s *sliceRows) Next() (models.RawRecord, error) {
	if s.pos >= len(s.records) {
		if s.err != nil {
			return models.RawRecord{}, s.err
		}
		return models.RawRecord{}, io.EOF
	}
	r := s.records[s.pos]
	s.pos++
	return r, nil
}

func (s *sliceRows) Reset() error { s.pos = 0; return nil }
func (s *sliceRows) Close() error { return nil }

func ptr[T any](v T) *T { return &v }

var donationHeader = []string{"donation_id", "donor_name", "address_id", "donation_date", "donation_amount", "volunteer_id"}

func donationRow(values ...string) models.RawRecord {
	return models.RawRecord{Header: donationHeader, Values: values, Source: "donations.csv"}
}
