package etl

import (
	"context"
	"errors"
	"testing"

	"github.com/BartekS5/donorsync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteToLeaderOrSelf(t *testing.T) {
	store := newFakeStore()
	store.volunteers[5] = nil
	store.volunteers[6] = ptr(int64(2))

	r := NewRejectionRouter(store)
	ctx := context.Background()
	assert.Equal(t, "5", r.Route(ctx, donationRow("1"), ptr(int64(5))))
	assert.Equal(t, "2", r.Route(ctx, donationRow("2"), ptr(int64(6))))
	assert.Equal(t, "2", r.Route(ctx, donationRow("3"), ptr(int64(6))))
	assert.Equal(t, "404", r.Route(ctx, donationRow("4"), ptr(int64(404))), "unknown volunteers own their rejects")
	assert.Equal(t, UnassignedOwner, r.Route(ctx, donationRow("5"), nil))

	assert.Equal(t, []string{"5", "2", "404", UnassignedOwner}, r.Owners())
	require.Len(t, r.Bucket("2"), 2)
	assert.Equal(t, "2", r.Bucket("2")[0].Values[0])
	assert.Equal(t, "3", r.Bucket("2")[1].Values[0])
	assert.Equal(t, 5, r.Len())
}

func TestRouteFallsBackWhenResolutionFails(t *testing.T) {
	store := newFakeStore()
	store.resolveErr = errors.New("timeout")

	r := NewRejectionRouter(store)
	assert.Equal(t, "9", r.Route(context.Background(), donationRow("1"), ptr(int64(9))))
	assert.Len(t, r.Bucket("9"), 1)
}

func TestRouteKeepsRawRecord(t *testing.T) {
	r := NewRejectionRouter(newFakeStore())
	raw := donationRow("7", " Ada  Lovelace ", "", "2024-01-01", "-5.00", "3")
	r.Route(context.Background(), raw, ptr(int64(3)))
	assert.Equal(t, raw, r.Bucket("3")[0])
}

func TestFlushWritesEveryBucketOnce(t *testing.T) {
	store := newFakeStore()
	r := NewRejectionRouter(store)
	ctx := context.Background()
	r.Route(ctx, donationRow("1"), ptr(int64(1)))
	r.Route(ctx, donationRow("2"), ptr(int64(2)))
	r.Route(ctx, donationRow("3"), ptr(int64(1)))

	sink := newMemSink()
	sink.fail["1"] = errors.New("disk full")

	err := r.Flush(ctx, sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, []string{"1", "2"}, sink.calls, "a failing bucket does not stop the rest")
	assert.Len(t, sink.buckets["2"], 1)
}

func TestMultiSink(t *testing.T) {
	a, b := newMemSink(), newMemSink()
	b.fail["x"] = errors.New("down")
	records := []models.RawRecord{donationRow("1")}

	err := MultiSink{a, b}.WriteBucket(context.Background(), "x", records)
	assert.Error(t, err)
	assert.Equal(t, records, a.buckets["x"])
	assert.Equal(t, []string{"x"}, b.calls)
}
