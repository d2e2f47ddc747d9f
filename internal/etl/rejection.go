package etl

import (
	"context"
	"fmt"
	"strconv"

	"github.com/BartekS5/donorsync/pkg/logger"
	"github.com/BartekS5/donorsync/pkg/models"
	"github.com/hashicorp/go-multierror"
)

// UnassignedOwner is the bucket for rejected rows whose volunteer id could
// not even be parsed.
const UnassignedOwner = "unassigned"

// OwnerResolver finds the routing owner of a volunteer.
type OwnerResolver interface {
	ResolveOwnerChain(ctx context.Context, volunteerID int64) (int64, error)
}

// RejectionRouter collects rejected raw rows per routing owner for the
// duration of a run.
type RejectionRouter struct {
	resolver OwnerResolver
	buckets  map[string][]models.RawRecord
	order    []string
}

func NewRejectionRouter(resolver OwnerResolver) *RejectionRouter {
	return &RejectionRouter{
		resolver: resolver,
		buckets:  make(map[string][]models.RawRecord),
	}
}

// Route appends raw to the bucket of the owner's group leader, or of the
// owner itself when no leader is assigned. It returns the bucket key.
func (r *RejectionRouter) Route(ctx context.Context, raw models.RawRecord, owner *int64) string {
	key := UnassignedOwner
	if owner != nil {
		target := *owner
		leader, err := r.resolver.ResolveOwnerChain(ctx, *owner)
		if err != nil {
			logger.Warnf("Could not resolve group leader of volunteer %d, routing to the volunteer: %v", *owner, err)
		} else {
			target = leader
		}
		key = strconv.FormatInt(target, 10)
	}

	if _, ok := r.buckets[key]; !ok {
		r.order = append(r.order, key)
	}
	r.buckets[key] = append(r.buckets[key], raw)
	return key
}

// Owners returns the bucket keys in the order they were first used.
func (r *RejectionRouter) Owners() []string {
	return append([]string(nil), r.order...)
}

// Bucket returns the rows routed to owner.
func (r *RejectionRouter) Bucket(owner string) []models.RawRecord {
	return r.buckets[owner]
}

// Len is the total number of rejected rows held.
func (r *RejectionRouter) Len() int {
	n := 0
	for _, b := range r.buckets {
		n += len(b)
	}
	return n
}

// Flush writes every bucket to sink once. A failing bucket does not stop
// the others; all failures are returned together.
func (r *RejectionRouter) Flush(ctx context.Context, sink RejectionSink) error {
	var result *multierror.Error
	for _, owner := range r.order {
		records := r.buckets[owner]
		if err := sink.WriteBucket(ctx, owner, records); err != nil {
			logger.Errorf("Failed to write rejection bucket for %s (%d records): %v", owner, len(records), err)
			result = multierror.Append(result, fmt.Errorf("bucket %s: %w", owner, err))
			continue
		}
		logger.Infof("Wrote %d rejected records for %s", len(records), owner)
	}
	return result.ErrorOrNil()
}

// MultiSink writes each bucket to every sink in turn.
type MultiSink []RejectionSink

func (m MultiSink) WriteBucket(ctx context.Context, owner string, records []models.RawRecord) error {
	var result *multierror.Error
	for _, s := range m {
		if err := s.WriteBucket(ctx, owner, records); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
