package etl

import (
	"context"
	"sync"

	"github.com/BartekS5/donorsync/pkg/models"
)

// MaxFetcher is the part of the target store the allocator reads from.
type MaxFetcher interface {
	FetchMax(ctx context.Context, entity models.Entity) (int64, bool, error)
}

// IDAllocator hands out surrogate ids as max(existing)+1. The maximum is
// queried on every call; ids already handed out in this run are remembered
// so that uncommitted inserts never receive the same id twice. It assumes
// no other writer inserts into the table during the run.
type IDAllocator struct {
	store  MaxFetcher
	entity models.Entity

	mu   sync.Mutex
	last int64
}

func NewIDAllocator(store MaxFetcher, entity models.Entity) *IDAllocator {
	return &IDAllocator{store: store, entity: entity}
}

// Next returns the next unused id.
func (a *IDAllocator) Next(ctx context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	max, _, err := a.store.FetchMax(ctx, a.entity)
	if err != nil {
		return 0, &AllocationError{Entity: string(a.entity), Err: err}
	}
	if a.last > max {
		max = a.last
	}
	a.last = max + 1
	return a.last, nil
}
