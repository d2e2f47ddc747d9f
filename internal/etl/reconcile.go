package etl

import "github.com/BartekS5/donorsync/pkg/models"

// MatchKind tells the committer what to do with a reconciled record.
type MatchKind int

const (
	MatchInsert MatchKind = iota + 1
	MatchUpdate
)

func (k MatchKind) String() string {
	switch k {
	case MatchInsert:
		return "insert"
	case MatchUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// MatchResult is the decision for one incoming record. For updates TargetID
// is the matched surrogate id and Changed lists the differing fields; the
// write always carries the full Record.
type MatchResult struct {
	Kind     MatchKind
	TargetID int64
	Record   models.Address
	Changed  []string
	// Input is the position of the originating record in the incoming slice.
	Input int
}

// Index is a read snapshot of the target addresses keyed by natural key.
type Index struct {
	byKey map[string]models.Address
}

// BuildIndex indexes existing target rows. When two rows share a key the
// later one wins.
func BuildIndex(existing []models.Address) *Index {
	idx := &Index{byKey: make(map[string]models.Address, len(existing))}
	for _, a := range existing {
		idx.byKey[AddressKey(a)] = a
	}
	return idx
}

// Lookup returns the existing record stored under key.
func (i *Index) Lookup(key string) (models.Address, bool) {
	a, ok := i.byKey[key]
	return a, ok
}

func (i *Index) Len() int { return len(i.byKey) }

// ReconcileStats counts the decisions made by Reconcile.
type ReconcileStats struct {
	Inserts int
	Updates int
	NoOps   int
}

// Reconcile classifies each incoming record against the index. Records
// whose key is unknown become inserts; records whose key matches and whose
// fields differ become updates; identical records are dropped.
//
// Incoming records are not deduplicated: two records with the same key are
// both compared against the same indexed row, which is never modified here.
func Reconcile(idx *Index, incoming []models.Address) ([]MatchResult, ReconcileStats) {
	var stats ReconcileStats
	results := make([]MatchResult, 0, len(incoming))
	for i, rec := range incoming {
		existing, ok := idx.Lookup(AddressKey(rec))
		if !ok {
			results = append(results, MatchResult{Kind: MatchInsert, Record: rec, Input: i})
			stats.Inserts++
			continue
		}
		changed := existing.Diff(rec)
		if len(changed) == 0 {
			stats.NoOps++
			continue
		}
		rec.ID = existing.ID
		results = append(results, MatchResult{
			Kind:     MatchUpdate,
			TargetID: existing.ID,
			Record:   rec,
			Changed:  changed,
			Input:    i,
		})
		stats.Updates++
	}
	return results, stats
}
