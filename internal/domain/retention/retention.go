// Package retention selects which dataset summaries fall outside the
// most-recent window. It holds no state; the store applies the selection.
package retention

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/domain/entity"
)

// Entry is the part of a summary the ordering looks at. Owner is carried
// along for callers that prune across owners.
type Entry struct {
	ID        uuid.UUID
	Owner     string
	CreatedAt time.Time
}

// Sort orders entries newest first: created_at descending, then id descending.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return newer(entries[i], entries[j])
	})
}

// ExcessRecords returns the ids beyond the first limit entries in newest-first
// order. A negative limit is treated as zero.
func ExcessRecords(entries []Entry, limit int) []uuid.UUID {
	if limit < 0 {
		limit = 0
	}
	if len(entries) <= limit {
		return nil
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	Sort(sorted)

	excess := make([]uuid.UUID, 0, len(sorted)-limit)
	for _, e := range sorted[limit:] {
		excess = append(excess, e.ID)
	}
	return excess
}

func newer(a, b Entry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return entity.CompareIDs(a.ID, b.ID) > 0
}
