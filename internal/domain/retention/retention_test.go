package retention

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func seqID(n byte) uuid.UUID {
	var id uuid.UUID
	id[15] = n
	return id
}

func TestExcessRecords(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		entries []Entry
		limit   int
		want    []uuid.UUID
	}{
		{
			name:  "under limit",
			limit: 5,
			entries: []Entry{
				{ID: seqID(1), CreatedAt: base},
				{ID: seqID(2), CreatedAt: base.Add(time.Second)},
			},
		},
		{
			name:  "one over limit drops the oldest",
			limit: 2,
			entries: []Entry{
				{ID: seqID(2), CreatedAt: base.Add(time.Second)},
				{ID: seqID(1), CreatedAt: base},
				{ID: seqID(3), CreatedAt: base.Add(2 * time.Second)},
			},
			want: []uuid.UUID{seqID(1)},
		},
		{
			name:  "reduced limit drops every excess record",
			limit: 1,
			entries: []Entry{
				{ID: seqID(1), CreatedAt: base},
				{ID: seqID(2), CreatedAt: base.Add(time.Second)},
				{ID: seqID(3), CreatedAt: base.Add(2 * time.Second)},
				{ID: seqID(4), CreatedAt: base.Add(3 * time.Second)},
			},
			want: []uuid.UUID{seqID(3), seqID(2), seqID(1)},
		},
		{
			name:  "timestamp collision keeps the higher id",
			limit: 1,
			entries: []Entry{
				{ID: seqID(9), CreatedAt: base},
				{ID: seqID(4), CreatedAt: base},
			},
			want: []uuid.UUID{seqID(4)},
		},
		{
			name:  "zero limit selects everything",
			limit: 0,
			entries: []Entry{
				{ID: seqID(1), CreatedAt: base},
			},
			want: []uuid.UUID{seqID(1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExcessRecords(tt.entries, tt.limit)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExcessRecordsIdempotent(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var entries []Entry
	for i := 0; i < 8; i++ {
		entries = append(entries, Entry{ID: seqID(byte(i + 1)), CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	excess := ExcessRecords(entries, 5)
	assert.Len(t, excess, 3)

	drop := make(map[uuid.UUID]bool, len(excess))
	for _, id := range excess {
		drop[id] = true
	}
	var kept []Entry
	for _, e := range entries {
		if !drop[e.ID] {
			kept = append(kept, e)
		}
	}

	assert.Empty(t, ExcessRecords(kept, 5))
}

func TestExcessRecordsDoesNotReorderInput(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		{ID: seqID(1), CreatedAt: base},
		{ID: seqID(2), CreatedAt: base.Add(time.Second)},
	}
	ExcessRecords(entries, 1)
	assert.Equal(t, seqID(1), entries[0].ID)
}
