package entity

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// DefaultRetentionLimit is the number of summaries kept per owner.
const DefaultRetentionLimit = 5

// EquipmentRow is one parsed data row of an upload. Extra holds the columns
// outside the required set, keyed by header name.
type EquipmentRow struct {
	Name        string
	Category    string
	Flowrate    float64
	Pressure    float64
	Temperature float64
	Extra       map[string]string
}

type Means struct {
	Flowrate    float64 `json:"flowrate"`
	Pressure    float64 `json:"pressure"`
	Temperature float64 `json:"temperature"`
}

// CategoryCounts maps a category label to the number of rows carrying it.
type CategoryCounts map[string]int

func (c CategoryCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Aggregate is the derived statistics of one batch of rows.
type Aggregate struct {
	RowCount       int
	Means          Means
	CategoryCounts CategoryCounts
}

// DatasetSummary is the durable record of one ingested upload.
type DatasetSummary struct {
	ID             uuid.UUID
	Owner          string
	Label          string
	CreatedAt      time.Time
	RowCount       int
	Means          Means
	CategoryCounts CategoryCounts
}

// CompareIDs orders ids by their byte representation, which for UUIDv7 follows
// creation order.
func CompareIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}

// DatasetRef names a stored summary together with its owner.
type DatasetRef struct {
	ID    uuid.UUID
	Owner string
}

// IngestResult is what an upload returns to the caller: the persisted summary,
// the rows it was computed from, and any summaries evicted by retention.
type IngestResult struct {
	Summary DatasetSummary
	Rows    []EquipmentRow
	Columns []string
	Evicted []DatasetRef
}
