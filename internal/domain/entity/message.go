package entity

import "time"

// DatasetIngestedMessage is published after a summary is committed.
type DatasetIngestedMessage struct {
	DatasetID string    `json:"dataset_id"`
	Owner     string    `json:"owner"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	Evicted   []string  `json:"evicted,omitempty"`
}
