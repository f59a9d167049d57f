package model

import "time"

// Drawing is one recorded winner. drawing_date is unique across all rows,
// which is what makes the draw exactly-once; rows are append-only and only
// the is_current flag ever changes after insert.
type Drawing struct {
	Id            int       `json:"id"`
	Username      string    `json:"username"`
	Points        int64     `json:"points"`
	DrawingDate   string    `json:"drawing_date"`
	SelectedAt    time.Time `json:"selected_at"`
	IsCurrent     bool      `json:"is_current"`
	TotalEligible int       `json:"total_eligible"`
	SeedMaterial  string    `json:"seed_material"`
	RandomSeed    int64     `json:"random_seed"`
	SelectionHash string    `json:"selection_hash"`
	SnapshotId    *int      `json:"snapshot_id,omitempty"`
}
