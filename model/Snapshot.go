package model

import "time"

// Snapshot is one immutable capture of the full leaderboard. Entries live in
// snapshot_entries; a snapshot is never updated after insert.
type Snapshot struct {
	Id            int       `json:"id"`
	SnapshotDate  string    `json:"snapshot_date"`
	FetchedAt     time.Time `json:"fetched_at"`
	TotalAccounts int       `json:"total_accounts"`
	CreatedAt     time.Time `json:"created_at"`
}

type SnapshotEntry struct {
	SnapshotId  int    `json:"snapshot_id"`
	Username    string `json:"username"`
	TotalPoints int64  `json:"total_points"`
	Rank        int    `json:"rank"`
}
