package domain

import "time"

// SyncResult holds statistics about a full resync.
type SyncResult struct {
	Articles int
	Events   int
	Dropped  int
	Count    int
	Duration time.Duration
	// StartedAt is when the remote was read. Changes after it may be missing.
	StartedAt time.Time
	SyncedAt  time.Time
}

type SyncState struct {
	ID           int64     `db:"id"`
	Scope        string    `db:"scope"`
	LastSyncedAt time.Time `db:"last_synced_at"`
	LastCount    int64     `db:"last_count"`
	LastDuration int64     `db:"last_duration_ms"`
	TotalSyncs   int64     `db:"total_syncs"`
}
