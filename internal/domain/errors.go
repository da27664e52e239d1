package domain

import "errors"

var (
	// ErrSourceUnavailable means the remote store could not be reached or timed out.
	ErrSourceUnavailable = errors.New("content source unavailable")
	// ErrSourceEmpty means the remote store answered with no records where some were expected.
	ErrSourceEmpty        = errors.New("content source returned no records")
	ErrValidationRejected = errors.New("record rejected by projection")
	ErrSnapshotCorrupt    = errors.New("snapshot corrupt")
	ErrSyncInProgress     = errors.New("sync in progress")
	ErrNotFound           = errors.New("content not found")
)
