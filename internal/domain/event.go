package domain

import "time"

type EventAction string

const (
	ActionCreated  EventAction = "created"
	ActionUpdated  EventAction = "updated"
	ActionDeleted  EventAction = "deleted"
	ActionResynced EventAction = "resynced"
)

// ContentEvent notifies downstream indexers that content changed.
type ContentEvent struct {
	Action    EventAction `json:"action"`
	ID        string      `json:"id,omitempty"`
	Kind      Kind        `json:"kind,omitempty"`
	Count     int         `json:"count,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
