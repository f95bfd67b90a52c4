// Package models provides data model definitions for the task board core.
package models

import "time"

// Action is the kind of committed mutation an activity entry records.
type Action string

const (
	ActionCreate           Action = "create"
	ActionEdit             Action = "edit"
	ActionDelete           Action = "delete"
	ActionAssign           Action = "assign"
	ActionStatusChange     Action = "status_change"
	ActionDragDrop         Action = "drag_drop"
	ActionConflictResolved Action = "conflict_resolved"
)

// Valid reports whether a is a known activity action.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionEdit, ActionDelete, ActionAssign,
		ActionStatusChange, ActionDragDrop, ActionConflictResolved:
		return true
	}
	return false
}

// ActivityEntry is an append-only audit record of one committed mutation.
// Entries are never mutated or deleted by the core.
type ActivityEntry struct {
	ID         UUID                   `db:"id" json:"id"`
	Action     Action                 `db:"action" json:"action"`
	EntityType string                 `db:"entity_type" json:"entityType"`
	EntityID   UUID                   `db:"entity_id" json:"entityId"`
	ActorID    string                 `db:"actor_id" json:"userId"`
	ActorName  string                 `db:"actor_name" json:"userName"`
	Details    map[string]interface{} `db:"details" json:"details"`
	Timestamp  int64                  `db:"timestamp" json:"timestamp"`
}

// TableName returns the table name for ActivityEntry.
func (ActivityEntry) TableName() string {
	return "activity_log"
}

// Time returns the Timestamp as time.Time.
func (e *ActivityEntry) Time() time.Time {
	return time.Unix(e.Timestamp, 0)
}
