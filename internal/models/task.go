// Package models provides data model definitions for the task board core.
package models

import "time"

// Status is the board column a task lives in.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "inprogress"
	StatusDone       Status = "done"
)

// Valid reports whether s is one of the known board statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Priority is the urgency bucket of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is the shared mutable record under contention. Version is the
// optimistic-concurrency counter: it starts at 1 and every committed
// mutation increments it by exactly 1.
type Task struct {
	ID          UUID     `db:"id" json:"id"`
	Title       string   `db:"title" json:"title"`
	Description string   `db:"description" json:"description"`
	AssignedUser string  `db:"assigned_user" json:"assignedUser"`
	Status      Status   `db:"status" json:"status"`
	Priority    Priority `db:"priority" json:"priority"`

	Version        int    `db:"version" json:"version"`
	LastModified   int64  `db:"last_modified" json:"lastModified"`
	LastModifiedBy string `db:"last_modified_by" json:"lastModifiedBy"`

	// Advisory edit-lock mirror. Zero values mean unlocked. These fields are
	// never covered by the version counter.
	EditingBy string `db:"editing_by" json:"editingBy,omitempty"`
	EditStart int64  `db:"edit_start" json:"editStart,omitempty"`

	// CompletedAt is set when Status transitions into done and cleared when
	// it transitions away. 0 otherwise.
	CompletedAt int64 `db:"completed_at" json:"completedAt,omitempty"`

	CreatedAt int64 `db:"created_at" json:"createdAt"`
}

// TableName returns the table name for Task.
func (Task) TableName() string {
	return "tasks"
}

// Locked reports whether the task currently carries an edit-lock mirror.
func (t *Task) Locked() bool {
	return t.EditingBy != ""
}

// CreatedAtTime returns CreatedAt as time.Time.
func (t *Task) CreatedAtTime() time.Time {
	return time.Unix(t.CreatedAt, 0)
}

// LastModifiedTime returns LastModified as time.Time.
func (t *Task) LastModifiedTime() time.Time {
	return time.Unix(t.LastModified, 0)
}

// Clone returns a deep copy of the task. Mutation paths work on clones so a
// failed commit never leaves a half-applied record behind.
func (t *Task) Clone() *Task {
	c := *t
	return &c
}
