// Package events provides the broadcast fabric: a typed publish/subscribe
// bus that fans state-change events out to every connected participant
// except the originator.
//
// Delivery is best-effort and at-most-once. There is no persistence, replay
// or acknowledgment; a disconnected participant simply misses events until
// it resynchronizes by re-fetching full state.
package events

import (
	"time"

	"github.com/ashmit2704/taskboard/internal/models"
)

// Kind identifies an event on the wire. The names are the socket event names
// board clients already listen for.
type Kind string

const (
	KindTaskUpdated      Kind = "task-updated"
	KindStatusUpdated    Kind = "task-status-updated"
	KindTaskDeleted      Kind = "task-deleted"
	KindTaskLocked       Kind = "task-locked"
	KindTaskUnlocked     Kind = "task-unlocked"
	KindConflictDetected Kind = "task-conflict-detected"
	KindConflictResolved Kind = "task-conflict-resolved"
	KindActivityLogged   Kind = "activity-logged"
)

// Event is one state change fanned out to connected participants. Origin is
// the transport connection whose action caused the event; that connection is
// excluded from delivery. An empty Origin means the event is not attributable
// and goes to everyone.
type Event struct {
	Kind      Kind        `json:"type"`
	Origin    string      `json:"-"`
	Timestamp int64       `json:"timestamp"`
	Payload   interface{} `json:"data"`
}

// NewEvent builds an event stamped with the current time.
func NewEvent(kind Kind, origin string, payload interface{}) Event {
	return Event{
		Kind:      kind,
		Origin:    origin,
		Timestamp: time.Now().Unix(),
		Payload:   payload,
	}
}

// TaskPayload carries a full record snapshot, used by task-updated.
type TaskPayload struct {
	Task *models.Task `json:"task"`
}

// StatusPayload carries a status change plus the resulting record.
type StatusPayload struct {
	TaskID    models.UUID   `json:"taskId"`
	NewStatus models.Status `json:"newStatus"`
	Task      *models.Task  `json:"task"`
}

// DeletedPayload announces a removed record.
type DeletedPayload struct {
	TaskID models.UUID `json:"taskId"`
}

// LockedPayload announces an acquired edit lease so clients can render an
// "actively being edited" indicator.
type LockedPayload struct {
	TaskID     models.UUID `json:"taskId"`
	EditorID   string      `json:"editorId"`
	EditorName string      `json:"editorName"`
	EditStart  int64       `json:"editStartTime"`
}

// UnlockedPayload announces a released or expired edit lease.
type UnlockedPayload struct {
	TaskID models.UUID `json:"taskId"`
}

// ConflictDetectedPayload announces that a participant's pending edit turned
// out stale, so others can surface the contention.
type ConflictDetectedPayload struct {
	TaskID         models.UUID `json:"taskId"`
	CurrentVersion int         `json:"currentVersion"`
	ClaimedVersion int         `json:"claimedVersion"`
}

// ConflictResolvedPayload carries the outcome of a resolution.
type ConflictResolvedPayload struct {
	TaskID     models.UUID  `json:"taskId"`
	Task       *models.Task `json:"task"`
	Resolution string       `json:"resolution"`
}

// ActivityPayload carries a committed activity entry plus its display text.
type ActivityPayload struct {
	Entry       *models.ActivityEntry `json:"entry"`
	DisplayText string                `json:"displayText"`
}
