// Package activity durably logs each committed mutation for audit and
// history display. The recorder consumes outcomes from the other components
// but never gates them: a failed activity write is logged and swallowed.
package activity

import (
	"fmt"

	"github.com/ashmit2704/taskboard/internal/events"
	"github.com/ashmit2704/taskboard/internal/logging"
	"github.com/ashmit2704/taskboard/internal/models"
)

// DefaultFeedSize is how many entries the recent feed returns by default.
const DefaultFeedSize = 20

// Store is the slice of the repository the recorder needs.
type Store interface {
	CreateActivityEntry(entry *models.ActivityEntry) error
	RecentActivity(limit int) ([]*models.ActivityEntry, error)
}

// Bus is the publish side of the broadcast fabric.
type Bus interface {
	Publish(ev events.Event)
}

// Actor identifies who performed the recorded mutation.
type Actor struct {
	ID   string
	Name string
}

// Recorder appends activity entries and announces them on the bus.
type Recorder struct {
	store Store
	bus   Bus
}

// NewRecorder creates a Recorder.
func NewRecorder(store Store, bus Bus) *Recorder {
	return &Recorder{store: store, bus: bus}
}

// Record appends one entry and broadcasts activity-logged to everyone (the
// feed is shared state, so the originator sees it too). Failures never
// propagate to the mutation that triggered the entry.
func (r *Recorder) Record(action models.Action, entityID models.UUID, actor Actor, details map[string]interface{}) {
	if details == nil {
		details = map[string]interface{}{}
	}
	entry := &models.ActivityEntry{
		Action:     action,
		EntityType: "task",
		EntityID:   entityID,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Details:    details,
	}

	if err := r.store.CreateActivityEntry(entry); err != nil {
		logging.Error("failed to record activity", err, logging.Fields{
			"action":    string(action),
			"entity_id": entityID.String(),
		})
		return
	}

	r.bus.Publish(events.NewEvent(events.KindActivityLogged, "", events.ActivityPayload{
		Entry:       entry,
		DisplayText: DisplayText(entry),
	}))
}

// Recent returns the latest entries, newest first, each paired with its
// display text. limit <= 0 falls back to DefaultFeedSize.
func (r *Recorder) Recent(limit int) ([]FeedItem, error) {
	if limit <= 0 {
		limit = DefaultFeedSize
	}
	entries, err := r.store.RecentActivity(limit)
	if err != nil {
		return nil, err
	}

	items := make([]FeedItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, FeedItem{Entry: e, DisplayText: DisplayText(e)})
	}
	return items, nil
}

// FeedItem is one formatted activity feed row.
type FeedItem struct {
	Entry       *models.ActivityEntry `json:"entry"`
	DisplayText string                `json:"displayText"`
}

// DisplayText renders a human-readable line for an entry.
func DisplayText(entry *models.ActivityEntry) string {
	title := detailString(entry.Details, "title", "Unknown")

	switch entry.Action {
	case models.ActionCreate:
		return fmt.Sprintf("%s created task %q", entry.ActorName, title)
	case models.ActionEdit:
		return fmt.Sprintf("%s edited task %q", entry.ActorName, title)
	case models.ActionDelete:
		return fmt.Sprintf("%s deleted task %q", entry.ActorName, title)
	case models.ActionAssign:
		return fmt.Sprintf("%s assigned task %q to %s", entry.ActorName, title,
			detailString(entry.Details, "assignedTo", "Unknown"))
	case models.ActionStatusChange:
		return fmt.Sprintf("%s moved task %q from %s to %s", entry.ActorName, title,
			detailString(entry.Details, "oldStatus", "Unknown"),
			detailString(entry.Details, "newStatus", "Unknown"))
	case models.ActionDragDrop:
		return fmt.Sprintf("%s moved task %q to %s", entry.ActorName, title,
			detailString(entry.Details, "newStatus", "Unknown"))
	case models.ActionConflictResolved:
		return fmt.Sprintf("%s resolved a conflict on task %q (%s)", entry.ActorName, title,
			detailString(entry.Details, "resolution", "unknown"))
	default:
		return fmt.Sprintf("%s performed %s on task %q", entry.ActorName, entry.Action, title)
	}
}

func detailString(details map[string]interface{}, key, fallback string) string {
	if details == nil {
		return fallback
	}
	if v, ok := details[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
