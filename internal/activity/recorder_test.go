package activity

import (
	"fmt"
	"testing"
	"time"

	"github.com/ashmit2704/taskboard/internal/events"
	"github.com/ashmit2704/taskboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore keeps entries in memory and can be told to fail.
type fakeStore struct {
	entries []*models.ActivityEntry
	fail    bool
}

func (s *fakeStore) CreateActivityEntry(entry *models.ActivityEntry) error {
	if s.fail {
		return fmt.Errorf("store down")
	}
	entry.ID = models.UUID(fmt.Sprintf("entry-%d", len(s.entries)))
	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().Unix()
	}
	s.entries = append([]*models.ActivityEntry{entry}, s.entries...)
	return nil
}

func (s *fakeStore) RecentActivity(limit int) ([]*models.ActivityEntry, error) {
	if s.fail {
		return nil, fmt.Errorf("store down")
	}
	if limit > len(s.entries) {
		limit = len(s.entries)
	}
	return s.entries[:limit], nil
}

func TestRecordAppendsAndBroadcasts(t *testing.T) {
	store := &fakeStore{}
	bus := events.NewBus()
	sub := bus.Subscribe("watcher")
	defer sub.Close()

	rec := NewRecorder(store, bus)
	rec.Record(models.ActionCreate, "task-1", Actor{ID: "u1", Name: "Alice"},
		map[string]interface{}{"title": "ship it"})

	require.Len(t, store.entries, 1)
	assert.Equal(t, models.ActionCreate, store.entries[0].Action)
	assert.Equal(t, "Alice", store.entries[0].ActorName)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, events.KindActivityLogged, ev.Kind)
		payload := ev.Payload.(events.ActivityPayload)
		assert.Equal(t, `Alice created task "ship it"`, payload.DisplayText)
	case <-time.After(time.Second):
		t.Fatal("no activity-logged event published")
	}
}

func TestRecordSwallowsStoreFailure(t *testing.T) {
	store := &fakeStore{fail: true}
	bus := events.NewBus()
	sub := bus.Subscribe("watcher")
	defer sub.Close()

	rec := NewRecorder(store, bus)
	rec.Record(models.ActionDelete, "task-1", Actor{ID: "u1", Name: "Alice"}, nil)

	select {
	case ev := <-sub.Events():
		t.Fatalf("no event should be published for a failed write, got %v", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRecentLimitsAndFormats(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store, events.NewBus())

	for i := 0; i < 25; i++ {
		rec.Record(models.ActionEdit, "task-1", Actor{ID: "u1", Name: "Bob"},
			map[string]interface{}{"title": fmt.Sprintf("task %d", i)})
	}

	items, err := rec.Recent(0)
	require.NoError(t, err)
	assert.Len(t, items, DefaultFeedSize)
	assert.Equal(t, `Bob edited task "task 24"`, items[0].DisplayText, "newest first")
}

func TestDisplayText(t *testing.T) {
	cases := []struct {
		action  models.Action
		details map[string]interface{}
		want    string
	}{
		{models.ActionCreate, map[string]interface{}{"title": "t"}, `Eve created task "t"`},
		{models.ActionDelete, map[string]interface{}{"title": "t"}, `Eve deleted task "t"`},
		{models.ActionAssign, map[string]interface{}{"title": "t", "assignedTo": "Bob"}, `Eve assigned task "t" to Bob`},
		{models.ActionStatusChange, map[string]interface{}{"title": "t", "oldStatus": "todo", "newStatus": "done"}, `Eve moved task "t" from todo to done`},
		{models.ActionDragDrop, map[string]interface{}{"title": "t", "newStatus": "done"}, `Eve moved task "t" to done`},
		{models.ActionConflictResolved, map[string]interface{}{"title": "t", "resolution": "merge"}, `Eve resolved a conflict on task "t" (merge)`},
		{models.ActionCreate, nil, `Eve created task "Unknown"`},
	}

	for _, c := range cases {
		entry := &models.ActivityEntry{Action: c.action, ActorName: "Eve", Details: c.details}
		assert.Equal(t, c.want, DisplayText(entry))
	}
}
