// Package board is the coordination core: every task operation routes
// through here so version increments are centralized, locks stay advisory,
// and each committed mutation is durably persisted before it is broadcast.
package board

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ashmit2704/taskboard/internal/activity"
	"github.com/ashmit2704/taskboard/internal/conflict"
	"github.com/ashmit2704/taskboard/internal/errors"
	"github.com/ashmit2704/taskboard/internal/events"
	"github.com/ashmit2704/taskboard/internal/lock"
	"github.com/ashmit2704/taskboard/internal/models"
	"github.com/ashmit2704/taskboard/internal/version"
)

// Store is the repository surface the service needs. The durable store must
// guarantee per-record atomic updates; the version compare-and-swap leans on
// that.
type Store interface {
	version.Store
	CreateTask(task *models.Task) error
	ListTasks() ([]*models.Task, error)
	TitleTaken(title string, excludeID models.UUID) (bool, error)
	DeleteTask(id string) error
	ActiveTaskCounts() (map[string]int, error)
}

// Actor identifies the participant driving an operation. ConnID names the
// transport connection so broadcasts can exclude the originator.
type Actor struct {
	ID     string
	Name   string
	ConnID string
}

func (a Actor) lockParticipant() lock.Participant {
	return lock.Participant{ID: a.ID, Name: a.Name, ConnID: a.ConnID}
}

func (a Actor) guardActor() version.Actor {
	return version.Actor{ID: a.ID, Name: a.Name}
}

func (a Actor) recorderActor() activity.Actor {
	return activity.Actor{ID: a.ID, Name: a.Name}
}

// Service implements the board operations.
type Service struct {
	store    Store
	guard    *version.Guard
	locks    *lock.Manager
	recorder *activity.Recorder
	bus      *events.Bus
}

// NewService wires the coordination core together.
func NewService(store Store, guard *version.Guard, locks *lock.Manager, recorder *activity.Recorder, bus *events.Bus) *Service {
	return &Service{
		store:    store,
		guard:    guard,
		locks:    locks,
		recorder: recorder,
		bus:      bus,
	}
}

// Locks exposes the lock manager for connection-teardown cleanup.
func (s *Service) Locks() *lock.Manager {
	return s.locks
}

// CreateTaskInput is the full field set for an authoring operation.
type CreateTaskInput struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	AssignedUser string `json:"assignedUser"`
	Status       string `json:"status"`
	Priority     string `json:"priority"`
}

// CreateTask creates a record at version 1 with no lock.
func (s *Service) CreateTask(in CreateTaskInput, actor Actor) (*models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, errors.New(errors.ErrInvalid, "title is required")
	}

	status := models.StatusTodo
	if in.Status != "" {
		status = models.Status(in.Status)
		if !status.Valid() {
			return nil, errors.Newf(errors.ErrInvalidStatus,
				"invalid status %q, must be one of: todo, inprogress, done", in.Status)
		}
	}
	priority := models.PriorityLow
	if in.Priority != "" {
		priority = models.Priority(in.Priority)
		if !priority.Valid() {
			return nil, errors.Newf(errors.ErrInvalidPriority,
				"invalid priority %q, must be one of: low, medium, high", in.Priority)
		}
	}

	task := &models.Task{
		Title:          title,
		Description:    in.Description,
		AssignedUser:   in.AssignedUser,
		Status:         status,
		Priority:       priority,
		LastModifiedBy: actorID(actor),
	}
	if err := s.store.CreateTask(task); err != nil {
		return nil, err
	}

	s.recorder.Record(models.ActionCreate, task.ID, actor.recorderActor(), map[string]interface{}{
		"title":      task.Title,
		"assignedTo": task.AssignedUser,
		"priority":   string(task.Priority),
	})
	s.bus.Publish(events.NewEvent(events.KindTaskUpdated, actor.ConnID, events.TaskPayload{Task: task}))
	return task, nil
}

// EditTask applies the changed fields under the claimed version. A stale
// claim comes back as *version.ConflictError carrying the authoritative
// record. An edit where every present field already matches commits nothing
// and returns the current record without a version bump.
func (s *Service) EditTask(id string, changes conflict.Changes, claimed *int, actor Actor) (*models.Task, error) {
	if err := changes.Validate(); err != nil {
		return nil, err
	}

	current, err := s.store.GetTask(id)
	if err != nil {
		return nil, err
	}
	if claimed != nil && current.Version > *claimed {
		return nil, &version.ConflictError{Current: current, Claimed: *claimed, Stored: current.Version}
	}

	changedFields := conflict.ConflictingFields(current, changes)
	if len(changedFields) == 0 {
		return current, nil
	}

	// Only check title uniqueness if the title is actually changing.
	if changes.Title != nil && *changes.Title != current.Title {
		taken, err := s.store.TitleTaken(*changes.Title, current.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, errors.Newf(errors.ErrDuplicateTitle, "title %q already exists", *changes.Title)
		}
	}

	var changeSummary []string
	task, err := s.guard.CheckAndApply(id, claimed, actor.guardActor(), func(t *models.Task) error {
		changeSummary = summarizeChanges(t, changes)
		applied, _, err := conflict.Resolve(t, changes, conflict.KindOverwrite)
		if err != nil {
			return err
		}
		*t = *applied
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Committing an edit ends the editing session.
	s.releaseIfHeld(task.ID, actor)

	s.recorder.Record(models.ActionEdit, task.ID, actor.recorderActor(), map[string]interface{}{
		"title":         task.Title,
		"changes":       strings.Join(changeSummary, ", "),
		"updatedFields": changedFields,
	})
	s.bus.Publish(events.NewEvent(events.KindTaskUpdated, actor.ConnID, events.TaskPayload{Task: task}))
	return task, nil
}

// ChangeStatus moves a task between board columns under the claimed version.
// Moving into done stamps completedAt; moving away clears it.
func (s *Service) ChangeStatus(id string, newStatus string, claimed *int, actor Actor) (*models.Task, error) {
	status := models.Status(newStatus)
	if !status.Valid() {
		return nil, errors.Newf(errors.ErrInvalidStatus,
			"invalid status %q, must be one of: todo, inprogress, done", newStatus)
	}

	var oldStatus models.Status
	task, err := s.guard.CheckAndApply(id, claimed, actor.guardActor(), func(t *models.Task) error {
		oldStatus = t.Status
		t.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(models.ActionStatusChange, task.ID, actor.recorderActor(), map[string]interface{}{
		"title":     task.Title,
		"oldStatus": string(oldStatus),
		"newStatus": string(status),
	})
	s.bus.Publish(events.NewEvent(events.KindStatusUpdated, actor.ConnID, events.StatusPayload{
		TaskID:    task.ID,
		NewStatus: status,
		Task:      task,
	}))
	return task, nil
}

// DeleteTask removes a record. Terminal: no further operations are valid on
// the id afterwards.
func (s *Service) DeleteTask(id string, actor Actor) (models.UUID, error) {
	task, err := s.store.GetTask(id)
	if err != nil {
		return "", err
	}
	if err := s.store.DeleteTask(id); err != nil {
		return "", err
	}
	s.locks.Forget(task.ID)

	s.recorder.Record(models.ActionDelete, task.ID, actor.recorderActor(), map[string]interface{}{
		"title":        task.Title,
		"assignedUser": task.AssignedUser,
	})
	s.bus.Publish(events.NewEvent(events.KindTaskDeleted, actor.ConnID, events.DeletedPayload{TaskID: task.ID}))
	return task.ID, nil
}

// AcquireLock grants the actor an edit lease on the task.
func (s *Service) AcquireLock(id string, actor Actor) (*lock.Lease, error) {
	task, err := s.store.GetTask(id)
	if err != nil {
		return nil, err
	}
	return s.locks.Acquire(task.ID, actor.lockParticipant())
}

// ReleaseLock clears the actor's edit lease on the task.
func (s *Service) ReleaseLock(id string, actor Actor) error {
	task, err := s.store.GetTask(id)
	if err != nil {
		return err
	}
	return s.locks.Release(task.ID, actor.lockParticipant())
}

// ConflictCheck is the answer to "has someone committed past my version?".
type ConflictCheck struct {
	HasConflict      bool         `json:"hasConflict"`
	CurrentVersion   int          `json:"currentVersion"`
	RequestedVersion int          `json:"requestedVersion"`
	Task             *models.Task `json:"task,omitempty"`
}

// CheckConflict compares the claimed version against the stored one. Equal
// versions are not a conflict; only stored > claimed is. The authoritative
// record is attached only when a conflict exists; a detected conflict is
// announced to the other participants.
func (s *Service) CheckConflict(id string, claimed int, actor Actor) (*ConflictCheck, error) {
	task, err := s.store.GetTask(id)
	if err != nil {
		return nil, err
	}

	check := &ConflictCheck{
		HasConflict:      task.Version > claimed,
		CurrentVersion:   task.Version,
		RequestedVersion: claimed,
	}
	if check.HasConflict {
		check.Task = task
		s.bus.Publish(events.NewEvent(events.KindConflictDetected, actor.ConnID, events.ConflictDetectedPayload{
			TaskID:         task.ID,
			CurrentVersion: task.Version,
			ClaimedVersion: claimed,
		}))
	}
	return check, nil
}

// ResolveConflict reconciles a detected conflict with the chosen strategy.
// discard returns the authoritative record untouched; overwrite and merge
// commit the resolution as an unconditional write (detection already
// happened) and bump the version by 1.
func (s *Service) ResolveConflict(id string, kind conflict.Kind, changes conflict.Changes, claimed *int, actor Actor) (*models.Task, error) {
	current, err := s.store.GetTask(id)
	if err != nil {
		return nil, err
	}

	resolved, mutated, err := conflict.Resolve(current, changes, kind)
	if err != nil {
		return nil, err
	}

	task := resolved
	if mutated {
		task, err = s.guard.CheckAndApply(id, nil, actor.guardActor(), func(t *models.Task) error {
			t.Title = resolved.Title
			t.Description = resolved.Description
			t.AssignedUser = resolved.AssignedUser
			t.Status = resolved.Status
			t.Priority = resolved.Priority
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	conflictVersion := current.Version
	if claimed != nil {
		conflictVersion = *claimed
	}
	s.recorder.Record(models.ActionConflictResolved, task.ID, actor.recorderActor(), map[string]interface{}{
		"title":           task.Title,
		"resolution":      string(kind),
		"conflictVersion": conflictVersion,
		"resolvedVersion": task.Version,
	})
	s.bus.Publish(events.NewEvent(events.KindConflictResolved, actor.ConnID, events.ConflictResolvedPayload{
		TaskID:     task.ID,
		Task:       task,
		Resolution: string(kind),
	}))
	return task, nil
}

// Task returns one record for client resynchronization.
func (s *Service) Task(id string) (*models.Task, error) {
	return s.store.GetTask(id)
}

// ListTasks returns all records, newest first.
func (s *Service) ListTasks() ([]*models.Task, error) {
	return s.store.ListTasks()
}

// UserTaskCount pairs an assignee with their active (todo or inprogress)
// task count.
type UserTaskCount struct {
	User            string `json:"fullName"`
	ActiveTaskCount int    `json:"activeTaskCount"`
}

// SmartAssignSuggestion names the assignee with the fewest active tasks.
type SmartAssignSuggestion struct {
	Suggested UserTaskCount   `json:"suggestedUser"`
	All       []UserTaskCount `json:"allUsers"`
}

// SmartAssign suggests the assignee with the lightest active load.
func (s *Service) SmartAssign() (*SmartAssignSuggestion, error) {
	counts, err := s.store.ActiveTaskCounts()
	if err != nil {
		return nil, err
	}
	if len(counts) == 0 {
		return nil, errors.New(errors.ErrNotFound, "no assignees found")
	}

	all := make([]UserTaskCount, 0, len(counts))
	for user, n := range counts {
		all = append(all, UserTaskCount{User: user, ActiveTaskCount: n})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].ActiveTaskCount != all[j].ActiveTaskCount {
			return all[i].ActiveTaskCount < all[j].ActiveTaskCount
		}
		return all[i].User < all[j].User
	})

	return &SmartAssignSuggestion{Suggested: all[0], All: all}, nil
}

// releaseIfHeld clears the actor's lease after a committed edit. Held by
// someone else or unlocked: leave it alone.
func (s *Service) releaseIfHeld(taskID models.UUID, actor Actor) {
	if lease, held := s.locks.Holder(taskID); held && lease.HolderID == actor.ID {
		// Release by the holder cannot fail with NotHolder here.
		_ = s.locks.Release(taskID, actor.lockParticipant())
	}
}

func actorID(actor Actor) string {
	if actor.ID == "" {
		return "system"
	}
	return actor.ID
}

// summarizeChanges renders "field: old -> new" pairs against the
// pre-mutation record for the activity feed.
func summarizeChanges(before *models.Task, changes conflict.Changes) []string {
	var summary []string
	add := func(field, from, to string) {
		if from != to {
			summary = append(summary, fmt.Sprintf("%s: %s -> %s", field, from, to))
		}
	}
	if changes.Title != nil {
		add("title", before.Title, *changes.Title)
	}
	if changes.Description != nil {
		add("description", before.Description, *changes.Description)
	}
	if changes.AssignedUser != nil {
		add("assignedUser", before.AssignedUser, *changes.AssignedUser)
	}
	if changes.Status != nil {
		add("status", string(before.Status), *changes.Status)
	}
	if changes.Priority != nil {
		add("priority", string(before.Priority), *changes.Priority)
	}
	return summary
}
