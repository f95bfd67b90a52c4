// Package version enforces optimistic concurrency for task mutations.
//
// Every field mutation in the system is routed through Guard.CheckAndApply so
// the version counter is centralized and never bypassed. A task's version
// starts at 1 and increases by exactly 1 per committed mutation.
package version

import (
	"fmt"
	"time"

	"github.com/ashmit2704/taskboard/internal/errors"
	"github.com/ashmit2704/taskboard/internal/logging"
	"github.com/ashmit2704/taskboard/internal/models"
)

// ConflictError reports a write whose claimed version is behind the stored
// one. It carries the authoritative record so the caller can drive resolution
// without a second round trip.
type ConflictError struct {
	Current *models.Task
	Claimed int
	Stored  int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("[%s] task %s has been modified by another user (claimed version %d, stored %d)",
		errors.ErrVersionConflict, e.Current.ID, e.Claimed, e.Stored)
}

// Code lets transports map the error without unwrapping the payload.
func (e *ConflictError) Code() errors.ErrorCode {
	return errors.ErrVersionConflict
}

// Store is the slice of the repository the guard needs.
type Store interface {
	GetTask(id string) (*models.Task, error)
	UpdateTaskVersioned(task *models.Task, expectedVersion int) (bool, error)
}

// Actor identifies who is committing a mutation.
type Actor struct {
	ID   string
	Name string
}

// Guard stamps every committed mutation with the next version and rejects
// mutations claiming a stale one.
type Guard struct {
	store Store
	now   func() time.Time
}

// NewGuard creates a Guard over the given store.
func NewGuard(store Store) *Guard {
	return &Guard{store: store, now: time.Now}
}

// WithClock overrides the guard's clock. Test hook.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// CheckAndApply fetches the task, verifies the claimed version, applies the
// mutation and persists it with a version bump of exactly 1.
//
// claimed == nil skips the comparison: unconditional writes are reserved for
// system-initiated operations, never ordinary user edits. A stored version
// equal to the claimed one is NOT a conflict; only stored > claimed is.
//
// The persist step is a compare-and-swap against the pre-mutation version.
// When two writers race from the same observed version, exactly one UPDATE
// matches; the loser gets a ConflictError carrying the re-fetched
// authoritative record.
func (g *Guard) CheckAndApply(id string, claimed *int, actor Actor, mutate func(*models.Task) error) (*models.Task, error) {
	current, err := g.store.GetTask(id)
	if err != nil {
		return nil, err
	}

	if claimed != nil && current.Version > *claimed {
		return nil, &ConflictError{Current: current, Claimed: *claimed, Stored: current.Version}
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}

	applyCompletionTransition(current, next, g.now())

	next.Version = current.Version + 1
	next.LastModified = g.now().Unix()
	next.LastModifiedBy = actor.ID

	ok, err := g.store.UpdateTaskVersioned(next, current.Version)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the row-level race: someone committed between our read and
		// write. Surface the now-authoritative record.
		authoritative, ferr := g.store.GetTask(id)
		if ferr != nil {
			return nil, ferr
		}
		claimedVersion := current.Version
		if claimed != nil {
			claimedVersion = *claimed
		}
		logging.Warn("concurrent commit lost compare-and-swap", logging.Fields{
			"task_id":        id,
			"claimed":        claimedVersion,
			"stored_version": authoritative.Version,
		})
		return nil, &ConflictError{Current: authoritative, Claimed: claimedVersion, Stored: authoritative.Version}
	}

	return next, nil
}

// applyCompletionTransition maintains the completedAt derived field: set when
// status transitions into done, cleared when it transitions away.
func applyCompletionTransition(before, after *models.Task, now time.Time) {
	if before.Status == after.Status {
		return
	}
	if after.Status == models.StatusDone {
		after.CompletedAt = now.Unix()
	} else {
		after.CompletedAt = 0
	}
}
