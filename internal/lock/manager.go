// Package lock tracks which task is being edited by which participant.
//
// Locks here are soft: a lease is advisory UI state plus a best-effort race
// deterrent. It never blocks the version guard from committing — a write can
// still be rejected by version mismatch while its author holds a valid lease.
package lock

import (
	"fmt"
	"sync"
	"time"

	"github.com/ashmit2704/taskboard/internal/errors"
	"github.com/ashmit2704/taskboard/internal/events"
	"github.com/ashmit2704/taskboard/internal/logging"
	"github.com/ashmit2704/taskboard/internal/models"
)

// DefaultTTL is the fixed edit-lease duration. A lease older than this is
// stale and can be silently displaced by the next acquirer.
const DefaultTTL = 5 * time.Minute

// Participant identifies an actor acquiring or releasing leases. ID is the
// durable participant identity; ConnID is the transport connection it is
// acting through. The two are distinct keys on purpose: disconnect cleanup
// is keyed by connection, ownership by participant.
type Participant struct {
	ID     string
	Name   string
	ConnID string
}

// Lease is the transient lock state for one task.
type Lease struct {
	TaskID     models.UUID
	HolderID   string
	HolderName string
	ConnID     string
	Since      time.Time
}

// Expired reports whether the lease is older than ttl at the given instant.
func (l *Lease) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(l.Since) >= ttl
}

// AlreadyLockedError reports an acquire attempt on a task another participant
// is actively editing. It carries the holder and acquisition time so the
// caller can render the contention without a second round trip.
type AlreadyLockedError struct {
	TaskID     models.UUID
	HolderID   string
	HolderName string
	Since      time.Time
}

func (e *AlreadyLockedError) Error() string {
	return fmt.Sprintf("[%s] task %s is currently being edited by %s",
		errors.ErrAlreadyLocked, e.TaskID, e.HolderID)
}

// Code lets transports map the error without unwrapping the payload.
func (e *AlreadyLockedError) Code() errors.ErrorCode {
	return errors.ErrAlreadyLocked
}

// Mirror is the slice of the repository used to reflect lease state onto the
// task row for clients that fetch full state. Mirror writes never touch the
// version counter.
type Mirror interface {
	SetTaskLock(id models.UUID, holder string, since int64) error
	ClearTaskLock(id models.UUID) error
}

// Manager owns the session-to-lock-ownership table. All lease state lives
// here; the store only carries a display mirror. Leases are transient and the
// table starts empty on restart.
type Manager struct {
	mu     sync.Mutex
	leases map[models.UUID]*Lease

	mirror Mirror
	bus    Bus
	ttl    time.Duration
	now    func() time.Time
}

// Bus is the publish side of the broadcast fabric the manager needs.
type Bus interface {
	Publish(ev events.Event)
}

// NewManager creates a Manager with the default 5-minute lease TTL.
func NewManager(mirror Mirror, bus Bus) *Manager {
	return &Manager{
		leases: make(map[models.UUID]*Lease),
		mirror: mirror,
		bus:    bus,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
}

// WithTTL overrides the lease duration. Test hook.
func (m *Manager) WithTTL(ttl time.Duration) *Manager {
	m.ttl = ttl
	return m
}

// WithClock overrides the manager's clock. Test hook.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Acquire grants p an edit lease on taskID.
//
// A live lease held by someone else fails with AlreadyLockedError. An
// expired lease is treated as stale and silently displaced — the previous
// holder's lease had already lapsed, so no unlock notification is owed.
// Expiry is evaluated lazily, right here; there is no background sweep.
// Re-acquiring a lease the participant already holds refreshes it.
func (m *Manager) Acquire(taskID models.UUID, p Participant) (*Lease, error) {
	m.mu.Lock()
	now := m.now()

	if existing, ok := m.leases[taskID]; ok {
		if existing.HolderID != p.ID && !existing.Expired(now, m.ttl) {
			m.mu.Unlock()
			return nil, &AlreadyLockedError{
				TaskID:     taskID,
				HolderID:   existing.HolderID,
				HolderName: existing.HolderName,
				Since:      existing.Since,
			}
		}
	}

	lease := &Lease{
		TaskID:     taskID,
		HolderID:   p.ID,
		HolderName: p.Name,
		ConnID:     p.ConnID,
		Since:      now,
	}
	m.leases[taskID] = lease
	m.mu.Unlock()

	m.mirrorLock(lease)
	m.bus.Publish(events.NewEvent(events.KindTaskLocked, p.ConnID, events.LockedPayload{
		TaskID:     taskID,
		EditorID:   p.ID,
		EditorName: p.Name,
		EditStart:  lease.Since.Unix(),
	}))
	return lease, nil
}

// Release clears p's lease on taskID. Only the holder may release; a release
// on an unlocked task is a no-op success, so releasing twice is idempotent.
func (m *Manager) Release(taskID models.UUID, p Participant) error {
	m.mu.Lock()
	existing, ok := m.leases[taskID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	if existing.HolderID != p.ID {
		m.mu.Unlock()
		return errors.Newf(errors.ErrNotHolder, "participant %s is not the current editor of task %s", p.ID, taskID)
	}
	delete(m.leases, taskID)
	m.mu.Unlock()

	m.mirrorUnlock(taskID)
	m.bus.Publish(events.NewEvent(events.KindTaskUnlocked, p.ConnID, events.UnlockedPayload{TaskID: taskID}))
	return nil
}

// ReleaseAll releases every lease held through connID and broadcasts an
// unlock per released task. Called at connection teardown; this is the sole
// cleanup mechanism for a vanished holder, short of the TTL.
func (m *Manager) ReleaseAll(connID string) []models.UUID {
	m.mu.Lock()
	var released []models.UUID
	for taskID, lease := range m.leases {
		if lease.ConnID == connID {
			released = append(released, taskID)
			delete(m.leases, taskID)
		}
	}
	m.mu.Unlock()

	for _, taskID := range released {
		m.mirrorUnlock(taskID)
		m.bus.Publish(events.NewEvent(events.KindTaskUnlocked, connID, events.UnlockedPayload{TaskID: taskID}))
	}
	if len(released) > 0 {
		logging.Info("released leases on disconnect", logging.Fields{
			"conn_id": connID,
			"count":   len(released),
		})
	}
	return released
}

// Forget drops any lease on taskID without an unlock broadcast. Used when
// the task itself is deleted.
func (m *Manager) Forget(taskID models.UUID) {
	m.mu.Lock()
	delete(m.leases, taskID)
	m.mu.Unlock()
}

// Holder returns the current lease on taskID, if any. An expired lease is
// still returned: until someone acquires over it or the holder releases, it
// keeps displaying as locked.
func (m *Manager) Holder(taskID models.UUID) (*Lease, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lease, ok := m.leases[taskID]
	if !ok {
		return nil, false
	}
	snapshot := *lease
	return &snapshot, true
}

// mirrorLock reflects the lease onto the task row. Mirror failures are
// logged and swallowed: the lease table is authoritative and advisory state
// must never fail the operation.
func (m *Manager) mirrorLock(lease *Lease) {
	if err := m.mirror.SetTaskLock(lease.TaskID, lease.HolderID, lease.Since.Unix()); err != nil {
		logging.Error("failed to mirror lock onto task row", err, logging.Fields{
			"task_id": lease.TaskID.String(),
		})
	}
}

func (m *Manager) mirrorUnlock(taskID models.UUID) {
	if err := m.mirror.ClearTaskLock(taskID); err != nil {
		logging.Error("failed to clear lock mirror on task row", err, logging.Fields{
			"task_id": taskID.String(),
		})
	}
}
