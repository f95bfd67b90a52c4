package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashmit2704/taskboard/internal/activity"
	"github.com/ashmit2704/taskboard/internal/conflict"
	"github.com/ashmit2704/taskboard/internal/db"
	"github.com/ashmit2704/taskboard/internal/errors"
	"github.com/ashmit2704/taskboard/internal/events"
	"github.com/ashmit2704/taskboard/internal/lock"
	"github.com/ashmit2704/taskboard/internal/models"
	"github.com/ashmit2704/taskboard/internal/version"
)

func strp(s string) *string { return &s }
func intp(n int) *int       { return &n }

func setupService(t *testing.T) (*Service, *events.Bus, *db.Repository) {
	t.Helper()

	database, err := db.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.NewMigrator(database.DB).Up())

	repo := db.NewRepository(database.DB)
	t.Cleanup(func() { repo.Close() })

	bus := events.NewBus()
	guard := version.NewGuard(repo)
	locks := lock.NewManager(repo, bus)
	recorder := activity.NewRecorder(repo, bus)

	return NewService(repo, guard, locks, recorder, bus), bus, repo
}

var (
	alice = Actor{ID: "u-alice", Name: "Alice", ConnID: "conn-a"}
	bob   = Actor{ID: "u-bob", Name: "Bob", ConnID: "conn-b"}
)

func mustCreate(t *testing.T, svc *Service, title string) *models.Task {
	t.Helper()
	task, err := svc.CreateTask(CreateTaskInput{Title: title, AssignedUser: "Alice"}, alice)
	require.NoError(t, err)
	return task
}

func drainKinds(sub *events.Subscription) []events.Kind {
	var kinds []events.Kind
	for {
		select {
		case ev := <-sub.Events():
			kinds = append(kinds, ev.Kind)
		default:
			return kinds
		}
	}
}

func TestCreateTaskStartsAtVersionOneUnlocked(t *testing.T) {
	svc, _, _ := setupService(t)

	task := mustCreate(t, svc, "write report")

	assert.Equal(t, 1, task.Version)
	assert.False(t, task.Locked())
	assert.Equal(t, models.StatusTodo, task.Status)
	assert.Equal(t, models.PriorityLow, task.Priority)
	assert.Equal(t, "u-alice", task.LastModifiedBy)
}

func TestCreateTaskValidation(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.CreateTask(CreateTaskInput{Title: "   "}, alice)
	assert.Equal(t, errors.ErrInvalid, errors.CodeOf(err))

	_, err = svc.CreateTask(CreateTaskInput{Title: "x", Status: "archived"}, alice)
	assert.Equal(t, errors.ErrInvalidStatus, errors.CodeOf(err))

	_, err = svc.CreateTask(CreateTaskInput{Title: "x", Priority: "urgent"}, alice)
	assert.Equal(t, errors.ErrInvalidPriority, errors.CodeOf(err))

	mustCreate(t, svc, "taken")
	_, err = svc.CreateTask(CreateTaskInput{Title: "taken"}, bob)
	assert.Equal(t, errors.ErrDuplicateTitle, errors.CodeOf(err))
}

func TestEditTaskBumpsVersionByOne(t *testing.T) {
	svc, _, _ := setupService(t)
	task := mustCreate(t, svc, "draft")

	updated, err := svc.EditTask(string(task.ID), conflict.Changes{Title: strp("final")}, intp(1), alice)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "final", updated.Title)

	again, err := svc.EditTask(string(task.ID), conflict.Changes{Priority: strp("high")}, intp(2), alice)
	require.NoError(t, err)
	assert.Equal(t, 3, again.Version)
}

func TestEditTaskStaleClaimReturnsConflictWithAuthoritative(t *testing.T) {
	svc, _, _ := setupService(t)
	task := mustCreate(t, svc, "shared")

	_, err := svc.EditTask(string(task.ID), conflict.Changes{Title: strp("alice edit")}, intp(1), alice)
	require.NoError(t, err)

	_, err = svc.EditTask(string(task.ID), conflict.Changes{Title: strp("bob edit")}, intp(1), bob)
	require.Error(t, err)

	var conflictErr *version.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, 1, conflictErr.Claimed)
	assert.Equal(t, 2, conflictErr.Stored)
	assert.Equal(t, "alice edit", conflictErr.Current.Title)

	// The losing write committed nothing.
	stored, err := svc.Task(string(task.ID))
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)
	assert.Equal(t, "alice edit", stored.Title)
}

func TestEditTaskEqualVersionIsNotConflict(t *testing.T) {
	svc, _, _ := setupService(t)
	task := mustCreate(t, svc, "fresh")

	updated, err := svc.EditTask(string(task.ID), conflict.Changes{Description: strp("notes")}, intp(1), alice)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
}

func TestEditTaskNilClaimSkipsComparison(t *testing.T) {
	svc, _, _ := setupService(t)
	task := mustCreate(t, svc, "system target")

	_, err := svc.EditTask(string(task.ID), conflict.Changes{Title: strp("bumped")}, intp(1), alice)
	require.NoError(t, err)

	updated, err := svc.EditTask(string(task.ID), conflict.Changes{Description: strp("sweep")}, nil, bob)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Version)
}

func TestEditTaskNoChangeCommitsNothing(t *testing.T) {
	svc, _, _ := setupService(t)
	task := mustCreate(t, svc, "stable")

	same, err := svc.EditTask(string(task.ID), conflict.Changes{Title: strp("stable")}, intp(1), alice)
	require.NoError(t, err)
	assert.Equal(t, 1, same.Version)
}

func TestEditTaskDuplicateTitleRejected(t *testing.T) {
	svc, _, _ := setupService(t)
	mustCreate(t, svc, "first")
	second := mustCreate(t, svc, "second")

	_, err := svc.EditTask(string(second.ID), conflict.Changes{Title: strp("first")}, intp(1), alice)
	assert.Equal(t, errors.ErrDuplicateTitle, errors.CodeOf(err))
}

func TestEditTaskClearsEditorLease(t *testing.T) {
	svc, bus, _ := setupService(t)
	task := mustCreate(t, svc, "locked work")

	_, err := svc.AcquireLock(string(task.ID), alice)
	require.NoError(t, err)

	sub := bus.Subscribe("observer")
	defer sub.Close()

	_, err = svc.EditTask(string(task.ID), conflict.Changes{Title: strp("done work")}, intp(1), alice)
	require.NoError(t, err)

	_, held := svc.Locks().Holder(task.ID)
	assert.False(t, held)
	assert.Contains(t, drainKinds(sub), events.KindTaskUnlocked)
}

func TestChangeStatusSetsAndClearsCompletedAt(t *testing.T) {
	svc, _, _ := setupService(t)
	task := mustCreate(t, svc, "finishable")

	done, err := svc.ChangeStatus(string(task.ID), "done", intp(1), alice)
	require.NoError(t, err)
	assert.Equal(t, 2, done.Version)
	assert.NotZero(t, done.CompletedAt)

	reopened, err := svc.ChangeStatus(string(task.ID), "todo", intp(2), alice)
	require.NoError(t, err)
	assert.Equal(t, 3, reopened.Version)
	assert.Zero(t, reopened.CompletedAt)
}

func TestChangeStatusInvalidValue(t *testing.T) {
	svc, _, _ := setupService(t)
	task := mustCreate(t, svc, "board item")

	_, err := svc.ChangeStatus(string(task.ID), "archived", intp(1), alice)
	assert.Equal(t, errors.ErrInvalidStatus, errors.CodeOf(err))
}

func TestChangeStatusStaleClaimConflicts(t *testing.T) {
	svc, _, _ := setupService(t)
	task := mustCreate(t, svc, "dragged")

	_, err := svc.ChangeStatus(string(task.ID), "inprogress", intp(1), alice)
	require.NoError(t, err)

	_, err = svc.ChangeStatus(string(task.ID), "done", intp(1), bob)
	var conflictErr *version.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, models.StatusInProgress, conflictErr.Current.Status)
}

func TestDeleteTaskIsTerminal(t *testing.T) {
	svc, bus, _ := setupService(t)
	task := mustCreate(t, svc, "doomed")

	_, err := svc.AcquireLock(string(task.ID), alice)
	require.NoError(t, err)

	sub := bus.Subscribe("observer")
	defer sub.Close()

	id, err := svc.DeleteTask(string(task.ID), alice)
	require.NoError(t, err)
	assert.Equal(t, task.ID, id)
	assert.Contains(t, drainKinds(sub), events.KindTaskDeleted)

	_, err = svc.Task(string(task.ID))
	assert.Equal(t, errors.ErrNotFound, errors.CodeOf(err))

	_, err = svc.EditTask(string(task.ID), conflict.Changes{Title: strp("ghost")}, intp(1), alice)
	assert.Equal(t, errors.ErrNotFound, errors.CodeOf(err))

	// The delete dropped the lease without an unlock broadcast.
	_, held := svc.Locks().Holder(task.ID)
	assert.False(t, held)
}

func TestAcquireLockOnMissingTask(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.AcquireLock("no-such-task", alice)
	assert.Equal(t, errors.ErrNotFound, errors.CodeOf(err))
}

func TestLockContention(t *testing.T) {
	svc, _, _ := setupService(t)
	task := mustCreate(t, svc, "contended")

	_, err := svc.AcquireLock(string(task.ID), alice)
	require.NoError(t, err)

	_, err = svc.AcquireLock(string(task.ID), bob)
	require.Error(t, err)

	var locked *lock.AlreadyLockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, "u-alice", locked.HolderID)
	assert.Equal(t, "Alice", locked.HolderName)

	err = svc.ReleaseLock(string(task.ID), bob)
	assert.Equal(t, errors.ErrNotHolder, errors.CodeOf(err))

	require.NoError(t, svc.ReleaseLock(string(task.ID), alice))

	_, err = svc.AcquireLock(string(task.ID), bob)
	assert.NoError(t, err)
}

func TestCheckConflict(t *testing.T) {
	svc, bus, _ := setupService(t)
	task := mustCreate(t, svc, "checked")

	sub := bus.Subscribe("observer")
	defer sub.Close()

	check, err := svc.CheckConflict(string(task.ID), 1, bob)
	require.NoError(t, err)
	assert.False(t, check.HasConflict)
	assert.Nil(t, check.Task)
	assert.Equal(t, 1, check.CurrentVersion)
	assert.NotContains(t, drainKinds(sub), events.KindConflictDetected)

	_, err = svc.EditTask(string(task.ID), conflict.Changes{Title: strp("moved on")}, intp(1), alice)
	require.NoError(t, err)

	check, err = svc.CheckConflict(string(task.ID), 1, bob)
	require.NoError(t, err)
	assert.True(t, check.HasConflict)
	assert.Equal(t, 2, check.CurrentVersion)
	assert.Equal(t, 1, check.RequestedVersion)
	require.NotNil(t, check.Task)
	assert.Equal(t, "moved on", check.Task.Title)
	assert.Contains(t, drainKinds(sub), events.KindConflictDetected)
}

// Two participants race: X commits a status change first, Y's stale edit is
// rejected, and Y's merge resolution keeps X's status while applying Y's
// priority on top.
func TestConcurrentEditThenMergeResolution(t *testing.T) {
	svc, _, _ := setupService(t)
	task := mustCreate(t, svc, "disputed")

	// X commits first: version 1 -> 2.
	_, err := svc.ChangeStatus(string(task.ID), "inprogress", intp(1), alice)
	require.NoError(t, err)

	// Y still claims version 1 and is turned away.
	_, err = svc.EditTask(string(task.ID), conflict.Changes{Priority: strp("high")}, intp(1), bob)
	var conflictErr *version.ConflictError
	require.ErrorAs(t, err, &conflictErr)

	// Y merges its pending change over the authoritative record.
	resolved, err := svc.ResolveConflict(string(task.ID), conflict.KindMerge,
		conflict.Changes{Priority: strp("high")}, intp(1), bob)
	require.NoError(t, err)

	assert.Equal(t, 3, resolved.Version)
	assert.Equal(t, models.StatusInProgress, resolved.Status)
	assert.Equal(t, models.PriorityHigh, resolved.Priority)
}

func TestResolveConflictOverwrite(t *testing.T) {
	svc, _, _ := setupService(t)
	task := mustCreate(t, svc, "contested title")

	_, err := svc.EditTask(string(task.ID), conflict.Changes{Description: strp("from alice")}, intp(1), alice)
	require.NoError(t, err)

	resolved, err := svc.ResolveConflict(string(task.ID), conflict.KindOverwrite,
		conflict.Changes{Title: strp("bob wins"), Description: strp("from bob")}, intp(1), bob)
	require.NoError(t, err)

	assert.Equal(t, 3, resolved.Version)
	assert.Equal(t, "bob wins", resolved.Title)
	assert.Equal(t, "from bob", resolved.Description)
}

func TestResolveConflictDiscardDoesNotBumpVersion(t *testing.T) {
	svc, bus, _ := setupService(t)
	task := mustCreate(t, svc, "kept as is")

	_, err := svc.EditTask(string(task.ID), conflict.Changes{Title: strp("authoritative")}, intp(1), alice)
	require.NoError(t, err)

	sub := bus.Subscribe("observer")
	defer sub.Close()

	resolved, err := svc.ResolveConflict(string(task.ID), conflict.KindDiscard,
		conflict.Changes{Title: strp("bob's abandoned edit")}, intp(1), bob)
	require.NoError(t, err)

	assert.Equal(t, 2, resolved.Version)
	assert.Equal(t, "authoritative", resolved.Title)
	assert.Contains(t, drainKinds(sub), events.KindConflictResolved)

	stored, err := svc.Task(string(task.ID))
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)
}

func TestResolveConflictInvalidKind(t *testing.T) {
	svc, _, _ := setupService(t)
	task := mustCreate(t, svc, "resolvable")

	_, err := svc.ResolveConflict(string(task.ID), conflict.Kind("rebase"),
		conflict.Changes{}, nil, bob)
	assert.Equal(t, errors.ErrInvalidResolution, errors.CodeOf(err))
}

func TestOperationEventsCarryOrigin(t *testing.T) {
	svc, bus, _ := setupService(t)

	aliceSub := bus.Subscribe(alice.ConnID)
	defer aliceSub.Close()
	bobSub := bus.Subscribe(bob.ConnID)
	defer bobSub.Close()

	task := mustCreate(t, svc, "broadcasted")

	// Alice originated the create; only Bob sees task-updated. Both see the
	// activity entry.
	assert.Equal(t, []events.Kind{events.KindActivityLogged}, drainKinds(aliceSub))
	assert.Equal(t, []events.Kind{events.KindActivityLogged, events.KindTaskUpdated}, drainKinds(bobSub))

	_, err := svc.ChangeStatus(string(task.ID), "done", intp(1), bob)
	require.NoError(t, err)

	assert.Equal(t, []events.Kind{events.KindActivityLogged, events.KindStatusUpdated}, drainKinds(aliceSub))
	assert.Equal(t, []events.Kind{events.KindActivityLogged}, drainKinds(bobSub))
}

func TestActivityFeedRecordsOperations(t *testing.T) {
	svc, _, repo := setupService(t)
	task := mustCreate(t, svc, "audited")

	_, err := svc.ChangeStatus(string(task.ID), "inprogress", intp(1), alice)
	require.NoError(t, err)
	_, err = svc.EditTask(string(task.ID), conflict.Changes{Priority: strp("medium")}, intp(2), bob)
	require.NoError(t, err)
	_, err = svc.DeleteTask(string(task.ID), alice)
	require.NoError(t, err)

	entries, err := repo.RecentActivity(20)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	// Newest first.
	assert.Equal(t, models.ActionDelete, entries[0].Action)
	assert.Equal(t, models.ActionEdit, entries[1].Action)
	assert.Equal(t, models.ActionStatusChange, entries[2].Action)
	assert.Equal(t, models.ActionCreate, entries[3].Action)
	assert.Equal(t, "Alice", entries[0].ActorName)
}

func TestSmartAssignSuggestsLightestLoad(t *testing.T) {
	svc, _, _ := setupService(t)

	create := func(title, user, status string) {
		task, err := svc.CreateTask(CreateTaskInput{Title: title, AssignedUser: user}, alice)
		require.NoError(t, err)
		if status != "todo" {
			_, err = svc.ChangeStatus(string(task.ID), status, intp(1), alice)
			require.NoError(t, err)
		}
	}

	create("a1", "Alice", "todo")
	create("a2", "Alice", "inprogress")
	create("a3", "Alice", "done") // done does not count as active
	create("b1", "Bob", "todo")

	suggestion, err := svc.SmartAssign()
	require.NoError(t, err)

	assert.Equal(t, "Bob", suggestion.Suggested.User)
	assert.Equal(t, 1, suggestion.Suggested.ActiveTaskCount)
	require.Len(t, suggestion.All, 2)
	assert.Equal(t, 2, suggestion.All[1].ActiveTaskCount)
}

func TestSmartAssignNoAssignees(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.SmartAssign()
	assert.Equal(t, errors.ErrNotFound, errors.CodeOf(err))
}
