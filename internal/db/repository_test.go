package db

import (
	"testing"

	apperrors "github.com/ashmit2704/taskboard/internal/errors"
	"github.com/ashmit2704/taskboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRepo opens a throwaway database in a temp dir and migrates it.
func setupRepo(t *testing.T) *Repository {
	t.Helper()

	database, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, NewMigrator(database.DB).Up())

	repo := NewRepository(database.DB)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTask(title string) *models.Task {
	return &models.Task{
		Title:          title,
		Description:    "desc",
		AssignedUser:   "alice",
		Status:         models.StatusTodo,
		Priority:       models.PriorityLow,
		LastModifiedBy: "system",
	}
}

func TestCreateTaskAssignsIdentityAndVersion(t *testing.T) {
	repo := setupRepo(t)

	task := newTask("write spec")
	require.NoError(t, repo.CreateTask(task))

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, 1, task.Version)
	assert.NotZero(t, task.CreatedAt)

	got, err := repo.GetTask(task.ID.String())
	require.NoError(t, err)
	assert.Equal(t, task.Title, got.Title)
	assert.Equal(t, 1, got.Version)
	assert.False(t, got.Locked())
}

func TestCreateTaskDuplicateTitle(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.CreateTask(newTask("unique title")))

	err := repo.CreateTask(newTask("unique title"))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrDuplicateTitle))
}

func TestGetTaskNotFound(t *testing.T) {
	repo := setupRepo(t)

	_, err := repo.GetTask("missing-id")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestUpdateTaskVersionedCommitsExactlyOnce(t *testing.T) {
	repo := setupRepo(t)

	task := newTask("contended")
	require.NoError(t, repo.CreateTask(task))

	// First writer commits from version 1.
	first := task.Clone()
	first.Description = "first writer"
	first.Version = 2
	ok, err := repo.UpdateTaskVersioned(first, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second writer still holds version 1 and must lose.
	second := task.Clone()
	second.Description = "second writer"
	second.Version = 2
	ok, err = repo.UpdateTaskVersioned(second, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetTask(task.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "first writer", got.Description)
}

func TestUpdateTaskVersionedDuplicateTitle(t *testing.T) {
	repo := setupRepo(t)

	a := newTask("task a")
	b := newTask("task b")
	require.NoError(t, repo.CreateTask(a))
	require.NoError(t, repo.CreateTask(b))

	mutated := a.Clone()
	mutated.Title = "task b"
	mutated.Version = 2
	_, err := repo.UpdateTaskVersioned(mutated, 1)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrDuplicateTitle))
}

func TestLockMirrorDoesNotTouchVersion(t *testing.T) {
	repo := setupRepo(t)

	task := newTask("locked task")
	require.NoError(t, repo.CreateTask(task))

	require.NoError(t, repo.SetTaskLock(task.ID, "user-1", 1700000000))
	got, err := repo.GetTask(task.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.EditingBy)
	assert.Equal(t, int64(1700000000), got.EditStart)
	assert.Equal(t, 1, got.Version)

	require.NoError(t, repo.ClearTaskLock(task.ID))
	got, err = repo.GetTask(task.ID.String())
	require.NoError(t, err)
	assert.False(t, got.Locked())
	assert.Equal(t, 1, got.Version)
}

func TestDeleteTask(t *testing.T) {
	repo := setupRepo(t)

	task := newTask("doomed")
	require.NoError(t, repo.CreateTask(task))
	require.NoError(t, repo.DeleteTask(task.ID.String()))

	err := repo.DeleteTask(task.ID.String())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestTitleTakenExcludesSelf(t *testing.T) {
	repo := setupRepo(t)

	task := newTask("my title")
	require.NoError(t, repo.CreateTask(task))

	taken, err := repo.TitleTaken("my title", task.ID)
	require.NoError(t, err)
	assert.False(t, taken, "a task's own title is not a collision")

	taken, err = repo.TitleTaken("my title", "other-id")
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestActiveTaskCounts(t *testing.T) {
	repo := setupRepo(t)

	a := newTask("t1")
	a.AssignedUser = "alice"
	require.NoError(t, repo.CreateTask(a))

	b := newTask("t2")
	b.AssignedUser = "alice"
	b.Status = models.StatusInProgress
	require.NoError(t, repo.CreateTask(b))

	c := newTask("t3")
	c.AssignedUser = "bob"
	c.Status = models.StatusDone
	require.NoError(t, repo.CreateTask(c))

	counts, err := repo.ActiveTaskCounts()
	require.NoError(t, err)
	assert.Equal(t, 2, counts["alice"])
	assert.Zero(t, counts["bob"], "done tasks are not active")
}

func TestActivityLogAppendAndRecent(t *testing.T) {
	repo := setupRepo(t)

	for i, action := range []models.Action{models.ActionCreate, models.ActionEdit, models.ActionDelete} {
		entry := &models.ActivityEntry{
			Action:     action,
			EntityType: "task",
			EntityID:   "task-1",
			ActorID:    "user-1",
			ActorName:  "Alice",
			Details:    map[string]interface{}{"title": "t"},
			Timestamp:  int64(1000 + i),
		}
		require.NoError(t, repo.CreateActivityEntry(entry))
		assert.NotEmpty(t, entry.ID)
	}

	entries, err := repo.RecentActivity(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActionDelete, entries[0].Action, "newest first")
	assert.Equal(t, models.ActionEdit, entries[1].Action)
	assert.Equal(t, "t", entries[0].Details["title"])
}
