// Package db provides CRUD repository operations for the task board models.
package db

import (
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"time"

	apperrors "github.com/ashmit2704/taskboard/internal/errors"
	"github.com/ashmit2704/taskboard/internal/models"
	"github.com/ashmit2704/taskboard/internal/uuid"
)

// Repository provides persistence for tasks and activity entries.
// Statements for hot queries are prepared on first use and cached.
type Repository struct {
	db *sql.DB

	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// prepareStmt gets or creates a prepared statement from the cache.
func (r *Repository) prepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to prepare statement", err)
	}

	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		// Another goroutine already prepared this, close our duplicate
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}
	return stmt, nil
}

// Close closes all cached prepared statements.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// =====================================================
// Task Operations
// =====================================================

const taskColumns = `id, title, description, assigned_user, status, priority,
	version, last_modified, last_modified_by, editing_by, edit_start, completed_at, created_at`

func scanTask(row interface{ Scan(...interface{}) error }) (*models.Task, error) {
	var t models.Task
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.AssignedUser, &t.Status, &t.Priority,
		&t.Version, &t.LastModified, &t.LastModifiedBy, &t.EditingBy, &t.EditStart,
		&t.CompletedAt, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// isUniqueTitleViolation reports whether err is the sqlite unique constraint
// failure on tasks.title.
func isUniqueTitleViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "tasks.title")
}

// CreateTask inserts a new task. The id, version and timestamps are assigned
// here: every task starts at version 1 with no edit lock.
func (r *Repository) CreateTask(task *models.Task) error {
	now := time.Now().Unix()
	task.ID = uuid.New()
	task.Version = 1
	task.CreatedAt = now
	task.LastModified = now
	task.EditingBy = ""
	task.EditStart = 0

	query := `
	INSERT INTO tasks (` + taskColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, task.ID, task.Title, task.Description, task.AssignedUser,
		task.Status, task.Priority, task.Version, task.LastModified, task.LastModifiedBy,
		task.EditingBy, task.EditStart, task.CompletedAt, task.CreatedAt)
	if err != nil {
		if isUniqueTitleViolation(err) {
			return apperrors.Newf(apperrors.ErrDuplicateTitle, "title %q already exists", task.Title)
		}
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to insert task", err)
	}
	return nil
}

// GetTask retrieves a task by ID.
func (r *Repository) GetTask(id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`
	stmt, err := r.prepareStmt(query)
	if err != nil {
		return nil, err
	}

	task, err := scanTask(stmt.QueryRow(id))
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "task not found: %s", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read task", err)
	}
	return task, nil
}

// ListTasks returns all tasks, newest first.
func (r *Repository) ListTasks() ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at DESC, id`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to list tasks", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan task", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to iterate tasks", err)
	}
	return tasks, nil
}

// TitleTaken reports whether any task other than excludeID already uses title.
func (r *Repository) TitleTaken(title string, excludeID models.UUID) (bool, error) {
	query := `SELECT COUNT(*) FROM tasks WHERE title = ? AND id != ?`
	stmt, err := r.prepareStmt(query)
	if err != nil {
		return false, err
	}

	var n int
	if err := stmt.QueryRow(title, excludeID).Scan(&n); err != nil {
		return false, apperrors.Wrap(apperrors.ErrDatabase, "failed to check title", err)
	}
	return n > 0, nil
}

// UpdateTaskVersioned persists a mutated task if and only if the stored row
// still carries expectedVersion. The compare happens inside the single UPDATE
// statement, so two writers racing from the same observed version commit at
// most once; the loser sees ok=false. Lock mirror columns are not touched here.
func (r *Repository) UpdateTaskVersioned(task *models.Task, expectedVersion int) (bool, error) {
	query := `
	UPDATE tasks
	SET title = ?, description = ?, assigned_user = ?, status = ?, priority = ?,
		version = ?, last_modified = ?, last_modified_by = ?, completed_at = ?
	WHERE id = ? AND version = ?
	`
	result, err := r.db.Exec(query, task.Title, task.Description, task.AssignedUser,
		task.Status, task.Priority, task.Version, task.LastModified, task.LastModifiedBy,
		task.CompletedAt, task.ID, expectedVersion)
	if err != nil {
		if isUniqueTitleViolation(err) {
			return false, apperrors.Newf(apperrors.ErrDuplicateTitle, "title %q already exists", task.Title)
		}
		return false, apperrors.Wrap(apperrors.ErrDatabase, "failed to update task", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrDatabase, "failed to read update result", err)
	}
	return rows == 1, nil
}

// SetTaskLock mirrors an acquired edit lease onto the task row. The version
// counter is deliberately untouched: locks are advisory state, not mutations.
func (r *Repository) SetTaskLock(id models.UUID, holder string, since int64) error {
	query := `UPDATE tasks SET editing_by = ?, edit_start = ? WHERE id = ?`
	if _, err := r.db.Exec(query, holder, since, id); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to set task lock", err)
	}
	return nil
}

// ClearTaskLock clears the edit lease mirror on the task row.
func (r *Repository) ClearTaskLock(id models.UUID) error {
	return r.SetTaskLock(id, "", 0)
}

// DeleteTask removes a task permanently.
func (r *Repository) DeleteTask(id string) error {
	result, err := r.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to delete task", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.Newf(apperrors.ErrNotFound, "task not found: %s", id)
	}
	return nil
}

// ActiveTaskCounts returns, per assignee, the number of tasks still in todo
// or inprogress. Unassigned tasks are excluded.
func (r *Repository) ActiveTaskCounts() (map[string]int, error) {
	query := `
	SELECT assigned_user, COUNT(*)
	FROM tasks
	WHERE status IN ('todo', 'inprogress') AND assigned_user != ''
	GROUP BY assigned_user
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to count active tasks", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var user string
		var n int
		if err := rows.Scan(&user, &n); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan task counts", err)
		}
		counts[user] = n
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to iterate task counts", err)
	}
	return counts, nil
}

// =====================================================
// Activity Log Operations
// =====================================================

// CreateActivityEntry appends an activity entry. Entries are append-only;
// nothing in the core updates or deletes them.
func (r *Repository) CreateActivityEntry(entry *models.ActivityEntry) error {
	entry.ID = uuid.New()
	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().Unix()
	}

	details := entry.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, "failed to encode activity details", err)
	}

	query := `
	INSERT INTO activity_log (id, action, entity_type, entity_id, actor_id, actor_name, details, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query, entry.ID, entry.Action, entry.EntityType, entry.EntityID,
		entry.ActorID, entry.ActorName, string(payload), entry.Timestamp)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to insert activity entry", err)
	}
	return nil
}

// RecentActivity returns the latest limit entries, newest first.
func (r *Repository) RecentActivity(limit int) ([]*models.ActivityEntry, error) {
	query := `
	SELECT id, action, entity_type, entity_id, actor_id, actor_name, details, timestamp
	FROM activity_log ORDER BY timestamp DESC, id LIMIT ?
	`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to list activity", err)
	}
	defer rows.Close()

	var entries []*models.ActivityEntry
	for rows.Next() {
		var e models.ActivityEntry
		var details string
		if err := rows.Scan(&e.ID, &e.Action, &e.EntityType, &e.EntityID,
			&e.ActorID, &e.ActorName, &details, &e.Timestamp); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan activity entry", err)
		}
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			e.Details = map[string]interface{}{}
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to iterate activity", err)
	}
	return entries, nil
}
