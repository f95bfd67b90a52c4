// Package conflict computes conflicting fields between an authoritative
// record and a participant's pending changes, and applies one of three
// resolution strategies on demand.
//
// Resolution is a pure function of (authoritative state, proposed state,
// kind). The resolver never decides on its own: detection happens upstream
// in the version guard and the conflicting participant chooses the kind.
package conflict

import (
	"github.com/ashmit2704/taskboard/internal/errors"
	"github.com/ashmit2704/taskboard/internal/models"
)

// Kind selects a resolution strategy.
type Kind string

const (
	// KindOverwrite applies every proposed field unconditionally.
	KindOverwrite Kind = "overwrite"
	// KindMerge takes the proposed value field-by-field where one was
	// proposed; fields absent from the proposal keep the authoritative
	// value. This is last-writer-wins per field, not a three-way merge
	// against a common ancestor.
	KindMerge Kind = "merge"
	// KindDiscard drops the participant's changes and keeps the
	// authoritative record untouched.
	KindDiscard Kind = "discard"
)

// Valid reports whether k names a known strategy.
func (k Kind) Valid() bool {
	switch k {
	case KindOverwrite, KindMerge, KindDiscard:
		return true
	}
	return false
}

// Changes is a participant's proposed field set. A nil pointer means the
// field was not proposed.
type Changes struct {
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	AssignedUser *string `json:"assignedUser,omitempty"`
	Status       *string `json:"status,omitempty"`
	Priority     *string `json:"priority,omitempty"`
}

// Empty reports whether no field was proposed.
func (c Changes) Empty() bool {
	return c.Title == nil && c.Description == nil && c.AssignedUser == nil &&
		c.Status == nil && c.Priority == nil
}

// Validate rejects proposed enum values outside the allowed sets.
func (c Changes) Validate() error {
	if c.Status != nil && !models.Status(*c.Status).Valid() {
		return errors.Newf(errors.ErrInvalidStatus,
			"invalid status %q, must be one of: todo, inprogress, done", *c.Status)
	}
	if c.Priority != nil && !models.Priority(*c.Priority).Valid() {
		return errors.Newf(errors.ErrInvalidPriority,
			"invalid priority %q, must be one of: low, medium, high", *c.Priority)
	}
	return nil
}

// ConflictingFields returns the names of proposed fields whose values differ
// from the authoritative record. Used to surface what a participant is about
// to clobber.
func ConflictingFields(authoritative *models.Task, changes Changes) []string {
	var fields []string
	if changes.Title != nil && *changes.Title != authoritative.Title {
		fields = append(fields, "title")
	}
	if changes.Description != nil && *changes.Description != authoritative.Description {
		fields = append(fields, "description")
	}
	if changes.AssignedUser != nil && *changes.AssignedUser != authoritative.AssignedUser {
		fields = append(fields, "assignedUser")
	}
	if changes.Status != nil && models.Status(*changes.Status) != authoritative.Status {
		fields = append(fields, "status")
	}
	if changes.Priority != nil && models.Priority(*changes.Priority) != authoritative.Priority {
		fields = append(fields, "priority")
	}
	return fields
}

// Resolve applies the chosen strategy to the authoritative record and the
// proposed changes. The returned task is a copy; the input is never mutated.
// mutated reports whether the result differs in intent from the
// authoritative record: discard always returns (authoritative copy, false),
// so the caller knows to skip the version bump and actor stamp.
func Resolve(authoritative *models.Task, changes Changes, kind Kind) (task *models.Task, mutated bool, err error) {
	if !kind.Valid() {
		return nil, false, errors.Newf(errors.ErrInvalidResolution,
			"invalid resolution type %q, must be one of: overwrite, merge, discard", kind)
	}
	if err := changes.Validate(); err != nil {
		return nil, false, err
	}

	result := authoritative.Clone()
	switch kind {
	case KindDiscard:
		return result, false, nil
	case KindOverwrite, KindMerge:
		// Both strategies take the proposed value for every present field;
		// they differ only in intent (overwrite replaces, merge reconciles).
		// Absent fields retain the authoritative value either way.
		applyChanges(result, changes)
	}
	return result, true, nil
}

func applyChanges(task *models.Task, changes Changes) {
	if changes.Title != nil {
		task.Title = *changes.Title
	}
	if changes.Description != nil {
		task.Description = *changes.Description
	}
	if changes.AssignedUser != nil {
		task.AssignedUser = *changes.AssignedUser
	}
	if changes.Status != nil {
		task.Status = models.Status(*changes.Status)
	}
	if changes.Priority != nil {
		task.Priority = models.Priority(*changes.Priority)
	}
}
