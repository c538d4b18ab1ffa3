package types

import "time"

// Task represents an owned work item in the tracker.
//
// Every task belongs to exactly one user; all reads and writes are scoped
// by that owner's identity at the data-access layer, so a task is never
// visible to, or mutable by, anyone but its owner.
type Task struct {
	// ID is the unique identifier of the task. It is a UUID string on the
	// relational backend and an ObjectID hex string on the document backend.
	ID string `json:"id" db:"id"`

	// Title is the human-readable name of the task.
	Title string `json:"title" db:"title"`

	// Description contains optional free-form detail. Defaults to "".
	Description string `json:"description" db:"description"`

	// StartDate is when work on the task is scheduled to begin.
	StartDate time.Time `json:"startDate" db:"start_date"`

	// EndDate is when work on the task is due. Never before StartDate.
	EndDate time.Time `json:"endDate" db:"end_date"`

	// Completed indicates whether the task is done. Defaults to false.
	Completed bool `json:"completed" db:"completed"`

	// UserID is the identifier of the owning user.
	UserID string `json:"userId" db:"user_id"`

	// CreatedAt is the timestamp at which the task was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the task.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// TaskPatch describes a partial update to a task. Nil fields are left
// untouched; only explicitly supplied fields are written.
type TaskPatch struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Completed   *bool      `json:"completed"`
	EndDate     *time.Time `json:"endDate"`
}

// IsZero reports whether the patch carries no changes.
func (p TaskPatch) IsZero() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil && p.EndDate == nil
}

// TaskSummary holds owner-scoped task counts.
type TaskSummary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}
