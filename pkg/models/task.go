package models

import "time"

type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
)

// Valid reports whether s is a known board column.
func (s TaskStatus) Valid() bool {
	return s == StatusTodo || s == StatusInProgress || s == StatusDone
}

// Task belongs to exactly one project
type Task struct {
	ID          string           `json:"id" db:"id"`
	ProjectID   string           `json:"project_id" db:"project_id"`
	Title       string           `json:"title" db:"title"`
	Description string           `json:"description,omitempty" db:"description"`
	Status      TaskStatus       `json:"status" db:"status"`
	CreatedBy   string           `json:"created_by" db:"created_by"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
	Assignments []TaskAssignment `json:"assignments,omitempty" db:"-"`
}

// TaskAssignment links a task to a user responsible for it.
// Duplicate (task_id, assigned_to) pairs are rejected by the store.
type TaskAssignment struct {
	TaskID     string    `json:"task_id" db:"task_id"`
	AssignedTo string    `json:"assigned_to" db:"assigned_to"`
	AssignedBy string    `json:"assigned_by" db:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at" db:"assigned_at"`
	// Profile fields joined for display; "Unknown User" when the lookup fails
	FullName  string `json:"full_name,omitempty" db:"-"`
	AvatarURL string `json:"avatar_url,omitempty" db:"-"`
}
