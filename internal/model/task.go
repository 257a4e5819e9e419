package model

import "time"

// TaskKind identifies which extraction branch produced a task.
type TaskKind string

const (
	TaskKindAction  TaskKind = "action"
	TaskKindJob     TaskKind = "job"
	TaskKindEvent   TaskKind = "event"
	TaskKindSummary TaskKind = "summary"
)

// StatusTodo is the status every task is created with. Later states
// belong to whatever tool the user manages tasks with.
const StatusTodo = "todo"

// Priority is the coarse urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// TaskMetadata carries enrichment gathered while extracting a task.
type TaskMetadata struct {
	Kind      TaskKind `json:"kind"`
	Sender    string   `json:"sender,omitempty"`
	Subject   string   `json:"subject,omitempty"`
	Links     []string `json:"links,omitempty"`
	KeyPoints []string `json:"key_points,omitempty"`

	// Relevance and Confidence echo the model output, when present.
	Relevance  string   `json:"relevance,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// TaskDraft is a task produced from one email. The pipeline creates it
// once and never mutates it afterwards.
type TaskDraft struct {
	// ID is assigned by the store on insert.
	ID string `json:"id"`

	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    Priority `json:"priority"`
	Category    Category `json:"category"`

	// LinkedEmailID is the email this task was extracted from.
	LinkedEmailID string `json:"linked_email_id"`

	// DueDate is nil when no date could be read from the model output.
	DueDate *time.Time `json:"due_date,omitempty"`

	Tags     []string     `json:"tags,omitempty"`
	Metadata TaskMetadata `json:"metadata"`

	CreatedAt time.Time `json:"created_at"`
}

// IsSummary reports whether the task is a digest rather than an action.
func (t TaskDraft) IsSummary() bool {
	return t.Metadata.Kind == TaskKindSummary
}
