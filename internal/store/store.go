package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/inbox-triage/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateTask is returned by CreateTask when the email already
	// has a task of the same category.
	ErrDuplicateTask = errors.New("task already exists for email and category")
)

// EmailFilter controls filtering and pagination for email queries.
type EmailFilter struct {
	Folder      *string
	Category    *model.Category
	Unprocessed bool
	Limit       int
	Offset      int
}

// TaskFilter controls filtering, sorting, and pagination for task queries.
type TaskFilter struct {
	Category      *model.Category
	Kind          *model.TaskKind
	Status        *string
	LinkedEmailID *string
	CreatedAfter  *time.Time
	SortBy        string
	SortDesc      bool
	Limit         int
	Offset        int
}

// CategoryAccuracy compares AI categories against human corrections.
type CategoryAccuracy struct {
	Category model.Category `db:"category"`
	Reviewed int            `db:"reviewed"`
	Correct  int            `db:"correct"`
}

// Rate returns the share of reviewed emails the AI got right.
func (a CategoryAccuracy) Rate() float64 {
	if a.Reviewed == 0 {
		return 0
	}
	return float64(a.Correct) / float64(a.Reviewed)
}

// Store defines the persistence interface for emails and the tasks
// extracted from them.
type Store interface {
	// === Emails ===

	// UpsertEmails inserts new emails and refreshes metadata of known
	// ones. Stored categories and processing marks are never cleared.
	UpsertEmails(ctx context.Context, emails []model.EmailRecord) error
	GetEmail(ctx context.Context, id string) (*model.EmailRecord, error)

	// GetEmailsByIDs loads metadata, without bodies, in one query.
	GetEmailsByIDs(ctx context.Context, ids []string) ([]model.EmailRecord, error)
	GetEmails(ctx context.Context, filter EmailFilter) ([]model.EmailRecord, error)
	UpdateAICategory(ctx context.Context, id string, category model.Category) error
	SetUserCategory(ctx context.Context, id string, category model.Category) error
	MarkProcessed(ctx context.Context, ids []string, at time.Time) error

	// RelocateEmail re-keys an email after it was filed into folder,
	// carrying its linked tasks along.
	RelocateEmail(ctx context.Context, oldID, newID, folder string) error

	// UnprocessedIDs lists up to limit emails never run through task
	// extraction, newest first. A limit of 0 means no limit.
	UnprocessedIDs(ctx context.Context, limit int) ([]string, error)
	CategoryCounts(ctx context.Context) (map[model.Category]int, error)
	CategoryAccuracy(ctx context.Context) ([]CategoryAccuracy, error)

	// === Tasks ===

	CreateTask(ctx context.Context, task model.TaskDraft) (model.TaskDraft, error)
	GetTasks(ctx context.Context, filter TaskFilter) ([]model.TaskDraft, error)
	DeleteTasks(ctx context.Context, ids []string) (int, error)
}
