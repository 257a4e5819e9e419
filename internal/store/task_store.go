package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/inbox-triage/internal/model"
)

// CreateTask inserts a task, assigning its ID and creation time. It
// returns ErrDuplicateTask when the email already has a task of the same
// category.
func (s *SQLiteStore) CreateTask(
	ctx context.Context,
	task model.TaskDraft,
) (model.TaskDraft, error) {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Status == "" {
		task.Status = model.StatusTodo
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}

	tags, err := json.Marshal(task.Tags)
	if err != nil {
		return model.TaskDraft{}, fmt.Errorf("marshaling tags for task %s: %w", task.ID, err)
	}
	if task.Tags == nil {
		tags = []byte("[]")
	}
	metadata, err := json.Marshal(task.Metadata)
	if err != nil {
		return model.TaskDraft{}, fmt.Errorf("marshaling metadata for task %s: %w", task.ID, err)
	}

	var due any
	if task.DueDate != nil {
		due = task.DueDate.UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, title, description, status, priority, category,
			linked_email_id, due_date, tags, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Title, task.Description, task.Status,
		string(task.Priority), string(task.Category),
		task.LinkedEmailID, due, string(tags), string(metadata),
		task.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.TaskDraft{}, fmt.Errorf("email %s, category %s: %w",
				task.LinkedEmailID, task.Category, ErrDuplicateTask)
		}
		return model.TaskDraft{}, fmt.Errorf("creating task: %w", err)
	}

	return task, nil
}

// GetTasks retrieves tasks matching the provided filter options.
func (s *SQLiteStore) GetTasks(
	ctx context.Context,
	opts TaskFilter,
) ([]model.TaskDraft, error) {
	var conditions []string
	var args []interface{}

	if opts.Category != nil {
		conditions = append(conditions, "category = ?")
		args = append(args, string(*opts.Category))
	}
	if opts.Kind != nil {
		conditions = append(conditions, "json_extract(metadata, '$.kind') = ?")
		args = append(args, string(*opts.Kind))
	}
	if opts.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *opts.Status)
	}
	if opts.LinkedEmailID != nil {
		conditions = append(conditions, "linked_email_id = ?")
		args = append(args, *opts.LinkedEmailID)
	}
	if opts.CreatedAfter != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, opts.CreatedAfter.UTC())
	}

	query := "SELECT * FROM tasks"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	// Determine sort column.
	sortBy := "created_at"
	if opts.SortBy != "" {
		allowedSorts := map[string]bool{
			"title":      true,
			"priority":   true,
			"category":   true,
			"due_date":   true,
			"created_at": true,
		}
		if allowedSorts[opts.SortBy] {
			sortBy = opts.SortBy
		}
	}

	direction := "ASC"
	if opts.SortDesc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, id ASC", sortBy, direction)
	query += limitClause(opts.Limit, opts.Offset)

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.TaskDraft
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// DeleteTasks removes tasks by ID and reports how many were deleted.
func (s *SQLiteStore) DeleteTasks(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In("DELETE FROM tasks WHERE id IN (?)", ids)
	if err != nil {
		return 0, fmt.Errorf("building delete query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("deleting tasks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting tasks: %w", err)
	}
	return int(n), nil
}

// scanTask scans a task row from a sqlx.Rows result set.
func scanTask(rows *sqlx.Rows) (model.TaskDraft, error) {
	var (
		task      model.TaskDraft
		priority  string
		category  string
		dueDate   sql.NullTime
		tags      string
		metadata  string
		createdAt time.Time
	)

	err := rows.Scan(
		&task.ID, &task.Title, &task.Description, &task.Status,
		&priority, &category, &task.LinkedEmailID, &dueDate,
		&tags, &metadata, &createdAt,
	)
	if err != nil {
		return model.TaskDraft{}, fmt.Errorf("scanning task row: %w", err)
	}

	task.Priority = model.Priority(priority)
	task.Category = model.Category(category)
	task.CreatedAt = createdAt
	if dueDate.Valid {
		d := dueDate.Time
		task.DueDate = &d
	}

	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &task.Tags); err != nil {
			return model.TaskDraft{}, fmt.Errorf("unmarshaling tags: %w", err)
		}
	}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &task.Metadata); err != nil {
			return model.TaskDraft{}, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}

	return task, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
