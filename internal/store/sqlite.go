package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/inbox-triage/internal/model"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// SQLite has a single writer; one connection avoids SQLITE_BUSY and
	// keeps an in-memory database shared across queries.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const emailColumns = `id, subject, sender, body, date, folder, is_read,
	ai_category, user_category, conversation_id, processed_at`

// emailMetaColumns selects everything except the body.
const emailMetaColumns = `id, subject, sender, '' AS body, date, folder, is_read,
	ai_category, user_category, conversation_id, processed_at`

// UpsertEmails inserts or refreshes a batch of emails. An empty body
// never overwrites a stored one.
func (s *SQLiteStore) UpsertEmails(
	ctx context.Context,
	emails []model.EmailRecord,
) error {
	if len(emails) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO emails (
			id, subject, sender, body, date, folder, is_read,
			ai_category, conversation_id, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			subject = excluded.subject,
			sender = excluded.sender,
			body = CASE WHEN excluded.body != '' THEN excluded.body ELSE emails.body END,
			date = excluded.date,
			folder = excluded.folder,
			is_read = excluded.is_read,
			ai_category = COALESCE(emails.ai_category, excluded.ai_category),
			conversation_id = excluded.conversation_id,
			updated_at = excluded.updated_at`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, e := range emails {
		_, err = stmt.ExecContext(ctx,
			e.ID, e.Subject, e.Sender, e.Body, e.Date.UTC(), e.Folder,
			boolToInt(e.IsRead), e.AICategory, e.ConversationID, now,
		)
		if err != nil {
			return fmt.Errorf("upserting email %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// GetEmail retrieves a single email, body included.
func (s *SQLiteStore) GetEmail(
	ctx context.Context,
	id string,
) (*model.EmailRecord, error) {
	var e model.EmailRecord
	err := s.db.GetContext(ctx, &e, "SELECT "+emailColumns+" FROM emails WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("email %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting email %s: %w", id, err)
	}
	return &e, nil
}

// GetEmailsByIDs loads the metadata of ids. Unknown ids are skipped and
// the result follows the order of ids.
func (s *SQLiteStore) GetEmailsByIDs(
	ctx context.Context,
	ids []string,
) ([]model.EmailRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In("SELECT "+emailMetaColumns+" FROM emails WHERE id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("building email query: %w", err)
	}

	var rows []model.EmailRecord
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying emails: %w", err)
	}

	byID := make(map[string]model.EmailRecord, len(rows))
	for _, e := range rows {
		byID[e.ID] = e
	}

	emails := make([]model.EmailRecord, 0, len(rows))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		e, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		emails = append(emails, e)
	}
	return emails, nil
}

// GetEmails lists emails matching filter, newest first, without bodies.
func (s *SQLiteStore) GetEmails(
	ctx context.Context,
	filter EmailFilter,
) ([]model.EmailRecord, error) {
	var conditions []string
	var args []interface{}

	if filter.Folder != nil {
		conditions = append(conditions, "folder = ?")
		args = append(args, *filter.Folder)
	}
	if filter.Category != nil {
		conditions = append(conditions, "ai_category = ?")
		args = append(args, string(*filter.Category))
	}
	if filter.Unprocessed {
		conditions = append(conditions, "processed_at IS NULL")
	}

	query := "SELECT " + emailMetaColumns + " FROM emails"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date DESC"

	query += limitClause(filter.Limit, filter.Offset)

	var emails []model.EmailRecord
	if err := s.db.SelectContext(ctx, &emails, query, args...); err != nil {
		return nil, fmt.Errorf("querying emails: %w", err)
	}
	return emails, nil
}

// UpdateAICategory stores the AI-assigned category of an email.
func (s *SQLiteStore) UpdateAICategory(
	ctx context.Context,
	id string,
	category model.Category,
) error {
	return s.updateEmail(ctx, id, "ai_category", string(category))
}

// SetUserCategory records a human correction of an email's category.
func (s *SQLiteStore) SetUserCategory(
	ctx context.Context,
	id string,
	category model.Category,
) error {
	return s.updateEmail(ctx, id, "user_category", string(category))
}

func (s *SQLiteStore) updateEmail(
	ctx context.Context,
	id, column string,
	value any,
) error {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE emails SET %s = ?, updated_at = ? WHERE id = ?", column),
		value, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating %s of email %s: %w", column, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating %s of email %s: %w", column, id, err)
	}
	if n == 0 {
		return fmt.Errorf("email %s: %w", id, ErrNotFound)
	}
	return nil
}

// RelocateEmail records that an email moved to folder and is now known as
// newID. Tasks linked to the old id follow it. A row already stored under
// newID, left by a listing that saw the moved copy first, is replaced.
func (s *SQLiteStore) RelocateEmail(
	ctx context.Context,
	oldID, newID, folder string,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if newID != oldID {
		if _, err := tx.ExecContext(ctx, "DELETE FROM emails WHERE id = ?", newID); err != nil {
			return fmt.Errorf("clearing email %s: %w", newID, err)
		}
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE emails SET id = ?, folder = ?, updated_at = ? WHERE id = ?",
		newID, folder, time.Now().UTC(), oldID,
	)
	if err != nil {
		return fmt.Errorf("relocating email %s: %w", oldID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("relocating email %s: %w", oldID, err)
	}
	if n == 0 {
		return fmt.Errorf("email %s: %w", oldID, ErrNotFound)
	}

	if newID != oldID {
		_, err = tx.ExecContext(ctx,
			"UPDATE tasks SET linked_email_id = ? WHERE linked_email_id = ?",
			newID, oldID,
		)
		if err != nil {
			return fmt.Errorf("relinking tasks of email %s: %w", oldID, err)
		}
	}

	return tx.Commit()
}

// MarkProcessed stamps emails whose task extraction has run.
func (s *SQLiteStore) MarkProcessed(
	ctx context.Context,
	ids []string,
	at time.Time,
) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In("UPDATE emails SET processed_at = ? WHERE id IN (?)", at.UTC(), ids)
	if err != nil {
		return fmt.Errorf("building processed query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("marking emails processed: %w", err)
	}
	return nil
}

// UnprocessedIDs lists emails without a processed mark, newest first.
func (s *SQLiteStore) UnprocessedIDs(ctx context.Context, limit int) ([]string, error) {
	query := "SELECT id FROM emails WHERE processed_at IS NULL ORDER BY date DESC, id ASC"
	query += limitClause(limit, 0)

	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("querying unprocessed emails: %w", err)
	}
	return ids, nil
}

// CategoryCounts returns how many emails carry each AI category.
func (s *SQLiteStore) CategoryCounts(
	ctx context.Context,
) (map[model.Category]int, error) {
	var rows []struct {
		Category model.Category `db:"category"`
		N        int            `db:"n"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT ai_category AS category, COUNT(*) AS n
		FROM emails
		WHERE ai_category IS NOT NULL
		GROUP BY ai_category`)
	if err != nil {
		return nil, fmt.Errorf("counting categories: %w", err)
	}

	counts := make(map[model.Category]int, len(rows))
	for _, r := range rows {
		counts[r.Category] = r.N
	}
	return counts, nil
}

// CategoryAccuracy compares AI categories with user corrections for
// every email a human has reviewed.
func (s *SQLiteStore) CategoryAccuracy(
	ctx context.Context,
) ([]CategoryAccuracy, error) {
	var out []CategoryAccuracy
	err := s.db.SelectContext(ctx, &out, `
		SELECT
			ai_category AS category,
			COUNT(*) AS reviewed,
			SUM(CASE WHEN ai_category = user_category THEN 1 ELSE 0 END) AS correct
		FROM emails
		WHERE ai_category IS NOT NULL AND user_category IS NOT NULL
		GROUP BY ai_category
		ORDER BY ai_category`)
	if err != nil {
		return nil, fmt.Errorf("computing category accuracy: %w", err)
	}
	return out, nil
}

// limitClause renders LIMIT/OFFSET. SQLite needs a LIMIT before OFFSET.
func limitClause(limit, offset int) string {
	switch {
	case limit > 0 && offset > 0:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	case limit > 0:
		return fmt.Sprintf(" LIMIT %d", limit)
	case offset > 0:
		return fmt.Sprintf(" LIMIT -1 OFFSET %d", offset)
	}
	return ""
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
