package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS emails (
	id              TEXT PRIMARY KEY,
	subject         TEXT NOT NULL DEFAULT '',
	sender          TEXT NOT NULL DEFAULT '',
	body            TEXT NOT NULL DEFAULT '',
	date            DATETIME NOT NULL,
	folder          TEXT NOT NULL DEFAULT '',
	is_read         INTEGER NOT NULL DEFAULT 0,
	ai_category     TEXT,
	user_category   TEXT,
	conversation_id TEXT NOT NULL DEFAULT '',
	processed_at    DATETIME,
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tasks (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'todo',
	priority        TEXT NOT NULL DEFAULT 'medium',
	category        TEXT NOT NULL,
	linked_email_id TEXT NOT NULL,
	due_date        DATETIME,
	tags            TEXT NOT NULL DEFAULT '[]',
	metadata        TEXT NOT NULL DEFAULT '{}',
	created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_emails_date ON emails(date);
CREATE INDEX IF NOT EXISTS idx_tasks_category ON tasks(category);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
-- One task per email and category, so re-running a batch is a no-op.
CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_email_category
	ON tasks(linked_email_id, category);

CREATE INDEX IF NOT EXISTS idx_emails_processed_at ON emails(processed_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
