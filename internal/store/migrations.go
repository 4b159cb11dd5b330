package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create threads and messages",
		SQL: `
			CREATE TABLE threads (
				id          TEXT PRIMARY KEY,
				step        TEXT NOT NULL,
				iterations  INTEGER NOT NULL DEFAULT 0,
				error       TEXT NOT NULL DEFAULT '',
				created_at  TEXT NOT NULL,
				updated_at  TEXT NOT NULL
			);

			CREATE INDEX idx_threads_updated ON threads (updated_at);

			CREATE TABLE messages (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				thread_id     TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
				seq           INTEGER NOT NULL,
				role          TEXT NOT NULL,
				content       TEXT NOT NULL,
				tool_calls    TEXT,
				tool_call_id  TEXT NOT NULL DEFAULT '',
				timestamp     TEXT NOT NULL,
				UNIQUE (thread_id, seq)
			);
		`,
	},
	{
		Version: 2,
		Name:    "create message search with FTS5",
		SQL: `
			CREATE VIRTUAL TABLE messages_fts USING fts5(
				content,
				content='messages',
				content_rowid='id'
			);

			CREATE TRIGGER messages_ai AFTER INSERT ON messages BEGIN
				INSERT INTO messages_fts(rowid, content) VALUES (new.id, new.content);
			END;

			CREATE TRIGGER messages_ad AFTER DELETE ON messages BEGIN
				INSERT INTO messages_fts(messages_fts, rowid, content)
				VALUES ('delete', old.id, old.content);
			END;
		`,
	},
}
