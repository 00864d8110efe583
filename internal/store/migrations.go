package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
//
// messages_fts is an external-content FTS5 index over subject and body text.
// The triggers keep it in sync; saves must therefore use ON CONFLICT DO
// UPDATE rather than INSERT OR REPLACE, which deletes rows without firing
// the delete trigger.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	account_id   TEXT NOT NULL,
	folder       TEXT NOT NULL,
	id           TEXT NOT NULL,
	subject      TEXT NOT NULL DEFAULT '',
	sent_at      DATETIME NOT NULL,
	flags        TEXT NOT NULL DEFAULT '[]',
	is_read      INTEGER NOT NULL DEFAULT 0 CHECK(is_read IN (0, 1)),
	body_text    TEXT NOT NULL DEFAULT '',
	message_json TEXT NOT NULL,
	fetched_at   DATETIME NOT NULL,
	PRIMARY KEY (account_id, folder, id)
);

CREATE INDEX IF NOT EXISTS idx_messages_folder_sent ON messages(account_id, folder, sent_at);
CREATE INDEX IF NOT EXISTS idx_messages_is_read ON messages(account_id, is_read);

CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
	subject,
	body_text,
	content='messages',
	content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS messages_fts_insert AFTER INSERT ON messages BEGIN
	INSERT INTO messages_fts(rowid, subject, body_text)
	VALUES (new.rowid, new.subject, new.body_text);
END;

CREATE TRIGGER IF NOT EXISTS messages_fts_delete AFTER DELETE ON messages BEGIN
	INSERT INTO messages_fts(messages_fts, rowid, subject, body_text)
	VALUES ('delete', old.rowid, old.subject, old.body_text);
END;

CREATE TRIGGER IF NOT EXISTS messages_fts_update AFTER UPDATE OF subject, body_text ON messages BEGIN
	INSERT INTO messages_fts(messages_fts, rowid, subject, body_text)
	VALUES ('delete', old.rowid, old.subject, old.body_text);
	INSERT INTO messages_fts(rowid, subject, body_text)
	VALUES (new.rowid, new.subject, new.body_text);
END;

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
