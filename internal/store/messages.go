package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/maildeck/maildeck/internal/models"
)

// ErrMessageNotFound is returned when a requested message is not cached.
var ErrMessageNotFound = errors.New("message not found")

// SaveMessages inserts or updates a batch of fetched messages. Every message
// must carry its account id, folder and backend-native id; together they form
// the cache key.
func (s *Store) SaveMessages(ctx context.Context, messages []*models.Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO messages (
			account_id, folder, id,
			subject, sent_at, flags, is_read,
			body_text, message_json, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id, folder, id) DO UPDATE SET
			subject      = excluded.subject,
			sent_at      = excluded.sent_at,
			flags        = excluded.flags,
			is_read      = excluded.is_read,
			body_text    = excluded.body_text,
			message_json = excluded.message_json,
			fetched_at   = excluded.fetched_at`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, msg := range messages {
		if msg.AccountID == "" || msg.Folder == "" || msg.ID == "" {
			return fmt.Errorf("caching message %q: account id, folder and message id are all required", msg.Subject)
		}

		flagsJSON, err := marshalFlags(msg.Flags)
		if err != nil {
			return fmt.Errorf("marshaling flags for message %s: %w", msg.ID, err)
		}
		messageJSON, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshaling message %s: %w", msg.ID, err)
		}

		_, err = stmt.ExecContext(ctx,
			msg.AccountID, msg.Folder, msg.ID,
			msg.Subject, msg.Date.UTC(), flagsJSON, isRead(msg.Flags),
			msg.Body.Text(), string(messageJSON), now,
		)
		if err != nil {
			return fmt.Errorf("caching message %s: %w", msg.ID, err)
		}
	}

	return tx.Commit()
}

// Messages returns the cached messages of a folder, newest first. A limit of
// zero or less returns the whole folder.
func (s *Store) Messages(ctx context.Context, accountID, folder string, limit int) ([]*models.Message, error) {
	query := `
		SELECT message_json, flags
		FROM messages
		WHERE account_id = ? AND folder = ?
		ORDER BY sent_at DESC`
	args := []interface{}{accountID, folder}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}

	return collectMessages(rows)
}

// Message returns a single cached message, or ErrMessageNotFound.
func (s *Store) Message(ctx context.Context, accountID, folder, id string) (*models.Message, error) {
	var messageJSON, flagsJSON string
	err := s.db.QueryRowxContext(ctx, `
		SELECT message_json, flags
		FROM messages
		WHERE account_id = ? AND folder = ? AND id = ?`,
		accountID, folder, id,
	).Scan(&messageJSON, &flagsJSON)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting message %s: %w", id, err)
	}

	return scanMessage(messageJSON, flagsJSON)
}

// Search runs a full-text query over cached subjects and body text across
// all of the account's folders, best matches first. An empty query matches
// nothing. A limit of zero or less returns every match.
func (s *Store) Search(ctx context.Context, accountID, query string, limit int) ([]*models.Message, error) {
	if query == "" {
		return nil, nil
	}

	sqlQuery := `
		SELECT m.message_json, m.flags
		FROM messages_fts
		JOIN messages m ON m.rowid = messages_fts.rowid
		WHERE messages_fts MATCH ? AND m.account_id = ?
		ORDER BY rank`
	args := []interface{}{query, accountID}
	if limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryxContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	return collectMessages(rows)
}

// SetFlags replaces the cached flag set of a message.
func (s *Store) SetFlags(ctx context.Context, accountID, folder, id string, flags []models.Flag) error {
	flagsJSON, err := marshalFlags(flags)
	if err != nil {
		return fmt.Errorf("marshaling flags: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET flags = ?, is_read = ?
		WHERE account_id = ? AND folder = ? AND id = ?`,
		flagsJSON, isRead(flags), accountID, folder, id,
	)
	if err != nil {
		return fmt.Errorf("updating flags for message %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating flags for message %s: %w", id, err)
	}
	if n == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// DeleteMessage removes a message from the cache. Deleting a message that is
// not cached is not an error.
func (s *Store) DeleteMessage(ctx context.Context, accountID, folder, id string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM messages
		WHERE account_id = ? AND folder = ? AND id = ?`,
		accountID, folder, id,
	)
	if err != nil {
		return fmt.Errorf("deleting message %s: %w", id, err)
	}
	return nil
}

// FolderStat summarizes one cached folder.
type FolderStat struct {
	Folder string
	Total  int
	Unread int
}

// Stats returns per-folder message and unread counts for the account,
// ordered by folder name.
func (s *Store) Stats(ctx context.Context, accountID string) ([]FolderStat, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT folder, COUNT(*), SUM(CASE WHEN is_read = 0 THEN 1 ELSE 0 END)
		FROM messages
		WHERE account_id = ?
		GROUP BY folder
		ORDER BY folder`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying folder stats: %w", err)
	}
	defer rows.Close()

	var stats []FolderStat
	for rows.Next() {
		var st FolderStat
		if err := rows.Scan(&st.Folder, &st.Total, &st.Unread); err != nil {
			return nil, fmt.Errorf("scanning folder stats: %w", err)
		}
		stats = append(stats, st)
	}

	return stats, rows.Err()
}

// collectMessages drains a (message_json, flags) result set.
func collectMessages(rows *sqlx.Rows) ([]*models.Message, error) {
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		var messageJSON, flagsJSON string
		if err := rows.Scan(&messageJSON, &flagsJSON); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		msg, err := scanMessage(messageJSON, flagsJSON)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// scanMessage rebuilds a canonical message from its cached JSON form. The
// flags column is authoritative; SetFlags updates it without rewriting the
// message JSON.
func scanMessage(messageJSON, flagsJSON string) (*models.Message, error) {
	var msg models.Message
	if err := json.Unmarshal([]byte(messageJSON), &msg); err != nil {
		return nil, fmt.Errorf("unmarshaling cached message: %w", err)
	}

	flags, err := unmarshalFlags(flagsJSON)
	if err != nil {
		return nil, err
	}
	msg.Flags = flags

	return &msg, nil
}

func marshalFlags(flags []models.Flag) (string, error) {
	if flags == nil {
		flags = []models.Flag{}
	}
	b, err := json.Marshal(flags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalFlags(flagsJSON string) ([]models.Flag, error) {
	if flagsJSON == "" || flagsJSON == "[]" {
		return nil, nil
	}
	var flags []models.Flag
	if err := json.Unmarshal([]byte(flagsJSON), &flags); err != nil {
		return nil, fmt.Errorf("unmarshaling cached flags: %w", err)
	}
	return flags, nil
}

// isRead converts the flag set to the 0/1 form stored alongside it.
func isRead(flags []models.Flag) int {
	for _, f := range flags {
		if f == models.FlagSeen {
			return 1
		}
	}
	return 0
}
