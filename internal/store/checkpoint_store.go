package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/kairos/internal/domain"
)

// timeFormat sorts lexically in time order for UTC values.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SQLiteCheckpointStore persists conversation state in SQLite. Messages are an
// append-only log per thread; each Save writes only messages beyond those
// already stored, together with the thread's step, in one transaction.
type SQLiteCheckpointStore struct {
	db *DB
}

// NewSQLiteCheckpointStore creates a checkpoint store using the given database.
func NewSQLiteCheckpointStore(db *DB) *SQLiteCheckpointStore {
	return &SQLiteCheckpointStore{db: db}
}

// Load returns the saved state for a thread, or nil if none exists.
func (s *SQLiteCheckpointStore) Load(ctx context.Context, threadID string) (*domain.ConversationState, error) {
	st := &domain.ConversationState{ThreadID: threadID}
	var step, createdAt, updatedAt string
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT step, iterations, error, created_at, updated_at FROM threads WHERE id = ?`, threadID,
	).Scan(&step, &st.Iterations, &st.Error, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading thread %s: %w", threadID, err)
	}
	st.Step = domain.Step(step)
	st.CreatedAt = parseTime(createdAt)
	st.UpdatedAt = parseTime(updatedAt)

	msgs, err := s.loadMessages(ctx, threadID)
	if err != nil {
		return nil, err
	}
	st.Messages = msgs
	return st, nil
}

// Save records the state. The stored log must be a prefix of
// state.Messages.
func (s *SQLiteCheckpointStore) Save(ctx context.Context, st *domain.ConversationState) error {
	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	var stored int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE thread_id = ?`, st.ThreadID,
	).Scan(&stored); err != nil {
		return fmt.Errorf("counting messages: %w", err)
	}
	if stored > len(st.Messages) {
		return fmt.Errorf("thread %s: state has %d messages but %d are stored", st.ThreadID, len(st.Messages), stored)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO threads (id, step, iterations, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   step = excluded.step,
		   iterations = excluded.iterations,
		   error = excluded.error,
		   updated_at = excluded.updated_at`,
		st.ThreadID, string(st.Step), st.Iterations, st.Error,
		formatTime(st.CreatedAt), formatTime(st.UpdatedAt),
	); err != nil {
		return fmt.Errorf("saving thread: %w", err)
	}

	for i := stored; i < len(st.Messages); i++ {
		msg := st.Messages[i]
		var toolCallsJSON sql.NullString
		if len(msg.ToolCalls) > 0 {
			data, err := json.Marshal(msg.ToolCalls)
			if err != nil {
				return fmt.Errorf("encoding tool calls: %w", err)
			}
			toolCallsJSON = sql.NullString{String: string(data), Valid: true}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (thread_id, seq, role, content, tool_calls, tool_call_id, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			st.ThreadID, i, string(msg.Role), msg.Content, toolCallsJSON, msg.ToolCallID, formatTime(msg.Timestamp),
		); err != nil {
			return fmt.Errorf("appending message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}

	s.db.log.Debug().
		Str("thread", st.ThreadID).
		Str("step", string(st.Step)).
		Int("appended", len(st.Messages)-stored).
		Msg("checkpoint saved")
	return nil
}

// List returns every thread, most recently updated first.
func (s *SQLiteCheckpointStore) List(ctx context.Context) ([]domain.ThreadSummary, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT t.id, t.step, t.created_at, t.updated_at,
		        (SELECT COUNT(*) FROM messages m WHERE m.thread_id = t.id)
		 FROM threads t ORDER BY t.updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	defer rows.Close()

	list := []domain.ThreadSummary{}
	for rows.Next() {
		var ts domain.ThreadSummary
		var step, createdAt, updatedAt string
		if err := rows.Scan(&ts.ThreadID, &step, &createdAt, &updatedAt, &ts.Messages); err != nil {
			return nil, err
		}
		ts.Step = domain.Step(step)
		ts.CreatedAt = parseTime(createdAt)
		ts.UpdatedAt = parseTime(updatedAt)
		list = append(list, ts)
	}
	return list, rows.Err()
}

// Delete removes a thread and its messages. Deleting an unknown thread is
// not an error.
func (s *SQLiteCheckpointStore) Delete(ctx context.Context, threadID string) error {
	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, threadID); err != nil {
		return fmt.Errorf("deleting thread: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteCheckpointStore) loadMessages(ctx context.Context, threadID string) ([]domain.Message, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT role, content, tool_calls, tool_call_id, timestamp
		 FROM messages WHERE thread_id = ? ORDER BY seq`, threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var msg domain.Message
		var role, ts string
		var toolCallsJSON sql.NullString

		if err := rows.Scan(&role, &msg.Content, &toolCallsJSON, &msg.ToolCallID, &ts); err != nil {
			return nil, err
		}
		msg.Role = domain.Role(role)
		msg.Timestamp = parseTime(ts)

		if toolCallsJSON.Valid && toolCallsJSON.String != "" {
			if err := json.Unmarshal([]byte(toolCallsJSON.String), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("decoding tool calls: %w", err)
			}
		}

		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
