package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/soyeahso/kairos/internal/domain"
)

// MessageHit is a message matched by full-text search.
type MessageHit struct {
	ThreadID string         `json:"threadId"`
	Seq      int            `json:"seq"`
	Message  domain.Message `json:"message"`
	Rank     float64        `json:"rank"` // FTS5 rank score
}

// SearchMessages finds messages across all threads whose content matches
// query, best matches first. The query is matched as a phrase. Limit of 0
// defaults to 20.
func (s *SQLiteCheckpointStore) SearchMessages(ctx context.Context, query string, limit int) ([]MessageHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []MessageHit{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	phrase := `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT m.thread_id, m.seq, m.role, m.content, m.tool_call_id, m.timestamp, rank
		 FROM messages_fts
		 JOIN messages m ON m.id = messages_fts.rowid
		 WHERE messages_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		phrase, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	defer rows.Close()

	hits := []MessageHit{}
	for rows.Next() {
		var h MessageHit
		var role, ts string
		if err := rows.Scan(&h.ThreadID, &h.Seq, &role, &h.Message.Content, &h.Message.ToolCallID, &ts, &h.Rank); err != nil {
			return nil, err
		}
		h.Message.Role = domain.Role(role)
		h.Message.Timestamp = parseTime(ts)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
