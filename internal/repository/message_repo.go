package repository

import (
	"context"
	"database/sql"
	"time"

	"sousvide_simulator/internal/models"

	"github.com/google/uuid"
)

// maxRetained caps the message log; older rows are pruned on insert.
const maxRetained = 1000

const (
	insertMessageSQL = `
		INSERT INTO message_log (id, recorded_at, direction, command, request_id, raw)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	pruneMessagesSQL = `
		DELETE FROM message_log WHERE id NOT IN (
			SELECT id FROM message_log ORDER BY recorded_at DESC, id DESC LIMIT ?
		)
	`

	selectMessagesSQL = `
		SELECT id, recorded_at, direction, command, request_id, raw
		FROM message_log
	`
)

type MessageSQLite struct {
	db *sql.DB
}

func NewMessageSQLite(db *sql.DB) *MessageSQLite { return &MessageSQLite{db: db} }

var _ MessageRepo = (*MessageSQLite)(nil)

// Append inserts one logged frame. Missing ID/timestamp are filled in.
func (r *MessageSQLite) Append(ctx context.Context, m models.LoggedMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	if _, err := r.db.ExecContext(ctx, insertMessageSQL,
		m.ID,
		ts.Format("2006-01-02 15:04:05.000000"),
		m.Direction,
		nullIfEmpty(m.Command),
		nullIfEmpty(m.RequestID),
		m.Raw,
	); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, pruneMessagesSQL, maxRetained)
	return err
}

// List returns up to limit most recent messages in chronological order,
// optionally filtered by direction.
func (r *MessageSQLite) List(ctx context.Context, limit int, direction string) ([]models.LoggedMessage, error) {
	if limit <= 0 || limit > maxRetained {
		limit = maxRetained
	}

	q := selectMessagesSQL
	var args []any
	if direction != "" {
		q += " WHERE direction = ?"
		args = append(args, direction)
	}
	q += " ORDER BY recorded_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.LoggedMessage, 0, limit)
	for rows.Next() {
		var m models.LoggedMessage
		var command, requestID sql.NullString
		if err := rows.Scan(&m.ID, &m.Timestamp, &m.Direction, &command, &requestID, &m.Raw); err != nil {
			return nil, err
		}
		m.Timestamp = m.Timestamp.UTC()
		m.Command = command.String
		m.RequestID = requestID.String
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query; callers expect chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
