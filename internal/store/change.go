package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/stage-tech/basestar-sub001/internal/ir"
)

// Op is the kind of write a Change records.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change describes one committed write. Before is nil for creates and
// After is nil for deletes.
type Change struct {
	Seq    int64
	Op     Op
	Schema string
	Before *ir.Object
	After  *ir.Object
}

// ID returns the id of the changed object.
func (c Change) ID() string {
	if c.After != nil {
		return c.After.ID
	}
	if c.Before != nil {
		return c.Before.ID
	}
	return ""
}

// ChangeHandler receives committed changes in sequence order.
type ChangeHandler func(Change)

// LogEntry is one row of the change log.
type LogEntry struct {
	Seq      int64  `json:"seq"`
	Op       Op     `json:"op"`
	Schema   string `json:"schema"`
	ObjectID string `json:"object_id"`
	Version  int64  `json:"version"`
}

// logChange appends a change to the log inside tx.
func logChange(ctx context.Context, tx *sql.Tx, seq int64, op Op, schema, id string, version int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO changes (seq, op, schema, object_id, version)
		VALUES (?, ?, ?, ?, ?)
	`, seq, string(op), schema, id, version)
	if err != nil {
		return fmt.Errorf("log change: %w", err)
	}
	return nil
}

// notify passes a committed change to every handler.
func (s *Store) notify(c Change) {
	slog.Debug("change committed", "seq", c.Seq, "op", c.Op, "schema", c.Schema, "id", c.ID())
	for _, h := range s.handlers {
		h(c)
	}
}

// LastSeq returns the sequence number of the most recent change, or 0.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM changes`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq.Int64, nil
}

// Changes returns the logged changes with seq greater than after, in
// sequence order.
func (s *Store) Changes(ctx context.Context, after int64) ([]LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, op, schema, object_id, version
		FROM changes
		WHERE seq > ?
		ORDER BY seq ASC
	`, after)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	entries := []LogEntry{}
	for rows.Next() {
		var (
			e  LogEntry
			op string
		)
		if err := rows.Scan(&e.Seq, &op, &e.Schema, &e.ObjectID, &e.Version); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		e.Op = Op(op)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	return entries, nil
}
