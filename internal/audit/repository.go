// Package audit records every command the gateway publishes to field devices.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outcome values stored for each publish attempt.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

const (
	defaultLimit = 50
	maxLimit     = 200

	// Fixed-width UTC so created_at sorts lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// Command is one publish attempt on a control or config topic.
type Command struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Topic     string    `json:"topic"`
	Payload   string    `json:"payload"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository stores and lists audited commands.
type Repository interface {
	Record(ctx context.Context, cmd *Command) error
	Recent(ctx context.Context, limit int) ([]Command, error)
}

// SQLiteRepository keeps commands in the command_audit table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an already-migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts cmd. ID and CreatedAt are filled in when empty.
func (r *SQLiteRepository) Record(ctx context.Context, cmd *Command) error {
	if cmd.ID == "" {
		cmd.ID = "cmd-" + uuid.NewString()
	}
	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = time.Now().UTC()
	}
	if cmd.Outcome != OutcomeSent && cmd.Outcome != OutcomeFailed {
		return fmt.Errorf("invalid command outcome %q", cmd.Outcome)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_audit (id, kind, topic, payload, outcome, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cmd.ID, cmd.Kind, cmd.Topic, cmd.Payload, cmd.Outcome,
		nullableString(cmd.Error),
		cmd.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting command audit: %w", err)
	}
	return nil
}

// nullableString maps "" to SQL NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Recent returns up to limit commands, newest first. limit ≤ 0 means 50;
// anything above 200 is clamped.
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]Command, error) {
	limit = ClampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, topic, payload, outcome, error, created_at
		 FROM command_audit ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying command audit: %w", err)
	}
	defer rows.Close()

	commands := []Command{}
	for rows.Next() {
		var cmd Command
		var errText sql.NullString
		var createdAt string
		if err := rows.Scan(&cmd.ID, &cmd.Kind, &cmd.Topic, &cmd.Payload,
			&cmd.Outcome, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning command audit: %w", err)
		}
		if errText.Valid {
			cmd.Error = errText.String
		}
		cmd.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing command timestamp %q: %w", createdAt, err)
		}
		commands = append(commands, cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command audit: %w", err)
	}
	return commands, nil
}

// ClampLimit applies the default and maximum page size.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}
