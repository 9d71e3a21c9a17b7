package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/flemzord/llamacord/internal/history"
	"github.com/flemzord/llamacord/internal/provider"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// Store is a history.Store backed by a private in-memory SQLite database.
// Nothing is written to disk; contexts vanish with the process.
type Store struct {
	db  *sql.DB
	max int
}

// Compile-time interface guard.
var _ history.Store = (*Store)(nil)

// Open creates a Store bounded to maxTurns turns per context.
func Open(maxTurns, busyTimeout int) (*Store, error) {
	if maxTurns < 0 {
		return nil, fmt.Errorf("%w: got %d", history.ErrNegativeMax, maxTurns)
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("history.sqlite: open: %w", err)
	}

	// Every connection to ":memory:" gets its own database. Pin the pool
	// to one long-lived connection so all statements share it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	ctx := context.TODO()
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history.sqlite: set busy_timeout: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, max: maxTurns}, nil
}

// Append inserts turn and evicts the oldest turns beyond the bound in one
// transaction.
func (s *Store) Append(key history.Key, turn provider.Turn) error {
	// history.Store does not carry context; use TODO as placeholder.
	ctx := context.TODO()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history.sqlite: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO turns (context_key, seq, role, content)
		VALUES (?, COALESCE((SELECT MAX(seq) FROM turns WHERE context_key = ?), 0) + 1, ?, ?)`,
		string(key), string(key), string(turn.Role), turn.Content,
	); err != nil {
		return fmt.Errorf("history.sqlite: append turn: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM turns
		WHERE context_key = ?
		  AND seq <= (SELECT MAX(seq) FROM turns WHERE context_key = ?) - ?`,
		string(key), string(key), s.max,
	); err != nil {
		return fmt.Errorf("history.sqlite: evict turns: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history.sqlite: commit: %w", err)
	}
	return nil
}

// Get returns the context for key, oldest first.
func (s *Store) Get(key history.Key) ([]provider.Turn, error) {
	rows, err := s.db.QueryContext(context.TODO(),
		`SELECT role, content FROM turns WHERE context_key = ? ORDER BY seq ASC`,
		string(key),
	)
	if err != nil {
		return nil, fmt.Errorf("history.sqlite: query turns: %w", err)
	}
	defer rows.Close() //nolint:errcheck // best-effort close

	turns := make([]provider.Turn, 0, s.max)
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("history.sqlite: scan turn: %w", err)
		}
		turns = append(turns, provider.Turn{Role: provider.Role(role), Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history.sqlite: iterate turns: %w", err)
	}
	return turns, nil
}

// Clear deletes every turn stored under key.
func (s *Store) Clear(key history.Key) error {
	if _, err := s.db.ExecContext(context.TODO(),
		`DELETE FROM turns WHERE context_key = ?`, string(key),
	); err != nil {
		return fmt.Errorf("history.sqlite: clear: %w", err)
	}
	return nil
}

// Keys lists the contexts holding at least one turn, sorted by key.
func (s *Store) Keys() ([]history.KeyInfo, error) {
	rows, err := s.db.QueryContext(context.TODO(),
		`SELECT context_key, COUNT(*) FROM turns GROUP BY context_key ORDER BY context_key ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("history.sqlite: query keys: %w", err)
	}
	defer rows.Close() //nolint:errcheck // best-effort close

	var infos []history.KeyInfo
	for rows.Next() {
		var info history.KeyInfo
		var key string
		if err := rows.Scan(&key, &info.Turns); err != nil {
			return nil, fmt.Errorf("history.sqlite: scan key: %w", err)
		}
		info.Key = history.Key(key)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Max returns the context bound.
func (s *Store) Max() int {
	return s.max
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
