package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/voxchat/dialoguekit/errors"
	"github.com/voxchat/dialoguekit/memory"
)

// SQLite is a durable Repository backed by a local SQLite database. States
// are stored as JSON documents keyed by (user_id, character_id), with the
// version held in its own column so stale writes can be rejected inside a
// transaction.
type SQLite struct {
	db *sql.DB
}

var _ memory.Repository = (*SQLite)(nil)

// NewSQLite opens or creates a SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memory_states (
		user_id      TEXT NOT NULL,
		character_id TEXT NOT NULL,
		version      INTEGER NOT NULL,
		state        TEXT NOT NULL,
		updated_at   TEXT NOT NULL,
		PRIMARY KEY (user_id, character_id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Load returns the stored state for the pair.
func (s *SQLite) Load(ctx context.Context, userID, characterID string) (*memory.State, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM memory_states WHERE user_id = ? AND character_id = ?`,
		userID, characterID).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("no memory state for pair",
			errors.WithUserID(userID), errors.WithCharacterID(characterID))
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	var state memory.State
	if err := json.Unmarshal([]byte(doc), &state); err != nil {
		return nil, errors.StateCorruption(userID, characterID,
			"stored state is not valid JSON", errors.WithCause(err))
	}
	return &state, nil
}

// Save stores the state. The write succeeds only when the offered version
// is strictly newer than what the row already holds.
func (s *SQLite) Save(ctx context.Context, userID, characterID string, state *memory.State) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	var held int64
	err = tx.QueryRowContext(ctx,
		`SELECT version FROM memory_states WHERE user_id = ? AND character_id = ?`,
		userID, characterID).Scan(&held)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO memory_states (user_id, character_id, version, state, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			userID, characterID, state.Version, string(doc), time.Now().UTC().Format(time.RFC3339))
	case err != nil:
		return fmt.Errorf("read held version: %w", err)
	case state.Version <= held:
		return errors.Conflict("stale memory state write",
			errors.WithUserID(userID), errors.WithCharacterID(characterID),
			errors.WithMetadata("held_version", itoa(held)),
			errors.WithMetadata("offered_version", itoa(state.Version)))
	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE memory_states SET version = ?, state = ?, updated_at = ?
			 WHERE user_id = ? AND character_id = ?`,
			state.Version, string(doc), time.Now().UTC().Format(time.RFC3339),
			userID, characterID)
	}
	if err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return tx.Commit()
}
