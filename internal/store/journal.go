package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Transition is one recorded status change of a project or a
// search-string job. The journal is local diagnostics only; the data
// service stays the source of truth.
type Transition struct {
	ID       int64     `json:"id"`
	Entity   string    `json:"entity"` // project | search_job
	EntityID string    `json:"entity_id"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Detail   string    `json:"detail,omitempty"`
	At       time.Time `json:"at"`
}

func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= 1 {
		return tx.Commit()
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS transitions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  entity TEXT NOT NULL,
  entity_id TEXT NOT NULL,
  from_status TEXT NOT NULL,
  to_status TEXT NOT NULL,
  detail TEXT NOT NULL DEFAULT '',
  at TEXT NOT NULL
);`); err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_transitions_entity ON transitions(entity, entity_id);`); err != nil {
		return err
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}
	return tx.Commit()
}

func RecordTransition(ctx context.Context, db *sql.DB, t Transition) error {
	at := t.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, `
INSERT INTO transitions (entity, entity_id, from_status, to_status, detail, at)
VALUES (?, ?, ?, ?, ?, ?);`,
		t.Entity, t.EntityID, t.From, t.To, t.Detail, at.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// ListTransitions returns the recorded transitions for one entity,
// newest first.
func ListTransitions(ctx context.Context, db *sql.DB, entity, entityID string, limit int) ([]Transition, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
SELECT id, entity, entity_id, from_status, to_status, detail, at
FROM transitions
WHERE entity = ? AND entity_id = ?
ORDER BY id DESC
LIMIT ?;`, entity, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var t Transition
		var at string
		if err := rows.Scan(&t.ID, &t.Entity, &t.EntityID, &t.From, &t.To, &t.Detail, &at); err != nil {
			return nil, err
		}
		if ts, perr := time.Parse(time.RFC3339Nano, at); perr == nil {
			t.At = ts
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
