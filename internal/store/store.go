// Package store archives finished runs in a local sqlite database, so past
// enrichments can be listed and inspected without re-dispatching remote
// work.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/epiworks/episeek/internal/model"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	input      TEXT NOT NULL,
	keys       INTEGER NOT NULL,
	services   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS outcomes (
	run_id  TEXT NOT NULL REFERENCES runs(id),
	peptide TEXT NOT NULL,
	service TEXT NOT NULL,
	ok      INTEGER NOT NULL,
	reason  TEXT NOT NULL,
	columns TEXT NOT NULL,
	PRIMARY KEY (run_id, peptide, service)
);
`

type Store struct {
	db *sql.DB
}

// Open opens or creates the archive at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare archive schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Run is one archived enrichment run.
type Run struct {
	ID        string
	CreatedAt time.Time
	Input     string
	Keys      int
	Services  []string
}

// SaveRun archives the table under a fresh run id. Cells are stored
// rendered: successful outcomes keep their column values as JSON, failures
// keep their classified reason.
func (s *Store) SaveRun(ctx context.Context, input string, t *model.Table) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	id := uuid.New().String()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, input, keys, services) VALUES (?, ?, ?, ?, ?)`,
		id, time.Now().UTC().Format(time.RFC3339), input, t.Len(),
		strings.Join(t.Services(), ","))
	if err != nil {
		return "", fmt.Errorf("archive run: %w", err)
	}

	insert, err := tx.PrepareContext(ctx,
		`INSERT INTO outcomes (run_id, peptide, service, ok, reason, columns) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = insert.Close()
	}()

	for _, key := range t.Keys() {
		for _, service := range t.Services() {
			out, ok := t.Outcome(key, service)
			if !ok {
				continue
			}
			cols, reason := "{}", ""
			if out.OK() {
				cols, err = renderColumns(out.Value)
				if err != nil {
					return "", err
				}
			} else {
				reason = string(out.Reason)
			}
			if _, err := insert.ExecContext(ctx,
				id, string(key), service, boolToInt(out.OK()), reason, cols); err != nil {
				return "", fmt.Errorf("archive outcome %s/%s: %w", key, service, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// ListRuns returns archived runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, input, keys, services FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var runs []Run
	for rows.Next() {
		var r Run
		var created, services string
		if err := rows.Scan(&r.ID, &created, &r.Input, &r.Keys, &services); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, fmt.Errorf("archived run %s: %w", r.ID, err)
		}
		if services != "" {
			r.Services = strings.Split(services, ",")
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Failures returns the failure tally per service for one archived run.
func (s *Store) Failures(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT service, COUNT(*) FROM outcomes WHERE run_id = ? AND ok = 0 GROUP BY service`,
		runID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	tally := make(map[string]int)
	for rows.Next() {
		var service string
		var n int
		if err := rows.Scan(&service, &n); err != nil {
			return nil, err
		}
		tally[service] = n
	}
	return tally, rows.Err()
}

func renderColumns(v model.Value) (string, error) {
	cols := v.Columns()
	m := make(map[string]string, len(cols))
	for _, c := range cols {
		m[c.Name] = c.Value
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
