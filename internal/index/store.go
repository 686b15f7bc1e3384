// Package index persists analysis results to sqlite so downstream tools can
// query bindings and references without re-running the analyzer.
package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/typetrace/typetrace/internal/analysis"
	"github.com/typetrace/typetrace/internal/infer"
)

const sqliteDriverName = "sqlite"

// Store wraps one sqlite database holding analysis runs.
type Store struct {
	db         *sql.DB
	lookupStmt *sql.Stmt
}

// BindingRecord is the persisted shape of one binding.
type BindingRecord struct {
	QName    string
	Name     string
	Kind     string
	Type     string
	File     string
	Start    int
	Length   int
	RefCount int
	Builtin  bool
	URL      string
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("index store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("index store path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index store directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open index store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping index store %q: %w", cleanPath, err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	lookupStmt, err := db.Prepare(`SELECT
  qname, name, kind, type, file, start, length, ref_count, builtin, url
FROM bindings
WHERE run_id = (SELECT run_id FROM runs ORDER BY created_at DESC LIMIT 1)
  AND qname = ?
ORDER BY file, start`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare lookup stmt: %w", err)
	}

	return &Store{db: db, lookupStmt: lookupStmt}, nil
}

func migrate(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  run_id     TEXT PRIMARY KEY,
  root       TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS bindings (
  id        INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id    TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
  qname     TEXT NOT NULL,
  name      TEXT NOT NULL,
  kind      TEXT NOT NULL,
  type      TEXT NOT NULL,
  file      TEXT NOT NULL,
  start     INTEGER NOT NULL,
  length    INTEGER NOT NULL,
  ref_count INTEGER NOT NULL DEFAULT 0,
  builtin   INTEGER NOT NULL DEFAULT 0,
  url       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_bindings_qname ON bindings(run_id, qname);
CREATE TABLE IF NOT EXISTS refs (
  id      INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id  TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
  file    TEXT NOT NULL,
  start   INTEGER NOT NULL,
  length  INTEGER NOT NULL,
  qname   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_refs_pos ON refs(run_id, file, start);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate index schema: %w", err)
	}
	return nil
}

// SaveRun persists one analysis pass and returns its run id.
func (s *Store) SaveRun(root string, a *analysis.Analyzer) (string, error) {
	runID := uuid.NewString()

	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT INTO runs (run_id, root, created_at) VALUES (?, ?, ?)`,
		runID, root, time.Now().UTC(),
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	insertBinding, err := tx.Prepare(`INSERT INTO bindings
  (run_id, qname, name, kind, type, file, start, length, ref_count, builtin, url)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer insertBinding.Close()

	for _, b := range a.AllBindings() {
		if _, err := insertBinding.Exec(
			runID, b.QName, b.Name, b.Kind.String(), b.Type.String(),
			b.File, b.Start, b.Length, len(b.Refs), b.Builtin, b.URL,
		); err != nil {
			return "", fmt.Errorf("insert binding %s: %w", b.QName, err)
		}
	}

	insertRef, err := tx.Prepare(`INSERT INTO refs
  (run_id, file, start, length, qname) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer insertRef.Close()

	for ref, bindings := range a.References() {
		for _, b := range bindings {
			if _, err := insertRef.Exec(runID, ref.File, ref.Start, ref.Length, b.QName); err != nil {
				return "", fmt.Errorf("insert ref %s:%d: %w", ref.File, ref.Start, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return runID, nil
}

// LookupQName returns the latest run's bindings for a qualified name.
func (s *Store) LookupQName(qname string) ([]BindingRecord, error) {
	rows, err := s.lookupStmt.Query(qname)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBindings(rows)
}

// BindingsForFile returns the latest run's bindings defined in one file.
func (s *Store) BindingsForFile(file string) ([]BindingRecord, error) {
	rows, err := s.db.Query(`SELECT
  qname, name, kind, type, file, start, length, ref_count, builtin, url
FROM bindings
WHERE run_id = (SELECT run_id FROM runs ORDER BY created_at DESC LIMIT 1)
  AND file = ?
ORDER BY start`, file)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBindings(rows)
}

func scanBindings(rows *sql.Rows) ([]BindingRecord, error) {
	var out []BindingRecord
	for rows.Next() {
		var r BindingRecord
		if err := rows.Scan(&r.QName, &r.Name, &r.Kind, &r.Type, &r.File,
			&r.Start, &r.Length, &r.RefCount, &r.Builtin, &r.URL); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneRuns keeps only the newest n runs.
func (s *Store) PruneRuns(n int) error {
	_, err := s.db.Exec(`DELETE FROM runs WHERE run_id NOT IN
  (SELECT run_id FROM runs ORDER BY created_at DESC LIMIT ?)`, n)
	return err
}

func (s *Store) Close() error {
	if s.lookupStmt != nil {
		_ = s.lookupStmt.Close()
	}
	return s.db.Close()
}

// Records converts live bindings into persisted shape, sorted for stable
// output; used by report writers that bypass sqlite.
func Records(bindings []*infer.Binding) []BindingRecord {
	out := make([]BindingRecord, 0, len(bindings))
	for _, b := range bindings {
		out = append(out, BindingRecord{
			QName:    b.QName,
			Name:     b.Name,
			Kind:     b.Kind.String(),
			Type:     b.Type.String(),
			File:     b.File,
			Start:    b.Start,
			Length:   b.Length,
			RefCount: len(b.Refs),
			Builtin:  b.Builtin,
			URL:      b.URL,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].QName < out[j].QName
	})
	return out
}
