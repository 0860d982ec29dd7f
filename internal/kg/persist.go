package kg

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/semanticbrowser/kb/internal/errs"
)

// Open builds an Engine, loading existing data from persistPath if
// non-empty and the file already exists (spec.md §4.4: "on open,
// existing data is loaded"). An empty path yields a purely in-memory
// store.
func Open(persistPath string) (*Engine, error) {
	e := NewEngine()
	e.persistPath = persistPath
	if persistPath == "" {
		return e, nil
	}
	if _, err := os.Stat(persistPath); err == nil {
		if err := e.restore(persistPath); err != nil {
			return nil, errs.Wrap(errs.KindCorrupted, "failed to load persisted triples", err)
		}
	}
	return e, nil
}

// Snapshot flushes the current triple set to the configured persistence
// path, if any. Called on clean shutdown.
func (e *Engine) Snapshot() error {
	if e.persistPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(e.persistPath), 0o755); err != nil {
		return errs.Wrap(errs.KindStorageFull, "failed to create persistence directory", err)
	}
	// Overwrite atomically: write to a temp file, then rename, so a crash
	// mid-snapshot never corrupts the previous durable copy.
	tmp := e.persistPath + ".tmp"
	_ = os.Remove(tmp)

	db, err := sql.Open("sqlite", tmp)
	if err != nil {
		return errs.Wrap(errs.KindStorageFull, "failed to open snapshot database", err)
	}
	defer db.Close()

	if err := initSchema(db); err != nil {
		return errs.Wrap(errs.KindStorageFull, "failed to create snapshot schema", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return errs.Wrap(errs.KindStorageFull, "failed to start snapshot transaction", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO triples(subject, predicate, object) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return errs.Wrap(errs.KindStorageFull, "failed to prepare insert", err)
	}
	for _, t := range e.All() {
		if _, err := stmt.Exec(encodeTerm(t.Subject), string(t.Predicate), encodeTerm(t.Object)); err != nil {
			stmt.Close()
			tx.Rollback()
			return errs.Wrap(errs.KindStorageFull, "failed to write triple", err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.KindStorageFull, "failed to commit snapshot", err)
	}
	db.Close()

	return os.Rename(tmp, e.persistPath)
}

func (e *Engine) restore(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := initSchema(db); err != nil {
		return err
	}

	rows, err := db.Query(`SELECT subject, predicate, object FROM triples`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var triples []Triple
	for rows.Next() {
		var s, p, o string
		if err := rows.Scan(&s, &p, &o); err != nil {
			return err
		}
		triples = append(triples, Triple{Subject: decodeTerm(s), Predicate: IRI(p), Object: decodeTerm(o)})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if _, err := e.InsertBatch(triples); err != nil {
		return err
	}
	return nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS triples (
		subject   TEXT NOT NULL,
		predicate TEXT NOT NULL,
		object    TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("kg: create schema: %w", err)
	}
	return nil
}
