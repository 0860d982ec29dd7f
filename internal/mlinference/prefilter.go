// This file provides the sqlite-vec-backed nearest-neighbour candidate
// prefilter. When built without the sqlite_vec/cgo tags it degrades to a
// pass-through that scans every entity, matching prefilter_stub.go.
//
//go:build sqlite_vec && cgo

package mlinference

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"fmt"
	"sync"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	vec.Auto()
}

// Prefilter narrows the candidate-tail scan before exact TransE/
// DistMult/ComplEx scoring, the way the teacher's vector store narrows
// semantic recall before brute-force cosine comparison: an in-memory
// sqlite-vec virtual table indexes entity embeddings, and a query
// against it returns the nearest N candidates by cosine distance.
type Prefilter struct {
	mu sync.Mutex
	db *sql.DB
}

// NewPrefilter builds an in-memory vec0 index over table's rows. Errors
// are non-fatal to the caller: PredictTails works without a prefilter,
// just scanning every entity.
func NewPrefilter(table *EmbeddingTable) (*Prefilter, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf("CREATE VIRTUAL TABLE entity_vec USING vec0(embedding float[%d] distance_metric=cosine)", table.Dim)
	if _, err := db.Exec(stmt); err != nil {
		db.Close()
		return nil, err
	}

	tx, err := db.Begin()
	if err != nil {
		db.Close()
		return nil, err
	}
	ins, err := tx.Prepare("INSERT INTO entity_vec(rowid, embedding) VALUES (?, ?)")
	if err != nil {
		tx.Rollback()
		db.Close()
		return nil, err
	}
	for i, row := range table.Rows {
		if _, err := ins.Exec(i, encodeFloat32Slice(row)); err != nil {
			ins.Close()
			tx.Rollback()
			db.Close()
			return nil, err
		}
	}
	ins.Close()
	if err := tx.Commit(); err != nil {
		db.Close()
		return nil, err
	}

	return &Prefilter{db: db}, nil
}

// Nearest returns the row indices of the n entities nearest query by
// cosine distance.
func (p *Prefilter) Nearest(query []float32, n int) ([]int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rows, err := p.db.Query(
		"SELECT rowid FROM entity_vec WHERE embedding MATCH ? ORDER BY distance LIMIT ?",
		encodeFloat32Slice(query), n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Close releases the in-memory index.
func (p *Prefilter) Close() error { return p.db.Close() }

func encodeFloat32Slice(v []float32) []byte {
	buf := &bytes.Buffer{}
	_ = binary.Write(buf, binary.LittleEndian, v)
	return buf.Bytes()
}
