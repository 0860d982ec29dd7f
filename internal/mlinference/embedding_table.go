// Package mlinference loads entity/relation embedding tables and scores
// candidate triples for link prediction (TransE/DistMult/ComplEx), per
// spec.md §4.5. Table loading follows the load-once/read-only-after
// idiom of the teacher's embedding engine; the arithmetic helpers mirror
// the cosine-similarity helpers of its vector store, generalised from
// similarity search to knowledge-graph scoring functions.
package mlinference

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/semanticbrowser/kb/internal/errs"
)

// EmbeddingTable is a read-only, fixed-dimension matrix with an
// injective IRI -> row mapping, per spec.md §3's EmbeddingTable
// invariants.
type EmbeddingTable struct {
	Dim      int
	Rows     [][]float32
	IRIToRow map[string]int
	RowToIRI []string
}

// LoadEmbeddingTable reads a flat, row-major float32 binary tensor file
// (little-endian) plus a newline-delimited mapping file (one IRI per
// line, row index = line number starting at 0, per spec.md §6's
// persisted-layout contract).
func LoadEmbeddingTable(tensorPath, mappingPath string) (*EmbeddingTable, error) {
	iris, err := readLines(mappingPath)
	if err != nil {
		return nil, fmt.Errorf("mlinference: read mapping %s: %w", mappingPath, err)
	}
	if len(iris) == 0 {
		return nil, fmt.Errorf("mlinference: mapping file %s is empty", mappingPath)
	}

	info, err := os.Stat(tensorPath)
	if err != nil {
		return nil, fmt.Errorf("mlinference: stat tensor %s: %w", tensorPath, err)
	}
	numFloats := info.Size() / 4
	if numFloats%int64(len(iris)) != 0 {
		return nil, fmt.Errorf("mlinference: tensor %s size %d bytes not divisible by %d rows", tensorPath, info.Size(), len(iris))
	}
	dim := int(numFloats / int64(len(iris)))
	if dim <= 0 {
		return nil, fmt.Errorf("mlinference: tensor %s yields non-positive dimension", tensorPath)
	}

	f, err := os.Open(tensorPath)
	if err != nil {
		return nil, fmt.Errorf("mlinference: open tensor %s: %w", tensorPath, err)
	}
	defer f.Close()

	rows := make([][]float32, len(iris))
	buf := make([]byte, dim*4)
	r := bufio.NewReaderSize(f, 1<<20)
	for i := range iris {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("mlinference: read row %d of %s: %w", i, tensorPath, err)
		}
		row := make([]float32, dim)
		for j := 0; j < dim; j++ {
			bits := binary.LittleEndian.Uint32(buf[j*4 : j*4+4])
			row[j] = math.Float32frombits(bits)
		}
		rows[i] = row
	}

	idx := make(map[string]int, len(iris))
	for i, iri := range iris {
		if _, dup := idx[iri]; dup {
			return nil, fmt.Errorf("mlinference: mapping %s has duplicate IRI %q at line %d", mappingPath, iri, i)
		}
		idx[iri] = i
	}

	return &EmbeddingTable{Dim: dim, Rows: rows, IRIToRow: idx, RowToIRI: iris}, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out, scanner.Err()
}

// Row returns the embedding row for iri, or a NotFound error if it is
// not present in the mapping.
func (t *EmbeddingTable) Row(iri string) ([]float32, error) {
	idx, ok := t.IRIToRow[iri]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "iri not present in embedding mapping: "+iri)
	}
	return t.Rows[idx], nil
}
