//go:build !(sqlite_vec && cgo)

package mlinference

// Prefilter is a no-op stand-in when the sqlite_vec/cgo build tags are
// not set: PredictTails falls back to scanning every known entity.
type Prefilter struct{}

// NewPrefilter always returns a nil Prefilter in builds without
// sqlite-vec; callers treat a nil *Prefilter as "no prefilter
// available" and scan the full entity table.
func NewPrefilter(table *EmbeddingTable) (*Prefilter, error) { return nil, nil }

// Nearest is unreachable without the sqlite_vec/cgo build tags; present
// only to satisfy callers written against the tagged build.
func (p *Prefilter) Nearest(query []float32, n int) ([]int, error) { return nil, nil }

// Close is a no-op.
func (p *Prefilter) Close() error { return nil }
