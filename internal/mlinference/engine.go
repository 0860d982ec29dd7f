package mlinference

import (
	"sort"

	"github.com/semanticbrowser/kb/internal/errs"
)

// Engine is the stateless (beyond its loaded tables) ML inference
// engine of spec.md §4.5. It does not own the triple store.
type Engine struct {
	Entities  *EmbeddingTable
	Relations *EmbeddingTable
	Kind      EmbeddingType
}

// NewEngine loads the entity and relation tables and selects the
// scoring function. An unrecognised kind falls back to TransE.
func NewEngine(entityTensorPath, entityMappingPath, relationTensorPath, relationMappingPath string, kind EmbeddingType) (*Engine, error) {
	entities, err := LoadEmbeddingTable(entityTensorPath, entityMappingPath)
	if err != nil {
		return nil, err
	}
	relations, err := LoadEmbeddingTable(relationTensorPath, relationMappingPath)
	if err != nil {
		return nil, err
	}
	return &Engine{Entities: entities, Relations: relations, Kind: kind}, nil
}

// Prediction is one ranked (h, r, t) candidate.
type Prediction struct {
	Head       string
	Relation   string
	Tail       string
	Score      float32
	Confidence float64
}

// Score returns the raw score for a fully-bound (h, r, t) triple.
func (e *Engine) Score(hIRI, rIRI, tIRI string) (float32, error) {
	h, err := e.Entities.Row(hIRI)
	if err != nil {
		return 0, err
	}
	r, err := e.Relations.Row(rIRI)
	if err != nil {
		return 0, err
	}
	t, err := e.Entities.Row(tIRI)
	if err != nil {
		return 0, err
	}
	return score(e.Kind, h, r, t), nil
}

// PredictTails scores every entity in the table as a candidate tail for
// (hIRI, rIRI), keeping the top K by score whose normalised confidence
// is ≥ threshold, skipping tails present in exclude. A candidatePool, if
// non-empty, restricts the scan to that subset of entity IRIs; an empty
// pool scans every known entity. No caller in this module passes a
// pool, and the Prefilter in prefilter.go is not wired into this method.
func (e *Engine) PredictTails(hIRI, rIRI string, topK int, threshold float64, exclude map[string]bool, candidatePool []string) ([]Prediction, error) {
	h, err := e.Entities.Row(hIRI)
	if err != nil {
		return nil, err
	}
	r, err := e.Relations.Row(rIRI)
	if err != nil {
		return nil, err
	}

	candidates := candidatePool
	if len(candidates) == 0 {
		candidates = e.Entities.RowToIRI
	}

	type scored struct {
		iri   string
		score float32
	}
	var all []scored
	for _, tIRI := range candidates {
		if tIRI == hIRI || exclude[tIRI] {
			continue
		}
		t, err := e.Entities.Row(tIRI)
		if err != nil {
			continue
		}
		all = append(all, scored{iri: tIRI, score: score(e.Kind, h, r, t)})
	}
	if len(all) == 0 {
		return nil, nil
	}

	sort.Slice(all, func(i, j int) bool { return all[i].score > all[j].score })

	minScore, maxScore := all[len(all)-1].score, all[0].score

	out := make([]Prediction, 0, topK)
	for _, c := range all {
		if len(out) >= topK {
			break
		}
		conf := normalizedConfidence(c.score, minScore, maxScore)
		if conf < threshold {
			continue
		}
		out = append(out, Prediction{Head: hIRI, Relation: rIRI, Tail: c.iri, Score: c.score, Confidence: conf})
	}
	return out, nil
}

// RandomSample returns up to n entity IRIs, deterministically ordered
// (by mapping row order): the first n rows, with no randomness;
// internal/kg's MLInfer uses this slice directly as its head sample.
func (e *Engine) RandomSample(n int) []string {
	if n <= 0 || n > len(e.Entities.RowToIRI) {
		n = len(e.Entities.RowToIRI)
	}
	return e.Entities.RowToIRI[:n]
}

func (e *Engine) validate() error {
	if e.Entities == nil || e.Relations == nil {
		return errs.New(errs.KindInternal, "mlinference engine missing loaded tables")
	}
	return nil
}
