package kg

import (
	"encoding/json"
	"sync"

	"github.com/google/mangle/ast"
	"github.com/google/mangle/factstore"

	"github.com/semanticbrowser/kb/internal/errs"
	"github.com/semanticbrowser/kb/internal/logging"
)

// triplePredSym is the single Mangle predicate every triple is stored
// under: triple(subject, predicate, object), with each argument the
// tagged string encoding produced by encodeTerm. Using one fixed-arity
// predicate avoids declaring or parsing a Mangle schema at all — the
// store never calls into analysis/parse/engine, only ast and factstore.
var triplePredSym = ast.PredicateSym{Symbol: "triple", Arity: 3}

// Engine is the triple store: a Mangle fact store addressed only
// through ast.Atom and factstore.ConcurrentFactStore, plus a SPARQL
// subset executor (sparql.go) and rule-based inference (infer.go) built
// on top of it.
type Engine struct {
	mu        sync.RWMutex // writes serialised; reads concurrent, per spec.md §5
	base      factstore.FactStoreWithRemove
	store     factstore.ConcurrentFactStore
	persistPath string
}

// NewEngine constructs an empty, in-memory triple store. Use Open to
// load a persisted snapshot.
func NewEngine() *Engine {
	base := factstore.NewSimpleInMemoryStore()
	return &Engine{
		base:  base,
		store: factstore.NewConcurrentFactStore(base),
	}
}

// encodeTerm serialises a Term to a tagged string Mangle can hold as an
// ast.String constant. The tag byte disambiguates IRI/BlankNode/Literal
// on decode.
func encodeTerm(t Term) string {
	switch v := t.(type) {
	case IRI:
		return "I" + string(v)
	case BlankNode:
		return "B" + string(v)
	case Literal:
		data, _ := json.Marshal(v)
		return "L" + string(data)
	default:
		return "I"
	}
}

func decodeTerm(s string) Term {
	if s == "" {
		return IRI("")
	}
	tag, rest := s[0], s[1:]
	switch tag {
	case 'I':
		return IRI(rest)
	case 'B':
		return BlankNode(rest)
	case 'L':
		var l Literal
		_ = json.Unmarshal([]byte(rest), &l)
		return l
	default:
		return IRI(s)
	}
}

func tripleAtom(t Triple) ast.Atom {
	return ast.Atom{
		Predicate: triplePredSym,
		Args: []ast.BaseTerm{
			ast.String(encodeTerm(t.Subject)),
			ast.String(string(t.Predicate)),
			ast.String(encodeTerm(t.Object)),
		},
	}
}

func atomToTriple(a ast.Atom) (Triple, bool) {
	if len(a.Args) != 3 {
		return Triple{}, false
	}
	s, ok1 := a.Args[0].(ast.Constant)
	p, ok2 := a.Args[1].(ast.Constant)
	o, ok3 := a.Args[2].(ast.Constant)
	if !ok1 || !ok2 || !ok3 {
		return Triple{}, false
	}
	sStr, ok1 := constantString(s)
	pStr, ok2 := constantString(p)
	oStr, ok3 := constantString(o)
	if !ok1 || !ok2 || !ok3 {
		return Triple{}, false
	}
	return Triple{
		Subject:   decodeTerm(sStr),
		Predicate: IRI(pStr),
		Object:    decodeTerm(oStr),
	}, true
}

// constantString extracts the string payload of an ast.String constant.
// Mangle's ast.Constant.String() quotes and escapes the value for
// display, so this reads the underlying Symbol field directly rather
// than round-tripping through that representation.
func constantString(c ast.Constant) (string, bool) {
	if c.Type != ast.StringType {
		return "", false
	}
	return c.Symbol, true
}

// Insert adds a triple if absent. Returns true if it was newly added
// (insert is idempotent: inserting an existing triple is a no-op
// returning success with inserted=false).
func (e *Engine) Insert(t Triple) (inserted bool, err error) {
	if t.Predicate == "" || t.Subject == nil || t.Object == nil {
		return false, errs.New(errs.KindInvalidQuery, "triple has a nil or empty field")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	added := e.store.Add(tripleAtom(t))
	return added, nil
}

// InsertBatch adds triples atomically: either all are applied or (on an
// invalid triple) none are, satisfying the batch-insert requirement of
// spec.md §4.4.
func (e *Engine) InsertBatch(triples []Triple) (inserted int, err error) {
	for _, t := range triples {
		if t.Predicate == "" || t.Subject == nil || t.Object == nil {
			return 0, errs.New(errs.KindInvalidQuery, "batch contains an invalid triple")
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range triples {
		if e.store.Add(tripleAtom(t)) {
			inserted++
		}
	}
	return inserted, nil
}

// Delete removes a triple if present. Returns whether it was present.
func (e *Engine) Delete(t Triple) (removed bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.base.Remove(tripleAtom(t)), nil
}

// All returns every triple currently stored. Used by the SPARQL executor
// for basic graph pattern matching and by CONSTRUCT/DESCRIBE.
func (e *Engine) All() []Triple {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []Triple
	_ = e.store.GetFacts(ast.NewQuery(triplePredSym), func(a ast.Atom) error {
		if t, ok := atomToTriple(a); ok {
			out = append(out, t)
		}
		return nil
	})
	return out
}

// Count returns the number of stored triples, for the kg_triples_total
// gauge.
func (e *Engine) Count() int {
	return len(e.All())
}

// Has reports whether a fully-bound triple is present (used by
// ASK { t } and by the idempotence/round-trip checks).
func (e *Engine) Has(t Triple) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Contains(tripleAtom(t))
}

func (e *Engine) log() *logging.Logger { return logging.Get(logging.CategoryKG) }
