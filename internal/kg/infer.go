package kg

import "fmt"

// DefaultMaxInferIterations is the safety-net bound on fixpoint passes
// (spec.md §9 leaves the exact value an open question; DESIGN.md records
// the decision to make it configurable via KGConfig.InferMaxIterations).
const DefaultMaxInferIterations = 32

// inferenceRules are expressed as SELECT+INSERT passes over the same
// SPARQL executor queries run through, not bespoke RDF traversal, per
// spec.md §4.4's explicit requirement.
var inferenceRules = []string{
	// rdfs:subClassOf transitivity
	`SELECT ?a ?c WHERE { ?a <http://www.w3.org/2000/01/rdf-schema#subClassOf> ?b . ?b <http://www.w3.org/2000/01/rdf-schema#subClassOf> ?c }`,
	// rdfs:subPropertyOf transitivity
	`SELECT ?a ?c WHERE { ?a <http://www.w3.org/2000/01/rdf-schema#subPropertyOf> ?b . ?b <http://www.w3.org/2000/01/rdf-schema#subPropertyOf> ?c }`,
	// rdf:type propagation along the class hierarchy
	`SELECT ?x ?c WHERE { ?x <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> ?b . ?b <http://www.w3.org/2000/01/rdf-schema#subClassOf> ?c }`,
}

var inferenceTargets = []IRI{
	RDFSSubClassOf,
	RDFSSubPropertyOf,
	RDFType,
}

// InferRules materialises the transitive closure of rdfs:subClassOf and
// rdfs:subPropertyOf plus rdf:type propagation, iterating the three rules
// to fixpoint. Returns the total number of newly inserted triples and
// the number of passes performed.
func (e *Engine) InferRules(maxIterations int) (inserted int, passes int, err error) {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxInferIterations
	}
	for passes = 0; passes < maxIterations; passes++ {
		roundInserted := 0
		for i, rule := range inferenceRules {
			result, qerr := e.Query(rule)
			if qerr != nil {
				return inserted, passes, fmt.Errorf("kg: inference rule %d: %w", i, qerr)
			}
			target := inferenceTargets[i]
			subjectVar := "a"
			if i == 2 {
				subjectVar = "x"
			}
			for _, b := range result.Solutions {
				a, ok1 := b[subjectVar]
				c, ok2 := b["c"]
				if !ok1 || !ok2 {
					continue
				}
				added, insErr := e.Insert(Triple{Subject: a, Predicate: target, Object: c})
				if insErr != nil {
					return inserted, passes, insErr
				}
				if added {
					roundInserted++
				}
			}
		}
		inserted += roundInserted
		if roundInserted == 0 {
			passes++
			break
		}
	}
	return inserted, passes, nil
}
