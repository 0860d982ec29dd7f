package kg

import (
	"sort"
	"strconv"

	"github.com/semanticbrowser/kb/internal/mlinference"
)

// mlBlankSeq numbers the reification blank nodes MLInfer mints, separate
// from any other blank-node sequence in the process.
var mlBlankSeq int

func nextMLPredictionNode() BlankNode {
	mlBlankSeq++
	return BlankNode("mlpred" + strconv.Itoa(mlBlankSeq))
}

// MLInfer runs spec.md §4.4's ml_inference() pass: it takes sampleSize
// head entities from the embedding model's entity table
// (predictor.RandomSample), not from the store, so a head need not
// appear in the store. It scores every (h, r) pair drawn from the
// sample and the embedding model's known relation set against candidate
// tails through predictor, keeps the top topK candidates per pair with
// confidence ≥ threshold, skips any (h, r, t) already present, and
// inserts up to maxInserts new triples. predictor is stateless and does
// not own the store (spec.md §4.5); MLInfer is the orchestration that
// does.
//
// Each inserted triple is additionally annotated with a reified
// <ml:confidence> fact — a fresh blank node carrying rdf:subject,
// rdf:predicate, rdf:object back to the triple plus its confidence
// score — mirroring internal/annotator/triples.go's blank-node
// annotation idiom rather than asserting confidence directly on the
// subject, since a subject can carry more than one predicted tail.
func (e *Engine) MLInfer(predictor *mlinference.Engine, sampleSize, topK int, threshold float64, maxInserts int) (inserted int, err error) {
	if sampleSize <= 0 {
		sampleSize = 100
	}
	if topK <= 0 {
		topK = 5
	}
	if threshold <= 0 {
		threshold = 0.7
	}
	if maxInserts <= 0 {
		maxInserts = 1000
	}

	knownTails := map[IRI]map[string]bool{} // key: h|r, value: set of known tail IRIs
	for _, t := range e.All() {
		if h, ok := t.Subject.(IRI); ok {
			if tl, ok := t.Object.(IRI); ok {
				key := h + "|" + t.Predicate
				if knownTails[key] == nil {
					knownTails[key] = map[string]bool{}
				}
				knownTails[key][string(tl)] = true
			}
		}
	}

	// The known relation set is the embedding model's, not the store's:
	// link prediction must work against relations the store hasn't yet
	// asserted any instance of.
	relations := make([]IRI, len(predictor.Relations.RowToIRI))
	for i, r := range predictor.Relations.RowToIRI {
		relations[i] = IRI(r)
	}
	sort.Slice(relations, func(i, j int) bool { return relations[i] < relations[j] })

	heads := predictor.RandomSample(sampleSize)

	for _, h := range heads {
		for _, r := range relations {
			if inserted >= maxInserts {
				return inserted, nil
			}
			exclude := knownTails[IRI(h)+"|"+r]
			predictions, perr := predictor.PredictTails(h, string(r), topK, threshold, exclude, nil)
			if perr != nil {
				continue
			}
			for _, p := range predictions {
				if inserted >= maxInserts {
					return inserted, nil
				}
				candidate := Triple{Subject: IRI(p.Head), Predicate: r, Object: IRI(p.Tail)}
				if e.Has(candidate) {
					continue
				}
				added, insErr := e.Insert(candidate)
				if insErr != nil {
					return inserted, insErr
				}
				if !added {
					continue
				}
				if annErr := e.annotateMLConfidence(candidate, p.Confidence); annErr != nil {
					return inserted, annErr
				}
				inserted++
			}
		}
	}
	return inserted, nil
}

// annotateMLConfidence records the provenance of an ML-predicted triple
// via a reified fact: a blank node linked to the triple's subject,
// predicate, and object, carrying the prediction's confidence.
func (e *Engine) annotateMLConfidence(t Triple, confidence float64) error {
	b := nextMLPredictionNode()
	quad := []Triple{
		{Subject: b, Predicate: RDFSubject, Object: t.Subject},
		{Subject: b, Predicate: RDFPredicate, Object: IRI(t.Predicate)},
		{Subject: b, Predicate: RDFObject, Object: t.Object},
		{Subject: b, Predicate: MLConfidence, Object: Literal{
			Value:    strconv.FormatFloat(confidence, 'f', -1, 64),
			Datatype: "http://www.w3.org/2001/XMLSchema#decimal",
		}},
	}
	_, err := e.InsertBatch(quad)
	return err
}
