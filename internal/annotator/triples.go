package annotator

import (
	"strconv"

	"github.com/semanticbrowser/kb/internal/kg"
)

const entityNamespace = "http://semanticbrowser.dev/entity#"

var blankNodeSeq int

func nextBlankNode() kg.BlankNode {
	blankNodeSeq++
	return kg.BlankNode("entity" + strconv.Itoa(blankNodeSeq))
}

// Triples emits each Entity as `b rdf:type <label-iri>; b rdfs:label
// "text"; b :confidence "<conf>"^^xsd:decimal`, per spec.md §4.3.
func Triples(entities []Entity) []kg.Triple {
	var out []kg.Triple
	for _, e := range entities {
		b := nextBlankNode()
		out = append(out,
			kg.Triple{Subject: b, Predicate: kg.RDFType, Object: kg.IRI(entityNamespace + e.Label)},
			kg.Triple{Subject: b, Predicate: kg.RDFSLabel, Object: kg.Literal{Value: e.Text}},
			kg.Triple{Subject: b, Predicate: kg.AnnotConfidence, Object: kg.Literal{
				Value:    strconv.FormatFloat(e.Confidence, 'f', -1, 64),
				Datatype: "http://www.w3.org/2001/XMLSchema#decimal",
			}},
		)
	}
	return out
}
