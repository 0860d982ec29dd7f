package htmlparser

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/semanticbrowser/kb/internal/kg"
)

// schemaOrgPrefix is prepended to bare itemprop names that are not
// already absolute IRIs, mirroring how schema.org properties are
// typically referenced without a namespace prefix in microdata markup.
const schemaOrgPrefix = "http://schema.org/"

var blankNodeSeq int

func nextBlankNode() string {
	blankNodeSeq++
	return "_:b" + strconv.Itoa(blankNodeSeq)
}

// Triples lowers a ParsedDocument's microdata items and JSON-LD blocks
// into kg.Triple values. Microdata items become blank nodes; JSON-LD
// objects are flattened per a pragmatic subset of the JSON-LD 1.1
// expansion algorithm (string-keyed properties under "@id"/"@type").
func (doc *ParsedDocument) Triples() []kg.Triple {
	var out []kg.Triple
	for i := range doc.Microdata {
		out = append(out, microdataTriples(&doc.Microdata[i])...)
	}
	for _, obj := range doc.JSONLD {
		out = append(out, jsonLDTriples(obj, "")...)
	}
	return out
}

func propertyIRI(prop string) string {
	if strings.HasPrefix(prop, "http://") || strings.HasPrefix(prop, "https://") {
		return prop
	}
	return schemaOrgPrefix + prop
}

func microdataTriples(item *MicrodataItem) []kg.Triple {
	subject := nextBlankNode()
	var out []kg.Triple
	if item.ItemType != "" {
		out = append(out, kg.Triple{
			Subject:   kg.BlankNode(subject),
			Predicate: kg.IRI("http://www.w3.org/1999/02/22-rdf-syntax-ns#type"),
			Object:    kg.IRI(item.ItemType),
		})
	}
	for prop, values := range item.Properties {
		pred := propertyIRI(prop)
		for _, v := range values {
			if v.Nested != nil {
				nestedTriples := microdataTriples(v.Nested)
				if len(nestedTriples) == 0 {
					continue
				}
				nestedSubject := nestedTriples[0].Subject
				out = append(out, kg.Triple{
					Subject:   kg.BlankNode(subject),
					Predicate: kg.IRI(pred),
					Object:    nestedSubject,
				})
				out = append(out, nestedTriples...)
				continue
			}
			out = append(out, kg.Triple{
				Subject:   kg.BlankNode(subject),
				Predicate: kg.IRI(pred),
				Object:    kg.Literal{Value: v.Text},
			})
		}
	}
	return out
}

// jsonLDTriples flattens one JSON-LD node object. subjectHint, if
// non-empty, is the already-known IRI/blank-node id for this node
// (used when recursing into a nested object reached via a property).
func jsonLDTriples(obj map[string]any, subjectHint string) []kg.Triple {
	subject := subjectHint
	if subject == "" {
		if id, ok := obj["@id"].(string); ok && id != "" {
			subject = id
		} else {
			subject = nextBlankNode()
		}
	}

	var subjTerm kg.Term
	if len(subject) >= 2 && subject[:2] == "_:" {
		subjTerm = kg.BlankNode(subject)
	} else {
		subjTerm = kg.IRI(subject)
	}

	var out []kg.Triple
	if t, ok := obj["@type"]; ok {
		for _, tv := range asStringSlice(t) {
			out = append(out, kg.Triple{
				Subject:   subjTerm,
				Predicate: kg.IRI("http://www.w3.org/1999/02/22-rdf-syntax-ns#type"),
				Object:    kg.IRI(tv),
			})
		}
	}

	for key, val := range obj {
		if key == "@id" || key == "@type" || key == "@context" {
			continue
		}
		pred := propertyIRI(key)
		out = append(out, jsonLDValueTriples(subjTerm, pred, val)...)
	}
	return out
}

func jsonLDValueTriples(subject kg.Term, pred string, val any) []kg.Triple {
	var out []kg.Triple
	switch v := val.(type) {
	case []any:
		for _, item := range v {
			out = append(out, jsonLDValueTriples(subject, pred, item)...)
		}
	case map[string]any:
		nested := jsonLDTriples(v, "")
		if len(nested) == 0 {
			// An empty/unrecognised nested object still needs a subject
			// so the parent link is not silently dropped.
			nested = []kg.Triple{}
		}
		var nestedSubject kg.Term
		if len(nested) > 0 {
			nestedSubject = nested[0].Subject
		} else if id, ok := v["@id"].(string); ok {
			nestedSubject = kg.IRI(id)
		} else {
			nestedSubject = kg.BlankNode(nextBlankNode())
		}
		out = append(out, kg.Triple{Subject: subject, Predicate: kg.IRI(pred), Object: nestedSubject})
		out = append(out, nested...)
	case string, float64, bool, json.Number:
		out = append(out, kg.Triple{
			Subject:   subject,
			Predicate: kg.IRI(pred),
			Object:    kg.Literal{Value: fmt.Sprintf("%v", v)},
		})
	case nil:
		// null values carry no triple.
	}
	return out
}

func asStringSlice(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
