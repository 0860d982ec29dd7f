// Package coreops implements spec.md §4.13's three core operations —
// parse_html, query_kg, browse_url — exactly once, so internal/httpapi,
// internal/mcpserver, and internal/agent's domain tools all dispatch to
// the same validate→execute→render pipeline instead of drifting apart.
package coreops

import (
	"fmt"
	"sort"
	"strings"

	"github.com/semanticbrowser/kb/internal/annotator"
	"github.com/semanticbrowser/kb/internal/browser"
	"github.com/semanticbrowser/kb/internal/htmlparser"
	"github.com/semanticbrowser/kb/internal/kg"
	"github.com/semanticbrowser/kb/internal/validator"
)

// Deps bundles the shared singletons every operation needs. Immutable
// after startup (spec.md §5's "safely shared read-only" resources),
// except Engine, which is internally synchronised.
type Deps struct {
	Engine     *kg.Engine
	Annotator  *annotator.Annotator
	Limits     validator.Limits
	ParserOpts htmlparser.Options
}

// ParseResult is POST /parse's `{title?, entities: string[]}` contract.
type ParseResult struct {
	Title       string
	HasTitle    bool
	Entities    []string
	TriplesInserted int
}

// ParseHTML validates, parses, annotates, and inserts raw HTML, per
// spec.md §4.13's /parse and §4.11's parse_html tool — the same code
// path serves both surfaces.
func ParseHTML(d Deps, raw []byte) (ParseResult, error) {
	if err := validator.ValidateHTML(raw, d.Limits); err != nil {
		return ParseResult{}, err
	}

	doc, err := htmlparser.Parse(raw, d.ParserOpts)
	if err != nil {
		return ParseResult{}, err
	}

	triples := doc.Triples()
	entities := d.Annotator.Annotate(doc.TextPreview)
	triples = append(triples, annotator.Triples(entities)...)

	inserted, err := d.Engine.InsertBatch(triples)
	if err != nil {
		return ParseResult{}, err
	}

	labels := make([]string, 0, len(entities))
	for _, e := range entities {
		labels = append(labels, fmt.Sprintf("%s:%s", e.Label, e.Text))
	}

	return ParseResult{Title: doc.Title, HasTitle: doc.HasTitle, Entities: labels, TriplesInserted: inserted}, nil
}

// QueryKG validates and runs a SPARQL query, rendering the result the
// same way for every caller (spec.md §4.13's /query and §4.11's
// query_kg tool).
func QueryKG(d Deps, query string) ([]string, error) {
	if err := validator.ValidateSPARQL(query, d.Limits); err != nil {
		return nil, err
	}
	result, err := d.Engine.Query(query)
	if err != nil {
		return nil, err
	}
	return result.Strings(), nil
}

// BrowseSnapshot is the ParsedDocument-like shape spec.md §4.13's
// /browse response embeds, with the scored query_matches appended.
type BrowseSnapshot struct {
	Title        string
	Microdata    []htmlparser.MicrodataItem
	JSONLD       []map[string]any
	OpenGraph    map[string]string
	Twitter      map[string]string
	CanonicalURL string
	TextPreview  string
	QueryMatches []string
}

// BrowseResult is POST /browse's `{data, snapshot}` contract.
type BrowseResult struct {
	Data     string
	Snapshot BrowseSnapshot
}

const queryMatchTopN = 5

// BrowseURL navigates tab to url, parses the resulting HTML, inserts its
// triples, and — when query is non-empty — scores TextPreview's
// sentences against query by token overlap, keeping the top N as
// query_matches (spec.md §4.13's /browse contract).
func BrowseURL(d Deps, tab *browser.Tab, url, query string) (BrowseResult, error) {
	if err := validator.ValidateURL(url); err != nil {
		return BrowseResult{}, err
	}

	if _, err := tab.Navigate(url, browser.NavigateOpts{Wait: browser.WaitLoad}); err != nil {
		return BrowseResult{}, err
	}

	html, err := tab.GetContent(browser.ContentHTML)
	if err != nil {
		return BrowseResult{}, err
	}

	doc, err := htmlparser.Parse([]byte(html), d.ParserOpts)
	if err != nil {
		return BrowseResult{}, err
	}

	triples := doc.Triples()
	entities := d.Annotator.Annotate(doc.TextPreview)
	triples = append(triples, annotator.Triples(entities)...)
	if _, err := d.Engine.InsertBatch(triples); err != nil {
		return BrowseResult{}, err
	}

	var matches []string
	if query != "" {
		matches = topMatchingSentences(doc.TextPreview, query, queryMatchTopN)
	}

	return BrowseResult{
		Data: html,
		Snapshot: BrowseSnapshot{
			Title:        doc.Title,
			Microdata:    doc.Microdata,
			JSONLD:       doc.JSONLD,
			OpenGraph:    doc.OpenGraph,
			Twitter:      doc.Twitter,
			CanonicalURL: doc.CanonicalURL,
			TextPreview:  doc.TextPreview,
			QueryMatches: matches,
		},
	}, nil
}

type scoredSentence struct {
	text  string
	score float64
}

// topMatchingSentences splits text into sentences and returns the topN
// with the highest token-overlap score against query, in descending
// score order, ties broken by original position.
func topMatchingSentences(text, query string, topN int) []string {
	sentences := splitSentences(text)
	queryTokens := tokenSet(query)
	if len(queryTokens) == 0 || len(sentences) == 0 {
		return nil
	}

	scored := make([]scoredSentence, 0, len(sentences))
	for _, s := range sentences {
		score := overlapScore(tokenSet(s), queryTokens)
		if score > 0 {
			scored = append(scored, scoredSentence{text: s, score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	if len(scored) > topN {
		scored = scored[:topN]
	}
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.text
	}
	return out
}

func splitSentences(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool { return r == '.' || r == '\n' })
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

func overlapScore(sentence, query map[string]bool) float64 {
	if len(query) == 0 {
		return 0
	}
	hits := 0
	for tok := range query {
		if sentence[tok] {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}
