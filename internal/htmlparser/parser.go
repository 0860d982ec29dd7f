// Package htmlparser turns validated HTML bytes into a ParsedDocument:
// title, microdata items, JSON-LD objects, Open Graph/Twitter maps, a
// canonical URL, and a whitespace-collapsed text preview. Parsing never
// panics and is tolerant of malformed markup, per spec.md §4.2 — the
// tree-building work itself is delegated to golang.org/x/net/html, the
// ecosystem's standard tolerant HTML5 parser, rather than a hand-rolled
// tokenizer.
package htmlparser

import (
	"encoding/json"
	"strings"
	"unicode"

	"golang.org/x/net/html"

	"github.com/semanticbrowser/kb/internal/logging"
)

// MicrodataItem is one itemscope subtree, flattened to its itemtype and
// a multi-valued itemprop map. Nested items (itemprop value is itself an
// itemscope) are carried inline and flattened to blank nodes at triple
// emission time.
type MicrodataItem struct {
	ItemType   string
	Properties map[string][]PropertyValue
}

// PropertyValue is either a text value or a nested MicrodataItem.
type PropertyValue struct {
	Text   string
	Nested *MicrodataItem
}

// ParsedDocument is the result of parsing one HTML document.
type ParsedDocument struct {
	Title        string
	HasTitle     bool
	Microdata    []MicrodataItem
	JSONLD       []map[string]any
	OpenGraph    map[string]string
	Twitter      map[string]string
	CanonicalURL string
	TextPreview  string
}

// Options configures parsing limits.
type Options struct {
	TextPreviewCapBytes int
}

// DefaultOptions matches spec.md's stated 4 KiB text preview default.
func DefaultOptions() Options {
	return Options{TextPreviewCapBytes: 4 * 1024}
}

// Parse builds a ParsedDocument from raw bytes, assumed UTF-8 (the
// underlying tokenizer falls back to a lossy decode on invalid bytes, it
// never errors on malformed input).
func Parse(raw []byte, opts Options) (*ParsedDocument, error) {
	timer := logging.StartTimer(logging.CategoryParser, "Parse")
	defer timer.Stop()

	root, err := html.Parse(strings.NewReader(string(raw)))
	if err != nil {
		// x/net/html's tree builder is tolerant; Parse only errors on
		// I/O failures from the reader, which cannot happen here.
		return nil, err
	}

	doc := &ParsedDocument{
		OpenGraph: map[string]string{},
		Twitter:   map[string]string{},
	}

	var textBuilder strings.Builder
	walk(root, doc, &textBuilder)

	doc.TextPreview = collapseWhitespace(textBuilder.String())
	if len(doc.TextPreview) > opts.TextPreviewCapBytes {
		doc.TextPreview = doc.TextPreview[:opts.TextPreviewCapBytes]
	}
	return doc, nil
}

func walk(n *html.Node, doc *ParsedDocument, text *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "title":
			if !doc.HasTitle {
				if t := strings.TrimSpace(textContent(n)); t != "" {
					doc.Title = t
					doc.HasTitle = true
				}
			}
		case "script":
			if attr(n, "type") == "application/ld+json" {
				parseJSONLD(textContent(n), doc)
			}
		case "meta":
			parseMeta(n, doc)
		case "link":
			if relIs(n, "canonical") {
				if href := attr(n, "href"); href != "" {
					doc.CanonicalURL = href
				}
			}
		case "style", "noscript":
			return // never contributes to the text preview
		}

		if hasAttr(n, "itemscope") && !hasAttr(n, "itemprop") {
			// A top-level itemscope (not itself nested as an itemprop
			// value) becomes a document-level microdata item. Nested
			// itemscopes are collected by parseItem and are not walked
			// again here.
			item := parseItem(n)
			doc.Microdata = append(doc.Microdata, *item)
			return
		}
	}

	if n.Type == html.TextNode {
		if s := n.Data; strings.TrimSpace(s) != "" {
			text.WriteString(s)
			text.WriteString(" ")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, doc, text)
	}
}

// parseItem walks an itemscope subtree, collecting its itemtype and a
// flat itemprop -> value map. Nested itemscope subtrees are recursed
// into and carried as PropertyValue.Nested rather than walked again by
// the caller.
func parseItem(n *html.Node) *MicrodataItem {
	item := &MicrodataItem{Properties: map[string][]PropertyValue{}}
	if t := attr(n, "itemtype"); t != "" {
		item.ItemType = t
	}
	collectProps(n, item, true)
	return item
}

func collectProps(n *html.Node, item *MicrodataItem, root bool) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if hasAttr(c, "itemscope") {
			if prop := attr(c, "itemprop"); prop != "" {
				nested := parseItem(c)
				item.Properties[prop] = append(item.Properties[prop], PropertyValue{Nested: nested})
			}
			// A nested itemscope's own itemprop descendants belong to
			// the nested item, not this one: do not recurse further.
			continue
		}
		if prop := attr(c, "itemprop"); prop != "" {
			item.Properties[prop] = append(item.Properties[prop], PropertyValue{Text: itempropValue(c)})
		}
		collectProps(c, item, false)
	}
}

// itempropValue extracts the value of an itemprop element per the
// microdata spec's per-tag value rules (content/href/src override text).
func itempropValue(n *html.Node) string {
	switch n.Data {
	case "meta":
		return attr(n, "content")
	case "a", "area", "link":
		return attr(n, "href")
	case "img", "audio", "video", "source", "track", "embed", "iframe":
		return attr(n, "src")
	case "time":
		if dt := attr(n, "datetime"); dt != "" {
			return dt
		}
	case "data", "meter":
		if v := attr(n, "value"); v != "" {
			return v
		}
	}
	return strings.TrimSpace(textContent(n))
}

func parseJSONLD(raw string, doc *ParsedDocument) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		// Malformed JSON-LD in one block must not abort extraction of
		// others; drop it with a warning.
		logging.Get(logging.CategoryParser).Warn("dropping malformed json-ld block: %v", err)
		return
	}
	doc.JSONLD = append(doc.JSONLD, v)
}

func parseMeta(n *html.Node, doc *ParsedDocument) {
	content := attr(n, "content")
	if content == "" {
		return
	}
	if prop := attr(n, "property"); strings.HasPrefix(prop, "og:") {
		doc.OpenGraph[prop] = content // last write wins
		return
	}
	if name := attr(n, "name"); strings.HasPrefix(name, "twitter:") {
		doc.Twitter[name] = content
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return true
		}
	}
	return false
}

func relIs(n *html.Node, rel string) bool {
	for _, r := range strings.Fields(attr(n, "rel")) {
		if strings.EqualFold(r, rel) {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walkText func(*html.Node)
	walkText = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walkText(c)
		}
	}
	walkText(n)
	return b.String()
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
			}
			lastSpace = true
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}
