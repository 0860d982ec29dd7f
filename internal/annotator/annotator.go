// Package annotator tokenises text and produces typed Entity spans,
// via an ML strategy satisfying a tensor-I/O contract (spec.md's
// Non-goal excludes concrete ONNX model architectures, so this package
// defines only that contract) or a regex fallback that is always
// available, per spec.md §4.3.
package annotator

import (
	"regexp"
	"strings"

	"github.com/semanticbrowser/kb/internal/logging"
)

// Entity is spec.md §3's typed text span.
type Entity struct {
	Start      int
	End        int
	Label      string
	Text       string
	Confidence float64
}

// MLStrategy is the tensor-I/O contract an ONNX NER model + tokenizer
// would satisfy: tokenise, run the model, return per-token class logits
// alongside the byte offsets the tokenizer preserved. No concrete ONNX
// runtime binding exists in the dependency set available to this
// module (see DESIGN.md); this interface exists so a real one can be
// plugged in without touching the collapsing/merging logic below.
type MLStrategy interface {
	// Infer returns, for a window of text, one TokenPrediction per
	// token in source order.
	Infer(windowText string) ([]TokenPrediction, error)
	// MaxTokens and OverlapTokens configure window splitting.
	MaxTokens() int
	OverlapTokens() int
}

// TokenPrediction is one token's BIO-tagged class prediction plus its
// byte offsets within the window it was produced from.
type TokenPrediction struct {
	Start      int
	End        int
	Tag        string // e.g. "B-PERSON", "I-PERSON", "O"
	Confidence float64
}

// Annotator selects between an ML strategy and the regex fallback per
// spec.md §4.3's selection rule: use ML only if a strategy was
// successfully constructed at startup.
type Annotator struct {
	ml MLStrategy
}

// New builds an Annotator. ml may be nil, in which case every call uses
// the regex fallback. Failure to construct ml upstream must be logged
// by the caller, not treated as fatal (spec.md §4.3).
func New(ml MLStrategy) *Annotator {
	return &Annotator{ml: ml}
}

// Annotate tokenises text and returns non-overlapping typed spans.
func (a *Annotator) Annotate(text string) []Entity {
	if a.ml != nil {
		entities, err := a.annotateML(text)
		if err != nil {
			logging.Get(logging.CategoryAnnotator).Warn("ML annotation failed, falling back to regex: %v", err)
		} else {
			return entities
		}
	}
	return annotateRegex(text)
}

func (a *Annotator) annotateML(text string) ([]Entity, error) {
	maxTok := a.ml.MaxTokens()
	overlap := a.ml.OverlapTokens()
	if maxTok <= 0 {
		maxTok = 512
	}
	if overlap < 0 || overlap >= maxTok {
		overlap = 64
	}

	windows := splitWindows(text, maxTok, overlap)
	var all []Entity
	for _, w := range windows {
		preds, err := a.ml.Infer(text[w.start:w.end])
		if err != nil {
			return nil, err
		}
		spans := collapseBIO(preds, w.start, text)
		all = append(all, spans...)
	}
	return mergeOverlapping(all), nil
}

type window struct{ start, end int }

// splitWindows partitions text into overlapping byte-offset windows.
// Token counting is approximated by whitespace-delimited words since
// the actual tokenizer is plugged in via MLStrategy; MaxTokens/
// OverlapTokens are expressed in that approximate unit.
func splitWindows(text string, maxTokens, overlapTokens int) []window {
	if text == "" {
		return nil
	}
	words := wordOffsets(text)
	if len(words) <= maxTokens {
		return []window{{0, len(text)}}
	}
	var out []window
	i := 0
	for i < len(words) {
		end := i + maxTokens
		if end > len(words) {
			end = len(words)
		}
		out = append(out, window{start: words[i].start, end: words[end-1].end})
		if end == len(words) {
			break
		}
		i = end - overlapTokens
		if i <= 0 {
			i = end
		}
	}
	return out
}

type offset struct{ start, end int }

func wordOffsets(text string) []offset {
	var out []offset
	inWord := false
	start := 0
	for i, r := range text {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if !isSpace && !inWord {
			start = i
			inWord = true
		}
		if isSpace && inWord {
			out = append(out, offset{start, i})
			inWord = false
		}
	}
	if inWord {
		out = append(out, offset{start, len(text)})
	}
	return out
}

// collapseBIO merges contiguous B-/I- tagged tokens into spans, ending a
// span at "O" or a differently-typed "B-", per spec.md §4.3. windowOffset
// shifts token offsets (relative to the window) back into document
// coordinates.
func collapseBIO(preds []TokenPrediction, windowOffset int, fullText string) []Entity {
	var out []Entity
	var cur *Entity
	var curConfSum float64
	var curConfN int

	flush := func() {
		if cur != nil {
			cur.Confidence = curConfSum / float64(curConfN)
			out = append(out, *cur)
			cur = nil
			curConfSum, curConfN = 0, 0
		}
	}

	for _, p := range preds {
		label, kind := splitTag(p.Tag)
		start := windowOffset + p.Start
		end := windowOffset + p.End
		switch kind {
		case "O", "":
			flush()
		case "B":
			flush()
			cur = &Entity{Start: start, End: end, Label: label, Text: safeSlice(fullText, start, end)}
			curConfSum, curConfN = p.Confidence, 1
		case "I":
			if cur != nil && cur.Label == label {
				cur.End = end
				cur.Text = safeSlice(fullText, cur.Start, cur.End)
				curConfSum += p.Confidence
				curConfN++
			} else {
				flush()
				cur = &Entity{Start: start, End: end, Label: label, Text: safeSlice(fullText, start, end)}
				curConfSum, curConfN = p.Confidence, 1
			}
		}
	}
	flush()
	return out
}

func splitTag(tag string) (label, kind string) {
	if tag == "" || tag == "O" {
		return "", "O"
	}
	parts := strings.SplitN(tag, "-", 2)
	if len(parts) != 2 {
		return "", "O"
	}
	return parts[1], parts[0]
}

func safeSlice(s string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(s) {
		end = len(s)
	}
	if start >= end {
		return ""
	}
	return s[start:end]
}

// mergeOverlapping resolves spans produced by overlapping windows,
// keeping the higher-confidence span wherever two spans overlap.
func mergeOverlapping(entities []Entity) []Entity {
	if len(entities) == 0 {
		return nil
	}
	kept := make([]Entity, 0, len(entities))
	for _, e := range entities {
		displaced := -1
		conflict := false
		for i, k := range kept {
			if e.Start < k.End && k.Start < e.End {
				conflict = true
				if e.Confidence > k.Confidence {
					displaced = i
				}
				break
			}
		}
		if !conflict {
			kept = append(kept, e)
		} else if displaced >= 0 {
			kept[displaced] = e
		}
	}
	return kept
}

// capitalizedPhrase matches runs of two or more capitalised words, the
// regex fallback's generic ENTITY pattern.
var capitalizedPhrase = regexp.MustCompile(`\b([A-Z][a-zA-Z]*(?:\s+[A-Z][a-zA-Z]*)+)\b`)

// annotateRegex is always available: extracts capitalised multi-word
// noun phrases as generic ENTITY spans with confidence 0.5, per
// spec.md §4.3.
func annotateRegex(text string) []Entity {
	matches := capitalizedPhrase.FindAllStringIndex(text, -1)
	out := make([]Entity, 0, len(matches))
	for _, m := range matches {
		out = append(out, Entity{
			Start:      m[0],
			End:        m[1],
			Label:      "ENTITY",
			Text:       text[m[0]:m[1]],
			Confidence: 0.5,
		})
	}
	return out
}
