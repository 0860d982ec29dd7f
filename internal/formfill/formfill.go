// Package formfill implements the Smart Form Filler of spec.md §4.9: it
// discovers form fields on a live page through the Browser Pool's
// evaluate primitive, scores a hint→value map against each field's
// descriptor text, and fills the best unambiguous matches.
package formfill

import (
	"sort"
	"strings"

	"github.com/semanticbrowser/kb/internal/browser"
)

// FieldDescriptor is one discovered form control.
type FieldDescriptor struct {
	Selector    string `json:"selector"`
	Tag         string `json:"tag"`
	Name        string `json:"name"`
	ID          string `json:"id"`
	Placeholder string `json:"placeholder"`
	AriaLabel   string `json:"ariaLabel"`
	LabelText   string `json:"labelText"`
}

// descriptorText concatenates every descriptive string on a field, for
// scoring.
func (f FieldDescriptor) descriptorText() string {
	return strings.ToLower(strings.Join([]string{f.Name, f.ID, f.Placeholder, f.AriaLabel, f.LabelText}, " "))
}

// discoverScript walks <input>/<select>/<textarea> elements, building a
// unique CSS selector (nth-of-type path) and the surrounding <label>
// text for each.
const discoverScript = `() => {
	function selectorFor(el) {
		if (el.id) return '#' + CSS.escape(el.id);
		var parts = [];
		var node = el;
		while (node && node.nodeType === 1 && node !== document.body) {
			var tag = node.tagName.toLowerCase();
			var parent = node.parentElement;
			var index = 1;
			if (parent) {
				var sibling = node;
				while ((sibling = sibling.previousElementSibling) != null) {
					if (sibling.tagName === node.tagName) index++;
				}
			}
			parts.unshift(tag + ':nth-of-type(' + index + ')');
			node = parent;
		}
		return parts.join(' > ');
	}
	function labelFor(el) {
		if (el.id) {
			var lbl = document.querySelector('label[for="' + el.id + '"]');
			if (lbl) return lbl.innerText || '';
		}
		var parent = el.closest('label');
		return parent ? (parent.innerText || '') : '';
	}
	var out = [];
	document.querySelectorAll('input, select, textarea').forEach(function(el) {
		var type = (el.getAttribute('type') || '').toLowerCase();
		if (type === 'hidden' || type === 'submit' || type === 'button') return;
		out.push({
			selector: selectorFor(el),
			tag: el.tagName.toLowerCase(),
			name: el.getAttribute('name') || '',
			id: el.id || '',
			placeholder: el.getAttribute('placeholder') || '',
			ariaLabel: el.getAttribute('aria-label') || '',
			labelText: labelFor(el)
		});
	});
	return out;
}`

// DiscoverFields enumerates fillable form controls on the tab's current
// page.
func DiscoverFields(tab *browser.Tab) ([]FieldDescriptor, error) {
	var fields []FieldDescriptor
	if err := tab.EvaluateInto(discoverScript, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// Report is the result of a Fill call, per spec.md §4.9.
type Report struct {
	Filled      []string          `json:"filled"`
	Failed      map[string]string `json:"failed"`
	SuccessRate float64           `json:"success_rate"`
}

// score combines case-insensitive substring containment with token-set
// overlap between hint and a field's descriptor text.
func score(hint string, field FieldDescriptor) float64 {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return 0
	}
	text := field.descriptorText()
	if text == "" {
		return 0
	}

	var substringScore float64
	if strings.Contains(text, hint) || strings.Contains(hint, text) {
		substringScore = 1
	}

	hintTokens := tokenSet(hint)
	textTokens := tokenSet(text)
	overlapScore := jaccard(hintTokens, textTokens)

	return 0.5*substringScore + 0.5*overlapScore
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// matchThreshold is the minimum score a candidate field must clear to be
// considered a match.
const matchThreshold = 0.3

// match picks the single best-scoring field for hint among fields not
// already claimed by a higher-priority hint. Ties (within epsilon) are
// reported as ambiguous rather than filled, per spec.md §4.9.
func match(hint string, fields []FieldDescriptor, claimed map[string]bool) (FieldDescriptor, string, bool) {
	type candidate struct {
		field FieldDescriptor
		score float64
	}
	var candidates []candidate
	for _, f := range fields {
		if claimed[f.Selector] {
			continue
		}
		s := score(hint, f)
		if s >= matchThreshold {
			candidates = append(candidates, candidate{f, s})
		}
	}
	if len(candidates) == 0 {
		return FieldDescriptor{}, "no matching field found", false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	if len(candidates) > 1 && candidates[0].score-candidates[1].score < 1e-9 {
		return FieldDescriptor{}, "ambiguous match: multiple fields tied for best score", false
	}
	return candidates[0].field, "", true
}

// Fill discovers the page's fields, matches each hint to its best field,
// and fills every unambiguous match through the Browser Pool's Fill
// primitive.
func Fill(tab *browser.Tab, hints map[string]string) (Report, error) {
	fields, err := DiscoverFields(tab)
	if err != nil {
		return Report{}, err
	}

	report := Report{Failed: make(map[string]string)}
	claimed := make(map[string]bool)

	// Deterministic iteration order so ties/claims are reproducible.
	orderedHints := make([]string, 0, len(hints))
	for hint := range hints {
		orderedHints = append(orderedHints, hint)
	}
	sort.Strings(orderedHints)

	for _, hint := range orderedHints {
		value := hints[hint]
		field, reason, ok := match(hint, fields, claimed)
		if !ok {
			report.Failed[hint] = reason
			continue
		}
		if err := tab.Fill(field.Selector, value); err != nil {
			report.Failed[hint] = err.Error()
			continue
		}
		claimed[field.Selector] = true
		report.Filled = append(report.Filled, hint)
	}

	total := len(hints)
	if total > 0 {
		report.SuccessRate = float64(len(report.Filled)) / float64(total)
	}
	return report, nil
}
