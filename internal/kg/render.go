package kg

import (
	"sort"
	"strconv"
)

// Strings renders a QueryResult as spec.md §4.13/§6 require: canonical
// N-Triple-like strings for SELECT bindings, CONSTRUCT/DESCRIBE triples,
// or a single-entry array for ASK.
func (r *QueryResult) Strings() []string {
	switch {
	case r.IsBoolean:
		return []string{strconv.FormatBool(r.Boolean)}
	case r.IsUpdate:
		return []string{"affected:" + strconv.Itoa(r.Affected)}
	case r.Graph != nil:
		out := make([]string, 0, len(r.Graph))
		for _, t := range r.Graph {
			out = append(out, t.String())
		}
		return out
	default:
		out := make([]string, 0, len(r.Solutions))
		for _, b := range r.Solutions {
			out = append(out, renderBinding(b))
		}
		return out
	}
}

func renderBinding(b Binding) string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)

	s := ""
	for i, name := range names {
		if i > 0 {
			s += " "
		}
		s += "?" + name + "=" + b[name].String()
	}
	return s
}
