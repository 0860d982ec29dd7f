// Package validator implements the cheapest gate of the request pipeline:
// pure, allocation-light checks applied before any parser or SPARQL
// engine runs, mirroring the teacher's pre-validator idiom of rejecting
// obviously-bad input before expensive compilation work.
package validator

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/semanticbrowser/kb/internal/errs"
)

// Limits bundles the configurable size caps the three checks enforce.
type Limits struct {
	MaxHTMLSizeBytes int
	MaxQueryLength   int
}

// DefaultLimits matches spec.md's stated defaults (10 MiB HTML, 10000
// char SPARQL).
func DefaultLimits() Limits {
	return Limits{MaxHTMLSizeBytes: 10 * 1024 * 1024, MaxQueryLength: 10000}
}

var sparqlKeywords = map[string]bool{
	"SELECT": true, "INSERT": true, "DELETE": true, "CONSTRUCT": true,
	"ASK": true, "DESCRIBE": true, "PREFIX": true, "BASE": true,
}

// ValidateHTML fails with InputTooLarge if len(html) exceeds the
// configured cap, or SuspiciousContent if it contains a case-insensitive
// byte match of "<script" or "javascript:". Never parses the markup.
func ValidateHTML(html []byte, limits Limits) error {
	if len(html) > limits.MaxHTMLSizeBytes {
		return errs.New(errs.KindInputTooLarge, "html exceeds maximum size")
	}
	lower := bytes.ToLower(html)
	if bytes.Contains(lower, []byte("<script")) || bytes.Contains(lower, []byte("javascript:")) {
		return errs.New(errs.KindSuspiciousContent, "html contains suspicious content")
	}
	return nil
}

// ValidateSPARQL fails with QueryTooLong if text exceeds the configured
// cap, DisallowedOperation unless the first non-whitespace token
// (uppercased) is a recognised SPARQL 1.1 keyword, and
// DangerousOperation if the uppercased text contains "DROP " or
// "CLEAR ALL".
func ValidateSPARQL(text string, limits Limits) error {
	if len(text) > limits.MaxQueryLength {
		return errs.New(errs.KindQueryTooLong, "sparql query exceeds maximum length")
	}
	upper := strings.ToUpper(text)
	if strings.Contains(upper, "DROP ") || strings.Contains(upper, "CLEAR ALL") {
		return errs.New(errs.KindDangerousOperation, "sparql query contains a disallowed destructive operation")
	}
	token := firstToken(strings.TrimSpace(text))
	if !sparqlKeywords[strings.ToUpper(token)] {
		return errs.New(errs.KindDisallowedOperation, "sparql query does not begin with a recognised operation")
	}
	return nil
}

func firstToken(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '{' || r == '('
	})
	if end < 0 {
		return s
	}
	return s[:end]
}

// ValidateURL requires text to parse as an absolute http(s) URL with a
// non-empty host.
func ValidateURL(text string) error {
	u, err := url.Parse(text)
	if err != nil {
		return errs.Wrap(errs.KindInvalidURL, "url does not parse", err)
	}
	if !u.IsAbs() {
		return errs.New(errs.KindInvalidURL, "url must be absolute")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errs.New(errs.KindInvalidURL, "url scheme must be http or https")
	}
	if u.Host == "" {
		return errs.New(errs.KindInvalidURL, "url host must be non-empty")
	}
	return nil
}
