// Package sanitize is the input-safety collaborator used by the request
// layer. It gates and scrubs free-text fields before they reach the domain
// services, and offers field-level encryption for values that must not be
// stored in clear text. Domain services never import this package.
package sanitize

import (
	"regexp"
	"strings"
)

// Sanitizer checks and scrubs untrusted text input.
type Sanitizer interface {
	IsSafe(input string) bool
	Sanitize(input string) string
}

// New returns the default sanitizer.
func New() Sanitizer {
	return defaultSanitizer{}
}

type defaultSanitizer struct{}

// Fragments that indicate an injection attempt. Matching is substring based
// on the lowercased input, mirroring the gate the API has always applied.
var unsafeFragments = []string{
	"select", "insert", "update", "delete", "drop", "create", "alter", "exec", "union",
	"script", "javascript:", "vbscript:", "onload=", "onerror=", "eval(", "document.cookie",
}

var (
	scriptBlockPattern = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	tagPattern         = regexp.MustCompile(`<[^>]*>`)
)

var scrubReplacer = strings.NewReplacer(
	"javascript:", "",
	"vbscript:", "",
	"onload=", "",
	"onerror=", "",
	"eval(", "",
)

func (defaultSanitizer) IsSafe(input string) bool {
	if input == "" {
		return true
	}
	lower := strings.ToLower(input)
	for _, fragment := range unsafeFragments {
		if strings.Contains(lower, fragment) {
			return false
		}
	}
	return true
}

func (defaultSanitizer) Sanitize(input string) string {
	if input == "" {
		return input
	}
	out := scriptBlockPattern.ReplaceAllString(input, "")
	out = tagPattern.ReplaceAllString(out, "")
	out = scrubReplacer.Replace(out)
	return strings.TrimSpace(out)
}
