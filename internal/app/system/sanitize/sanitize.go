// Package sanitize cleans user-supplied free text before it is stored.
// Party names, participant names, and quiz answers are plain text; any
// markup is stripped, not escaped.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = bluemonday.StrictPolicy()

// Text strips all HTML from s and returns the trimmed plain text.
func Text(s string) string {
	// StrictPolicy removes every tag but entity-escapes what remains;
	// unescape to get plain text back.
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(s)))
}
