package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// StrictPolicy removes all HTML tags and attributes.
var StrictPolicy = bluemonday.StrictPolicy()

// Text strips all HTML tags and returns trimmed plain text. Entities escaped
// by the policy are decoded again so "Rock & Roll" is stored as typed.
// Use for: event titles, descriptions, locations, user names.
func Text(input string) string {
	return strings.TrimSpace(html.UnescapeString(StrictPolicy.Sanitize(input)))
}

// TextPtr applies Text to an optional value.
func TextPtr(input *string) *string {
	if input == nil {
		return nil
	}
	out := Text(*input)
	return &out
}
