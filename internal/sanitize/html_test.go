package sanitize

import (
	"strings"
	"testing"
)

func TestText_RemovesAllHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "script tag",
			input:    `Hello <script>alert('xss')</script> World`,
			expected: `Hello  World`,
		},
		{
			name:     "inline event handler",
			input:    `<div onclick="alert('xss')">Click me</div>`,
			expected: `Click me`,
		},
		{
			name:     "iframe injection",
			input:    `Safe text <iframe src="evil.com"></iframe> more text`,
			expected: `Safe text  more text`,
		},
		{
			name:     "mixed HTML tags",
			input:    `<b>Bold</b> <i>Italic</i> <a href="http://example.com">Link</a>`,
			expected: `Bold Italic Link`,
		},
		{
			name:     "plain text unchanged",
			input:    `Jazz night at the Blue Room`,
			expected: `Jazz night at the Blue Room`,
		},
		{
			name:     "ampersand kept literal",
			input:    `Rock & Roll`,
			expected: `Rock & Roll`,
		},
		{
			name:     "surrounding whitespace trimmed",
			input:    "  Park  \n",
			expected: `Park`,
		},
		{
			name:     "empty",
			input:    ``,
			expected: ``,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Text(tt.input)
			if result != tt.expected {
				t.Errorf("Text(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestText_CommonXSSVectors(t *testing.T) {
	vectors := []string{
		`<img src=x onerror=alert(1)>`,
		`<svg onload=alert(1)>`,
		`<body onload=alert(1)>`,
		`<a href="javascript:alert(1)">x</a>`,
	}
	for _, v := range vectors {
		result := Text(v)
		if strings.Contains(result, "<") || strings.Contains(result, "onerror") || strings.Contains(result, "javascript:") {
			t.Errorf("Text(%q) = %q still carries markup", v, result)
		}
	}
}

func TestTextPtr(t *testing.T) {
	if TextPtr(nil) != nil {
		t.Fatal("expected nil for nil input")
	}
	in := "<b>Hall</b>"
	out := TextPtr(&in)
	if out == nil || *out != "Hall" {
		t.Fatalf("TextPtr = %v, want Hall", out)
	}
}

func BenchmarkText_ShortString(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Text(`Hello <b>World</b>`)
	}
}
