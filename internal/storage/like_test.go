package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeLikePattern(t *testing.T) {
	tests := map[string]string{
		"":                           "",
		"Jazz night":                 "Jazz night",
		"50% off tickets":            `50\% off tickets`,
		"room_204":                   `room\_204`,
		`C:\venues`:                  `C:\\venues`,
		`%'; DELETE FROM events; --`: `\%'; DELETE FROM events; --`,
		`\%_`:                        `\\\%\_`,
	}
	for in, want := range tests {
		assert.Equal(t, want, EscapeLikePattern(in), "input %q", in)
	}
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, `%rooftop\_party%`, ContainsPattern("rooftop_party"))
	assert.Equal(t, "%%", ContainsPattern(""))
}
