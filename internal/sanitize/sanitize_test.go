package sanitize_test

import (
	"regexp"
	"strings"
	"testing"

	"github.com/hbomb79/Siphon/internal/sanitize"
	"github.com/labstack/gommon/random"
	"github.com/stretchr/testify/assert"
)

var safeFilename = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

func Test_Filename(t *testing.T) {
	tests := []struct {
		summary  string
		input    string
		expected string
	}{
		{"plain title", "My Video", "My_Video"},
		{"mixed punctuation and emoji", "Hello, \"World\" — Mix™ 😀", "Hello_World_-_MixTM"},
		{"diacritics are stripped", "Café Déjà Vu", "Cafe_Deja_Vu"},
		{"smart quotes become underscores", "“Quoted” ‘title’", "Quoted_title"},
		{"en dash and ellipsis", "Part 1 – The End…", "Part_1_-_The_End."},
		{"degree sign", "30° Weather", "30deg_Weather"},
		{"bullet", "One • Two", "One_Two"},
		{"reserved characters removed", `a<b>c:d"e/f\g|h?i*j`, "abcdefghij"},
		{"control characters removed", "line\none\ttab\rret", "lineonetabret"},
		{"underscores collapsed and trimmed", "__a   b__", "a_b"},
		{"empty input", "", "download"},
		{"only illegal characters", "???***", "download"},
		{"only non-ascii", "日本語", "download"},
	}

	for _, tt := range tests {
		t.Run(tt.summary, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitize.Filename(tt.input))
		})
	}
}

func Test_Filename_Truncates(t *testing.T) {
	long := strings.Repeat("a", 250)
	out := sanitize.Filename(long)
	assert.Len(t, out, sanitize.MaxLength)

	// Cut landing right after a separator must not leave a trailing underscore
	tricky := strings.Repeat("a", sanitize.MaxLength-1) + " b"
	out = sanitize.Filename(tricky)
	assert.Equal(t, strings.Repeat("a", sanitize.MaxLength-1), out)
}

func Test_Filename_Properties(t *testing.T) {
	inputs := []string{
		"", " ", "___", "ümlaut ñ ç", "tab\there", "emoji 🎵🎶 mix", "a/b\\c", "“”‘’–—…•°",
		strings.Repeat("word ", 100), strings.Repeat("é", 300),
	}
	for i := 0; i < 50; i++ {
		inputs = append(inputs, random.String(uint8(1+i*5%250)))
	}

	for _, in := range inputs {
		out := sanitize.Filename(in)
		assert.Regexpf(t, safeFilename, out, "Filename(%q) produced unsafe characters", in)
		assert.LessOrEqualf(t, len(out), sanitize.MaxLength, "Filename(%q) exceeds max length", in)
		assert.NotEmptyf(t, out, "Filename(%q) is empty", in)
		assert.Equalf(t, out, sanitize.Filename(out), "Filename(%q) is not idempotent", in)
	}
}
