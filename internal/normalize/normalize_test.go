package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "collapses internal whitespace",
			in:   "hello   world",
			want: "hello world",
		},
		{
			name: "trims leading and trailing whitespace",
			in:   "  hello world \n",
			want: "hello world",
		},
		{
			name: "collapses tabs and newlines",
			in:   "one\ttwo\nthree\r\nfour",
			want: "one two three four",
		},
		{
			name: "nfkc folds fullwidth characters",
			in:   "ＡＢＣ",
			want: "ABC",
		},
		{
			name: "nfkc folds ligatures",
			in:   "ﬁre",
			want: "fire",
		},
		{
			name: "nfkc composes combining marks",
			in:   "café",
			want: "café",
		},
		{
			name: "empty string",
			in:   "",
			want: "",
		},
		{
			name: "whitespace only",
			in:   " \t\n ",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.in))
		})
	}
}

func TestText_Idempotent(t *testing.T) {
	inputs := []string{
		"  The  quick\tbrown fox. ",
		"ＴＥＳＴ ﬁxture",
		"café au lait",
		"plain ascii already normalized",
	}

	for _, in := range inputs {
		once := Text(in)
		assert.Equal(t, once, Text(once), "normalization must be idempotent for %q", in)
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("  hello  world ", "hello world"))
	assert.False(t, Equal("hello world", "hello  world"))
	assert.False(t, Equal("hello world", " hello world"))
}
