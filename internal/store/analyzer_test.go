package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "deploy checklist", "deploy checklist"},
		{"collapses whitespace", "  deploy \t checklist \n", "deploy checklist"},
		{"strips query syntax", `title:"deploy" +must -not (grouped)`, "title deploy must not grouped"},
		{"strips wildcards", "dep*oy ch?cklist", "dep oy ch?cklist"},
		{"strips control chars", "deploy\x00checklist", "deploy checklist"},
		{"unicode kept", "café naïve", "café naïve"},
		{"empty", "", ""},
		{"only syntax", `"*()[]`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeQuery(tt.input))
		})
	}
}

func TestSanitizeQuery_BoundsLength(t *testing.T) {
	long := strings.Repeat("word ", 500)
	got := SanitizeQuery(long)
	assert.LessOrEqual(t, len(got), maxQueryBytes)
	assert.False(t, strings.HasSuffix(got, " "))
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"words", "Quarterly Budget Report", []string{"quarterly", "budget", "report"}},
		{"punctuation splits", "re-deploy v2.1 (hotfix)", []string{"re", "deploy", "v2", "1", "hotfix"}},
		{"empty", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJoinTags(t *testing.T) {
	assert.Equal(t, "devops release-notes", JoinTags([]string{"DevOps", "Release Notes"}))
	assert.Equal(t, "", JoinTags(nil))
	assert.Equal(t, "a", JoinTags([]string{"  ", "a"}))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short body", Preview("short   body", 50))

	long := strings.Repeat("lorem ipsum ", 40)
	got := Preview(long, 100)
	assert.LessOrEqual(t, len([]rune(got)), 101)
	assert.True(t, strings.HasSuffix(got, "…"))
}
