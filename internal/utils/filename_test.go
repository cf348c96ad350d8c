package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "removes invalid characters",
			input:    `file<>:"/\|?*name`,
			expected: "filename",
		},
		{
			name:     "replaces newlines and tabs with spaces",
			input:    "file\nname\twith\rspaces",
			expected: "file name with spaces",
		},
		{
			name:     "collapses multiple spaces",
			input:    "file   name  with    spaces",
			expected: "file name with spaces",
		},
		{
			name:     "strips path traversal",
			input:    "../../etc/passwd",
			expected: "etcpasswd",
		},
		{
			name:     "trims whitespace and dots",
			input:    "  report.  ",
			expected: "report",
		},
		{
			name:     "keeps unicode",
			input:    "Отчёт 2024",
			expected: "Отчёт 2024",
		},
		{
			name:     "falls back for empty",
			input:    "",
			expected: "item-1",
		},
		{
			name:     "falls back for only special chars",
			input:    "<>:?*",
			expected: "item-1",
		},
		{
			name:     "truncates long names",
			input:    strings.Repeat("a", 250),
			expected: strings.Repeat("a", 200),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input, "item-1"))
		})
	}
}

func TestSanitizeFilename_TruncatesOnRuneBoundary(t *testing.T) {
	got := SanitizeFilename("a"+strings.Repeat("é", 150), "x")

	assert.LessOrEqual(t, len(got), MaxFilenameLength)
	assert.True(t, strings.HasSuffix(got, "é"))
}

func TestWithExtension(t *testing.T) {
	assert.Equal(t, "report.pdf", WithExtension("report", ".pdf"))
	assert.Equal(t, "report.PDF", WithExtension("report.PDF", ".pdf"))
	assert.Equal(t, "report.csv.pdf", WithExtension("report.csv", ".pdf"))
	assert.Equal(t, "report", WithExtension("report", ""))
}
