package stringutils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/habiliai/lodgechat/internal/stringutils"
)

func TestSanitizeText(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "string with null byte",
			input:    "leak\u0000under sink",
			expected: "leakunder sink",
		},
		{
			name:     "string with multiple control characters",
			input:    "test\u0000\u0001\u001f\u007fstring",
			expected: "teststring",
		},
		{
			name:     "line breaks survive",
			input:    "line one\nline two\r\n\tindented",
			expected: "line one\nline two\r\n\tindented",
		},
		{
			name:     "string with C1 control characters",
			input:    "test\u0080\u009fstring",
			expected: "teststring",
		},
		{
			name:     "invalid utf-8",
			input:    "ok\xffok",
			expected: "okok",
		},
		{
			name:     "non latin text",
			input:    "열쇠가 고장났어요 🔑",
			expected: "열쇠가 고장났어요 🔑",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, stringutils.SanitizeText(tc.input))
		})
	}
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "lease 2024.pdf", stringutils.SanitizeFileName(" lease\n 2024.pdf\u0000 "))
	assert.Equal(t, "photo.jpg", stringutils.SanitizeFileName("photo.jpg"))
	assert.Equal(t, "", stringutils.SanitizeFileName("\t\r\n"))
}
