package utils

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitLines(t *testing.T) {
	scenarios := []struct {
		multilineString string
		expected        []string
	}{
		{"", []string{}},
		{"\n", []string{}},
		{"hello world !\nhello universe !\n", []string{"hello world !", "hello universe !"}},
	}

	for _, s := range scenarios {
		assert.EqualValues(t, s.expected, SplitLines(s.multilineString))
	}
}

func TestNormalizeLinefeeds(t *testing.T) {
	assert.Equal(t, "a\nb\nc", NormalizeLinefeeds("a\r\nb\rc"))
}

func TestResolvePlaceholderString(t *testing.T) {
	got := ResolvePlaceholderString("hello {{name}}", map[string]string{"name": "world"})
	assert.Equal(t, "hello world", got)
}

func TestWithPadding(t *testing.T) {
	assert.Equal(t, "ab   ", WithPadding("ab", 5))
	assert.Equal(t, "abcdef", WithPadding("abcdef", 2))
}

func TestRenderTable(t *testing.T) {
	out, err := RenderTable([][]string{
		{"a", "bb"},
		{"ccc", "d"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "a   bb\nccc d", out)
}

func TestRenderTableMismatchedColumns(t *testing.T) {
	_, err := RenderTable([][]string{{"a", "b"}, {"c"}})
	assert.Error(t, err)
}

func TestFormatBinaryBytes(t *testing.T) {
	assert.Equal(t, "512B", FormatBinaryBytes(512))
	assert.Equal(t, "1KiB", FormatBinaryBytes(1024))
}

func TestSafeTruncate(t *testing.T) {
	assert.Equal(t, "hel", SafeTruncate("hello", 3))
	assert.Equal(t, "hi", SafeTruncate("hi", 10))
}

type failingCloser struct{ err error }

func (f failingCloser) Close() error { return f.err }

func TestCloseMany(t *testing.T) {
	assert.NoError(t, CloseMany([]io.Closer{failingCloser{}, failingCloser{}}))

	err := CloseMany([]io.Closer{failingCloser{errors.New("boom")}})
	assert.Error(t, err)
}
