package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/renliu0x/askdoc/internal/pkg/errors"
)

func TestTextPlain(t *testing.T) {
	got, err := Text([]byte("hello\r\nworld\n"), "txt")
	require.NoError(t, err)
	require.Equal(t, "hello\nworld", got)
}

func TestTextUnsupportedType(t *testing.T) {
	_, err := Text([]byte("data"), "exe")
	require.ErrorIs(t, err, appErr.ErrUnsupported)
}

func TestTextEmptyIsError(t *testing.T) {
	_, err := Text([]byte("   \n \t "), "txt")
	require.ErrorIs(t, err, appErr.ErrEmptyText)
}

func TestMarkdownStripsFormatting(t *testing.T) {
	raw := "# Title\n\nSome **bold** and *italic* text.\n\n- item one\n- item two\n"
	got, err := Text([]byte(raw), "md")
	require.NoError(t, err)
	require.NotContains(t, got, "#")
	require.NotContains(t, got, "**")
	require.Contains(t, got, "Title")
	require.Contains(t, got, "bold")
	require.Contains(t, got, "item one")
}

func TestMarkdownKeepsFencedCode(t *testing.T) {
	raw := "Intro paragraph.\n\n```\nfunc main() {}\n```\n"
	got, err := Text([]byte(raw), "markdown")
	require.NoError(t, err)
	require.Contains(t, got, "func main() {}")
	require.NotContains(t, got, "```")
}

func TestForTypeCaseInsensitive(t *testing.T) {
	ex, err := ForType("  MD ")
	require.NoError(t, err)
	require.NotNil(t, ex)
}
