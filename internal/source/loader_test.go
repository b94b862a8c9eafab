package source_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpcarvalho/askdocs/internal/source"
)

func TestIsText(t *testing.T) {
	for _, path := range []string{"a.md", "A.TXT", "page.html", "page.htm", "paper.pdf", "docs/nested/readme.MD"} {
		assert.True(t, source.IsText(path), path)
	}
	for _, path := range []string{"a.png", "a.exe", "a", "a.md.bak"} {
		assert.False(t, source.IsText(path), path)
	}
}

func TestIsImage(t *testing.T) {
	for _, path := range []string{"cat.png", "cat.JPG", "cat.jpeg", "cat.gif", "cat.webp"} {
		assert.True(t, source.IsImage(path), path)
	}
	for _, path := range []string{"cat.txt", "cat.svg", "cat"} {
		assert.False(t, source.IsImage(path), path)
	}
}

func TestFromFilePlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("  hello world \n"), 0o600))

	content, err := source.FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", content)
}

func TestFromFileHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	page := `<html><head><style>body { color: red }</style></head>
<body><h1>Title</h1><script>alert("nope")</script><p>Visible paragraph.</p></body></html>`
	require.NoError(t, os.WriteFile(path, []byte(page), 0o600))

	content, err := source.FromFile(path)
	require.NoError(t, err)
	assert.Contains(t, content, "Title")
	assert.Contains(t, content, "Visible paragraph.")
	assert.NotContains(t, content, "alert")
	assert.NotContains(t, content, "color: red")
}

func TestFromFileMissing(t *testing.T) {
	_, err := source.FromFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestExtractHTMLTextDropsMarkup(t *testing.T) {
	text := source.ExtractHTMLText(`<div><span>first</span><noscript>hidden</noscript><b>second</b></div>`)
	assert.Contains(t, text, "first")
	assert.Contains(t, text, "second")
	assert.NotContains(t, text, "hidden")
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "já válido", source.SanitizeUTF8("já válido"))

	broken := "ok" + string([]byte{0xff, 0xfe}) + "still ok"
	assert.Equal(t, "okstill ok", source.SanitizeUTF8(broken))
}
