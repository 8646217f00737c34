package blob

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreUpload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "/files/")
	require.NoError(t, err)

	uri, err := store.Upload([]byte("%PDF-1.4 fake"), "fig_3.pdf", "figures")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "/files/figures/"))
	assert.True(t, strings.HasSuffix(uri, "_fig_3.pdf"))

	data, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(uri, "/files/")))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 fake"), data)
}

func TestLocalStoreDefaultFolder(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/files")
	require.NoError(t, err)

	uri, err := store.Upload([]byte("x"), "fig.pdf", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "/files/figures/"))
}

func TestLocalStoreUniqueNames(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/files")
	require.NoError(t, err)

	a, err := store.Upload([]byte("a"), "same.pdf", "pages")
	require.NoError(t, err)
	b, err := store.Upload([]byte("b"), "same.pdf", "pages")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"FIG. 9-22C.pdf":        "FIG._9-22C.pdf",
		"../../etc/passwd":      "passwd",
		"page 12 (cropped).pdf": "page_12_cropped_.pdf",
		"":                      "blob",
		"...":                   "blob",
	}
	for in, want := range cases {
		assert.Equal(t, want, sanitizeName(in), in)
	}
}
