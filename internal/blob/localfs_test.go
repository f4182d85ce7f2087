package blob

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFSPutOpenExists(t *testing.T) {
	fs := LocalFS{Root: t.TempDir()}

	key, err := fs.Put("results/result_a.png", strings.NewReader("pixels"))
	require.NoError(t, err)
	assert.Equal(t, "results/result_a.png", key)
	assert.True(t, fs.Exists(key))
	assert.False(t, fs.Exists("results/other.png"))
	assert.False(t, fs.Exists("results"))

	f, err := fs.Open(key)
	require.NoError(t, err)
	defer f.Close()
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(got))

	entries, err := os.ReadDir(filepath.Join(fs.Root, "results"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestLocalFSKeysStayUnderRoot(t *testing.T) {
	root := t.TempDir()
	fs := LocalFS{Root: filepath.Join(root, "public")}

	key, err := fs.Put("../../escape.png", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "escape.png", key)
	_, err = os.Stat(filepath.Join(root, "public", "escape.png"))
	require.NoError(t, err)

	_, err = fs.Put("/", strings.NewReader("x"))
	require.Error(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestLocalFSPutFailureLeavesNothing(t *testing.T) {
	fs := LocalFS{Root: t.TempDir()}
	_, err := fs.Put("results/broken.png", failingReader{})
	require.Error(t, err)
	assert.False(t, fs.Exists("results/broken.png"))

	entries, err := os.ReadDir(filepath.Join(fs.Root, "results"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocator(t *testing.T) {
	assert.Equal(t, "/static/results/a.png", Locator("/static", "results/a.png"))
	assert.Equal(t, "/static/results/a.png", Locator("/static/", "/results/a.png"))
}
