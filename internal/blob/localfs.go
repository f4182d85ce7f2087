package blob

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalFS stores artifacts under Root. Keys are slash-separated paths
// relative to Root; files appear atomically, so readers never see a
// partially written artifact.
type LocalFS struct {
	Root string
}

func (l LocalFS) abs(relPath string) (string, string, error) {
	clean := path.Clean("/" + filepath.ToSlash(relPath))[1:]
	if clean == "" {
		return "", "", fmt.Errorf("invalid blob key %q", relPath)
	}
	return clean, filepath.Join(l.Root, filepath.FromSlash(clean)), nil
}

func (l LocalFS) Put(relPath string, r io.Reader) (string, error) {
	clean, abs, err := l.abs(relPath)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(abs)+".*")
	if err != nil {
		return "", err
	}
	tmp := f.Name()
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, abs); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return clean, nil
}

func (l LocalFS) Open(relPath string) (*os.File, error) {
	_, abs, err := l.abs(relPath)
	if err != nil {
		return nil, err
	}
	return os.Open(abs)
}

func (l LocalFS) Exists(relPath string) bool {
	_, abs, err := l.abs(relPath)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && !info.IsDir()
}

// Locator returns the root-relative URL path under which the HTTP layer
// serves relPath.
func Locator(prefix, relPath string) string {
	return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(filepath.ToSlash(relPath), "/")
}
