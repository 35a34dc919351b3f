package engine

import (
	"fmt"
	"io"
	fsys "io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ThemeSource is the read-only keyed store of raw theme files. Paths use
// forward slashes and the fixed theme directories (layout/, templates/,
// sections/, snippets/, locales/, config/).
type ThemeSource interface {
	ReadFile(path string) ([]byte, error)
	Exists(path string) bool
	List(dir string) []string
}

// DirSource reads a theme from a directory on disk.
type DirSource struct {
	root string
}

func NewDirSource(root string) *DirSource {
	return &DirSource{root: root}
}

func (d *DirSource) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(d.root, filepath.FromSlash(path)))
}

func (d *DirSource) Exists(path string) bool {
	info, err := os.Stat(filepath.Join(d.root, filepath.FromSlash(path)))
	return err == nil && !info.IsDir()
}

func (d *DirSource) List(dir string) []string {
	entries, err := os.ReadDir(filepath.Join(d.root, filepath.FromSlash(dir)))
	if err != nil {
		return nil
	}
	var out []string
	for _, entry := range entries {
		if !entry.IsDir() {
			out = append(out, dir+"/"+entry.Name())
		}
	}
	return out
}

// MapSource is an in-memory theme, used by tests and programmatic callers.
type MapSource map[string]string

func (m MapSource) ReadFile(path string) ([]byte, error) {
	if content, ok := m[path]; ok {
		return []byte(content), nil
	}
	return nil, fmt.Errorf("file not found: %s", path)
}

func (m MapSource) Exists(path string) bool {
	_, ok := m[path]
	return ok
}

func (m MapSource) List(dir string) []string {
	var out []string
	prefix := dir + "/"
	for path := range m {
		if strings.HasPrefix(path, prefix) && !strings.Contains(path[len(prefix):], "/") {
			out = append(out, path)
		}
	}
	return out
}

// FSSource adapts an io/fs.FS (typically an embed.FS) as a ThemeSource.
type FSSource struct {
	fs fsys.FS
}

func NewFSSource(fs fsys.FS) *FSSource {
	return &FSSource{fs: fs}
}

func (f *FSSource) ReadFile(path string) ([]byte, error) {
	file, err := f.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func (f *FSSource) Exists(path string) bool {
	file, err := f.fs.Open(path)
	if err != nil {
		return false
	}
	file.Close()
	return true
}

func (f *FSSource) List(dir string) []string {
	entries, err := fsys.ReadDir(f.fs, dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, entry := range entries {
		if !entry.IsDir() {
			out = append(out, dir+"/"+entry.Name())
		}
	}
	return out
}

// HybridSource tries disk first and falls back to a bundled source, so a
// development checkout overrides embedded theme files.
type HybridSource struct {
	primary  ThemeSource
	fallback ThemeSource
}

func NewHybridSource(dir string, embedded fsys.FS) *HybridSource {
	h := &HybridSource{primary: NewDirSource(dir)}
	if embedded != nil {
		h.fallback = NewFSSource(embedded)
	}
	return h
}

func (h *HybridSource) ReadFile(path string) ([]byte, error) {
	if data, err := h.primary.ReadFile(path); err == nil {
		return data, nil
	}
	if h.fallback != nil {
		return h.fallback.ReadFile(path)
	}
	return nil, fsys.ErrNotExist
}

func (h *HybridSource) Exists(path string) bool {
	if h.primary.Exists(path) {
		return true
	}
	return h.fallback != nil && h.fallback.Exists(path)
}

func (h *HybridSource) List(dir string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, src := range []ThemeSource{h.primary, h.fallback} {
		if src == nil {
			continue
		}
		for _, path := range src.List(dir) {
			if !seen[path] {
				seen[path] = true
				out = append(out, path)
			}
		}
	}
	return out
}

// sanitizeName strips traversal sequences and path separators from any
// user-influenced name before it is used in a file lookup. This boundary is
// enforced here, never delegated to callers.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	return strings.TrimSpace(name)
}
