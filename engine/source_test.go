package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

func writeThemeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestDirSource(t *testing.T) {
	tmp := t.TempDir()
	writeThemeFile(t, tmp, "snippets/a.liquid", "A")
	writeThemeFile(t, tmp, "snippets/b.liquid", "B")

	src := NewDirSource(tmp)
	data, err := src.ReadFile("snippets/a.liquid")
	if err != nil || string(data) != "A" {
		t.Fatalf("read: %v %q", err, data)
	}
	if !src.Exists("snippets/b.liquid") || src.Exists("snippets/c.liquid") {
		t.Fatal("exists misreported")
	}
	if got := src.List("snippets"); len(got) != 2 {
		t.Fatalf("list: %v", got)
	}
}

func TestHybridSourceDiskWins(t *testing.T) {
	tmp := t.TempDir()
	writeThemeFile(t, tmp, "snippets/a.liquid", "disk")

	embedded := fstest.MapFS{
		"snippets/a.liquid": &fstest.MapFile{Data: []byte("embedded")},
		"snippets/b.liquid": &fstest.MapFile{Data: []byte("only embedded")},
	}
	src := NewHybridSource(tmp, embedded)

	data, err := src.ReadFile("snippets/a.liquid")
	if err != nil || string(data) != "disk" {
		t.Fatalf("disk must win: %v %q", err, data)
	}
	data, err = src.ReadFile("snippets/b.liquid")
	if err != nil || string(data) != "only embedded" {
		t.Fatalf("embedded fallback: %v %q", err, data)
	}
	if got := src.List("snippets"); len(got) != 2 {
		t.Fatalf("list must merge: %v", got)
	}
}

func TestSanitizeNameStripsTraversal(t *testing.T) {
	cases := map[string]string{
		"hero":             "hero",
		"../secret":        "secret",
		"..\\..\\win":      "win",
		"a/b/../c":         "abc",
		"  padded  ":       "padded",
		"....//etc/passwd": "etcpasswd",
	}
	for in, want := range cases {
		if got := sanitizeName(in); got != want {
			t.Errorf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSnippetLookupCannotEscapeTheme(t *testing.T) {
	tmp := t.TempDir()
	writeThemeFile(t, tmp, "snippets/ok.liquid", "fine")
	// a file outside snippets/ that a traversal would reach
	writeThemeFile(t, tmp, "config/settings_data.json", `{"current": {}}`)

	e := NewEngineWithConfig(Config{Source: NewDirSource(tmp), CacheEnabled: false})
	out := renderWith(t, e, `{% render '../config/settings_data' %}`, nil)
	if strings.Contains(out, "current") {
		t.Fatalf("traversal must not escape snippets/: %q", out)
	}
}
