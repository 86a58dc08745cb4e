package registry

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestLoadDir_FiltersGGUF(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"b.gguf",
		"a.GGUF", // case-insensitive
		"not-model.txt",
		"model.bin",
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("abc"), 0o644); err != nil {
			t.Fatalf("write temp file: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.gguf"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	arts, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(arts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(arts))
	}
	if arts[0].Name != "a.GGUF" || arts[1].Name != "b.gguf" {
		t.Fatalf("unexpected order: %+v", arts)
	}
	if arts[0].Size != 3 || !filepath.IsAbs(arts[0].Path) {
		t.Fatalf("unexpected artifact: %+v", arts[0])
	}
}

func TestLoadDir_ExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir on this platform: %v", err)
	}
	hTmp, err := os.MkdirTemp(home, "hypnosd-registry-*")
	if err != nil {
		t.Skipf("cannot create temp under home: %v", err)
	}
	defer os.RemoveAll(hTmp)
	if err := os.WriteFile(filepath.Join(hTmp, "x.gguf"), []byte(""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	var tildePath string
	if runtime.GOOS == "windows" {
		tildePath = filepath.Join("~", filepath.Base(hTmp))
	} else {
		tildePath = "~/" + filepath.Base(hTmp)
	}
	arts, err := LoadDir(tildePath)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(arts) != 1 || arts[0].Name != "x.gguf" {
		t.Fatalf("unexpected artifacts: %+v", arts)
	}
}

func TestPick(t *testing.T) {
	dir := t.TempDir()
	if _, err := Pick(dir); err == nil {
		t.Fatalf("expected error for empty dir")
	}
	for _, n := range []string{"z.gguf", "gemma-2b.gguf"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte(""), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	a, err := Pick(dir)
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if a.Name != "gemma-2b.gguf" {
		t.Fatalf("picked %q", a.Name)
	}
}
