package pathsafe

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveWithinWorkspace(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hi"), 0o644)

	resolved, ok := Resolve(dir, "a.txt")
	if !ok {
		t.Fatal("expected resolve to succeed")
	}
	if filepath.Base(resolved) != "a.txt" {
		t.Fatalf("unexpected resolved path: %s", resolved)
	}
}

func TestResolveRejectsParentEscape(t *testing.T) {
	dir := t.TempDir()
	_, ok := Resolve(dir, "../../etc/passwd")
	if ok {
		t.Fatal("expected escape attempt to be rejected")
	}
}

func TestResolveRejectsAbsoluteOutsidePath(t *testing.T) {
	dir := t.TempDir()
	_, ok := Resolve(dir, "/etc/passwd")
	if ok {
		t.Fatal("expected absolute escape to be rejected")
	}
}

func TestResolveEmptyRequestedFails(t *testing.T) {
	dir := t.TempDir()
	if _, ok := Resolve(dir, ""); ok {
		t.Fatal("expected empty path to fail")
	}
	if _, ok := Resolve(dir, "   "); ok {
		t.Fatal("expected whitespace-only path to fail")
	}
}

func TestResolveNonexistentNestedPathStillConfined(t *testing.T) {
	dir := t.TempDir()
	resolved, ok := Resolve(dir, "sub/does-not-exist.txt")
	if !ok {
		t.Fatal("expected resolve to succeed for a not-yet-created file")
	}
	if filepath.Dir(resolved) != filepath.Join(dir, "sub") {
		t.Fatalf("unexpected resolved dir: %s", resolved)
	}
}

func TestResolveDotDotWithinWorkspaceOK(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "sub"), 0o755)
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hi"), 0o644)

	resolved, ok := Resolve(dir, "sub/../a.txt")
	if !ok {
		t.Fatal("expected resolve to succeed")
	}
	if filepath.Base(resolved) != "a.txt" {
		t.Fatalf("unexpected resolved path: %s", resolved)
	}
}
