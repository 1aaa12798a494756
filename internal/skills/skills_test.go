package skills

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDiscoverNoSkillsDir(t *testing.T) {
	dir := t.TempDir()
	if got := Discover(dir); len(got) != 0 {
		t.Fatalf("expected no skills, got %v", got)
	}
}

func TestDiscoverParsesFrontmatter(t *testing.T) {
	dir := t.TempDir()
	skillDir := filepath.Join(dir, ".agent", "skills", "my-skill")
	os.MkdirAll(skillDir, 0o755)
	os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte("---\nname: my-skill\ndescription: does a thing\n---\n\nBody text here.\n"), 0o644)

	got := Discover(dir)
	if len(got) != 1 {
		t.Fatalf("expected 1 skill, got %d", len(got))
	}
	if got[0].Name != "my-skill" || got[0].Description != "does a thing" {
		t.Fatalf("unexpected skill: %+v", got[0])
	}
	if got[0].Source != "project" {
		t.Fatalf("expected project source for a workspace skill, got %q", got[0].Source)
	}
}

func TestWatchNotifiesOnNewSkill(t *testing.T) {
	dir := t.TempDir()
	stop := make(chan struct{})
	defer close(stop)

	changes := make(chan []Skill, 4)
	if err := Watch(dir, stop, func(s []Skill) { changes <- s }); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	skillDir := filepath.Join(dir, ".agent", "skills", "new-skill")
	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte("---\nname: new-skill\n---\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case found := <-changes:
		_ = found // contents depend on event coalescing timing; absence of a deadlock is what matters here
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a watch notification")
	}
}
