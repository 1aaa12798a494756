package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveDefaults(t *testing.T) {
	ws := t.TempDir()
	cfg := Resolve(Overrides{}, ws)
	if cfg.APIBase != DefaultAPIBase {
		t.Fatalf("expected default api base, got %q", cfg.APIBase)
	}
	if cfg.Model != DefaultModel {
		t.Fatalf("expected default model, got %q", cfg.Model)
	}
	if cfg.MaxContextMsg != DefaultMaxContextMsg {
		t.Fatalf("expected default max context messages, got %d", cfg.MaxContextMsg)
	}
}

func TestResolveCLIOverrideWins(t *testing.T) {
	ws := t.TempDir()
	t.Setenv("MODEL", "env-model")
	cfg := Resolve(Overrides{Model: "cli-model"}, ws)
	if cfg.Model != "cli-model" {
		t.Fatalf("expected CLI override to win, got %q", cfg.Model)
	}
}

func TestResolveEnvBeatsDotEnvLocal(t *testing.T) {
	ws := t.TempDir()
	writeFile(t, filepath.Join(ws, ".env.local"), "MODEL=dotenv-model\n")
	t.Setenv("MODEL", "env-model")
	cfg := Resolve(Overrides{}, ws)
	if cfg.Model != "env-model" {
		t.Fatalf("expected env var to beat .env.local, got %q", cfg.Model)
	}
}

func TestResolveDotEnvLocalUsedWhenEnvUnset(t *testing.T) {
	ws := t.TempDir()
	writeFile(t, filepath.Join(ws, ".env.local"), "MODEL=dotenv-model\n")
	cfg := Resolve(Overrides{}, ws)
	if cfg.Model != "dotenv-model" {
		t.Fatalf("expected .env.local value, got %q", cfg.Model)
	}
}

func TestResolveProfileScopedEnvWinsOverBareKey(t *testing.T) {
	ws := t.TempDir()
	t.Setenv("MODEL", "bare-model")
	t.Setenv("WORK_MODEL", "profile-model")
	cfg := Resolve(Overrides{Profile: "work"}, ws)
	if cfg.Model != "profile-model" {
		t.Fatalf("expected profile-scoped env var to win, got %q", cfg.Model)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
