package tools

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crabclaw-go/crabclaw/internal/schedule"
	"github.com/crabclaw-go/crabclaw/internal/skills"
	"github.com/crabclaw-go/crabclaw/internal/tape"
)

func newTestDeps(t *testing.T) (Deps, string) {
	t.Helper()
	workspace := t.TempDir()
	tapeDir := filepath.Join(workspace, ".crabclaw")
	store, err := tape.Open(tapeDir, "test-session")
	if err != nil {
		t.Fatalf("open tape: %v", err)
	}
	return Deps{
		Tape:      store,
		Workspace: workspace,
		Scheduler: schedule.New(),
		Registry:  BuiltinRegistry(),
	}, workspace
}

func TestExecuteToolFileWriteThenRead(t *testing.T) {
	deps, _ := newTestDeps(t)
	out := ExecuteTool("file.write", `{"path":"note.txt","content":"hello"}`, deps, Context{})
	if out == "" || out[:8] != "Written " {
		t.Fatalf("unexpected write result: %q", out)
	}
	out = ExecuteTool("file.read", `{"path":"note.txt"}`, deps, Context{})
	if out != "hello" {
		t.Fatalf("unexpected read result: %q", out)
	}
}

func TestExecuteToolFileReadMissingPathArgument(t *testing.T) {
	deps, _ := newTestDeps(t)
	out := ExecuteTool("file.read", `{}`, deps, Context{})
	if out != "Error: 'path' argument is required." {
		t.Fatalf("unexpected error message: %q", out)
	}
}

func TestExecuteToolShellExec(t *testing.T) {
	deps, _ := newTestDeps(t)
	out := ExecuteTool("shell.exec", `{"command":"echo hi"}`, deps, Context{})
	if out != "hi" {
		t.Fatalf("unexpected shell output: %q", out)
	}
}

func TestExecuteToolTapeResetRefusesDirectly(t *testing.T) {
	deps, _ := newTestDeps(t)
	out := ExecuteTool("tape.reset", `{}`, deps, Context{})
	if out != "Error: resetting the tape requires the ,tape.reset command." {
		t.Fatalf("unexpected message: %q", out)
	}
}

func TestExecuteToolUnknownTool(t *testing.T) {
	deps, _ := newTestDeps(t)
	out := ExecuteTool("nonexistent.tool", `{}`, deps, Context{})
	if out != "Unknown tool: nonexistent.tool" {
		t.Fatalf("unexpected message: %q", out)
	}
}

func TestExecuteToolScheduleAddListRemove(t *testing.T) {
	deps, _ := newTestDeps(t)
	after := `{"message":"ping","after_seconds":3600}`
	added := ExecuteTool("schedule.add", after, deps, Context{})
	if added[:10] != "scheduled:" {
		t.Fatalf("unexpected add result: %q", added)
	}
	jobID := strings.Fields(added[len("scheduled: "):])[0]

	listed := ExecuteTool("schedule.list", `{}`, deps, Context{})
	if !strings.Contains(listed, jobID) {
		t.Fatalf("expected %s listed, got %q", jobID, listed)
	}

	removed := ExecuteTool("schedule.remove", `{"job_id":"`+jobID+`"}`, deps, Context{})
	if removed != "removed: "+jobID {
		t.Fatalf("unexpected remove result: %q", removed)
	}

	listed = ExecuteTool("schedule.list", `{}`, deps, Context{})
	if strings.Contains(listed, jobID) {
		t.Fatalf("expected %s gone after removal, got %q", jobID, listed)
	}
}

func TestExecuteToolSkillDispatch(t *testing.T) {
	deps, workspace := newTestDeps(t)
	skillDir := filepath.Join(workspace, ".agent", "skills", "greet")
	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	body := "---\nname: greet\ndescription: say hello\n---\nHello there."
	if err := os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(body), 0o644); err != nil {
		t.Fatalf("write skill: %v", err)
	}
	deps.Skills = skills.Discover(workspace)
	out := ExecuteTool("skill.greet", `{}`, deps, Context{})
	if out != body {
		t.Fatalf("expected skill body, got %q", out)
	}
}

func TestExecuteToolSkillDispatchUnknown(t *testing.T) {
	deps, _ := newTestDeps(t)
	out := ExecuteTool("skill.greet", `{}`, deps, Context{})
	if out != "Unknown tool: skill.greet" {
		t.Fatalf("expected unknown tool without registered skills, got %q", out)
	}
}
