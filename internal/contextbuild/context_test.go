package contextbuild

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crabclaw-go/crabclaw/internal/tape"
)

func openTape(t *testing.T, name string) *tape.Store {
	t.Helper()
	store, err := tape.Open(t.TempDir(), name)
	if err != nil {
		t.Fatalf("open tape: %v", err)
	}
	return store
}

func TestBuildMessagesEmptyTapeNoSystemPrompt(t *testing.T) {
	store := openTape(t, "ctx-test")
	msgs := BuildMessages(store, "", 50)
	if len(msgs) != 0 {
		t.Fatalf("expected no messages, got %+v", msgs)
	}
}

func TestBuildMessagesEmptyTapeWithSystemPrompt(t *testing.T) {
	store := openTape(t, "ctx-test")
	msgs := BuildMessages(store, "You are a helpful assistant.", 50)
	if len(msgs) != 1 || msgs[0].Role != "system" {
		t.Fatalf("expected one system message, got %+v", msgs)
	}
}

func TestBuildMessagesPreservesOrder(t *testing.T) {
	store := openTape(t, "ctx-test")
	store.AppendMessage("user", "Hello")
	store.AppendMessage("assistant", "Hi there!")
	store.AppendMessage("user", "How are you?")

	msgs := BuildMessages(store, "", 50)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "Hello" || msgs[1].Content != "Hi there!" || msgs[2].Content != "How are you?" {
		t.Fatalf("unexpected message order: %+v", msgs)
	}
}

func TestBuildMessagesSkipsNonMessageEntries(t *testing.T) {
	store := openTape(t, "ctx-test")
	store.Anchor("session/start", nil)
	store.AppendEvent("route", map[string]string{"kind": "model"})
	store.AppendMessage("user", "Hello")
	store.AppendEvent("command", map[string]string{"name": "help"})
	store.AppendMessage("assistant", "Hi")

	msgs := BuildMessages(store, "", 50)
	if len(msgs) != 2 || msgs[0].Content != "Hello" || msgs[1].Content != "Hi" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestBuildMessagesSkipsEmptyContent(t *testing.T) {
	store := openTape(t, "ctx-test")
	store.AppendMessage("user", "")
	store.AppendMessage("user", "real")

	msgs := BuildMessages(store, "", 50)
	if len(msgs) != 1 || msgs[0].Content != "real" {
		t.Fatalf("expected only non-empty message, got %+v", msgs)
	}
}

func TestBuildMessagesAnchorTruncatesContextWindow(t *testing.T) {
	store := openTape(t, "ctx-trunc")
	store.AppendMessage("user", "old question")
	store.AppendMessage("assistant", "old answer")
	store.Anchor("handoff", map[string]string{"owner": "human"})
	store.AppendMessage("user", "new question")
	store.AppendMessage("assistant", "new answer")

	msgs := BuildMessages(store, "", 50)
	if len(msgs) != 2 || msgs[0].Content != "new question" || msgs[1].Content != "new answer" {
		t.Fatalf("expected only post-anchor messages, got %+v", msgs)
	}
}

func TestBuildMessagesMaxContextTruncation(t *testing.T) {
	store := openTape(t, "ctx-test")
	for i := 1; i <= 5; i++ {
		store.AppendMessage("user", "Msg")
	}
	msgs := BuildMessages(store, "System Prompt", 3)
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages (system + notice + 3 kept), got %d: %+v", len(msgs), msgs)
	}
	if msgs[0].Role != "system" || msgs[0].Content != "System Prompt" {
		t.Fatalf("unexpected first message: %+v", msgs[0])
	}
	if msgs[1].Role != "system" {
		t.Fatalf("expected truncation notice, got %+v", msgs[1])
	}
}

func TestBuildSystemPromptConfigOverride(t *testing.T) {
	workspace := t.TempDir()
	result := BuildSystemPrompt("Custom prompt", workspace)
	if result != "Custom prompt" {
		t.Fatalf("expected config override, got %q", result)
	}
}

func TestBuildSystemPromptWorkspaceFile(t *testing.T) {
	workspace := t.TempDir()
	agentDir := filepath.Join(workspace, ".agent")
	if err := os.MkdirAll(agentDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(agentDir, "system-prompt.md"), []byte("Workspace prompt"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	result := BuildSystemPrompt("", workspace)
	if result != "Workspace prompt" {
		t.Fatalf("expected workspace prompt, got %q", result)
	}
}

func TestBuildSystemPromptDefaultFallback(t *testing.T) {
	workspace := t.TempDir()
	result := BuildSystemPrompt("", workspace)
	if !strings.Contains(result, "CrabClaw") || !strings.Contains(result, "shell.exec") {
		t.Fatalf("expected default prompt contents, got %q", result)
	}
}

func TestBuildSystemPromptConfigOverridesWorkspaceFile(t *testing.T) {
	workspace := t.TempDir()
	agentDir := filepath.Join(workspace, ".agent")
	if err := os.MkdirAll(agentDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	os.WriteFile(filepath.Join(agentDir, "system-prompt.md"), []byte("Workspace prompt"), 0o644)
	result := BuildSystemPrompt("From config", workspace)
	if result != "From config" {
		t.Fatalf("expected config override to win, got %q", result)
	}
}
