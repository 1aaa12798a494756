package router

import (
	"strings"
	"testing"

	"github.com/crabclaw-go/crabclaw/internal/tape"
	"github.com/crabclaw-go/crabclaw/internal/tools"
)

func newTapeStore(t *testing.T) *tape.Store {
	t.Helper()
	store, err := tape.Open(t.TempDir(), "session")
	if err != nil {
		t.Fatalf("tape.Open: %v", err)
	}
	return store
}

func TestRouteUserEmptyInputDoesNothing(t *testing.T) {
	store := newTapeStore(t)
	result := RouteUser("   ", store, t.TempDir(), tools.BuiltinRegistry())
	if result.EnterModel || result.ImmediateOutput != "" || result.ExitRequested {
		t.Fatalf("expected a no-op result, got %+v", result)
	}
	if len(store.Entries()) != 0 {
		t.Fatalf("expected no tape mutation for empty input, got %d entries", len(store.Entries()))
	}
}

func TestRouteUserNaturalLanguageEntersModel(t *testing.T) {
	store := newTapeStore(t)
	result := RouteUser("what's the weather like?", store, t.TempDir(), tools.BuiltinRegistry())
	if !result.EnterModel || result.ModelPrompt != "what's the weather like?" {
		t.Fatalf("expected model entry with the prompt unchanged, got %+v", result)
	}
}

func TestRouteUserQuitRequestsExit(t *testing.T) {
	store := newTapeStore(t)
	result := RouteUser(",quit", store, t.TempDir(), tools.BuiltinRegistry())
	if !result.ExitRequested {
		t.Fatal("expected exit requested")
	}
}

func TestRouteUserSuccessfulShellSkipsModel(t *testing.T) {
	store := newTapeStore(t)
	result := RouteUser(",echo hi", store, t.TempDir(), tools.BuiltinRegistry())
	if result.EnterModel {
		t.Fatal("expected a successful shell command to skip the model")
	}
	if !strings.Contains(result.ImmediateOutput, "hi") {
		t.Fatalf("expected output to contain hi, got %q", result.ImmediateOutput)
	}
}

func TestRouteUserFailedShellEntersModelWithContext(t *testing.T) {
	store := newTapeStore(t)
	result := RouteUser(",false", store, t.TempDir(), tools.BuiltinRegistry())
	if !result.EnterModel {
		t.Fatal("expected a failed shell command to enter the model with failure context")
	}
	if !strings.Contains(result.ModelPrompt, "false") {
		t.Fatalf("expected model prompt to reference the failed command, got %q", result.ModelPrompt)
	}
}

func TestRouteUserFailedInternalCommandEntersModelWithErrorBlock(t *testing.T) {
	store := newTapeStore(t)
	result := RouteUser(",tool.describe no.such.tool", store, t.TempDir(), tools.BuiltinRegistry())
	if !result.EnterModel {
		t.Fatal("expected a failed internal command to enter the model")
	}
	if !strings.Contains(result.ModelPrompt, "status=\"error\"") {
		t.Fatalf("expected an error command block, got %q", result.ModelPrompt)
	}
}

func TestRouteAssistantPlainTextPassesThrough(t *testing.T) {
	store := newTapeStore(t)
	result := RouteAssistant("just a reply, nothing special", store, t.TempDir(), tools.BuiltinRegistry())
	if result.HasCommands() {
		t.Fatalf("expected no commands, got %+v", result.CommandBlocks)
	}
	if result.VisibleText != "just a reply, nothing special" {
		t.Fatalf("unexpected visible text: %q", result.VisibleText)
	}
}

func TestRouteAssistantShellCommand(t *testing.T) {
	store := newTapeStore(t)
	result := RouteAssistant("Let me check.\n,echo from-assistant\nDone.", store, t.TempDir(), tools.BuiltinRegistry())
	if !result.HasCommands() {
		t.Fatal("expected one command block")
	}
	if !strings.Contains(result.CommandBlocks[0], "from-assistant") {
		t.Fatalf("unexpected command block: %q", result.CommandBlocks[0])
	}
	if strings.Contains(result.VisibleText, ",echo") {
		t.Fatalf("expected the command line to be stripped from visible text, got %q", result.VisibleText)
	}
}

func TestRouteAssistantIgnoresQuit(t *testing.T) {
	store := newTapeStore(t)
	result := RouteAssistant("I'll stop now.\n,quit", store, t.TempDir(), tools.BuiltinRegistry())
	if result.ExitRequested {
		t.Fatal("an assistant-issued ,quit must never be honored")
	}
}

func TestRouteAssistantCommandInsideFenceStillExecutes(t *testing.T) {
	store := newTapeStore(t)
	result := RouteAssistant("Run this:\n```\n,echo inside_fence\n```", store, t.TempDir(), tools.BuiltinRegistry())
	if !result.HasCommands() {
		t.Fatal("expected the fenced command to execute")
	}
	if !strings.Contains(result.CommandBlocks[0], "inside_fence") {
		t.Fatalf("unexpected command block: %q", result.CommandBlocks[0])
	}
	if strings.Contains(result.VisibleText, ",echo") {
		t.Fatalf("expected the command line stripped from visible text, got %q", result.VisibleText)
	}
}
