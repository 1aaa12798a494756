package tools

import (
	"strings"
	"testing"
)

func TestProgressiveViewBootstrapsAllToolsWhenNothingExpanded(t *testing.T) {
	v := NewProgressiveView(BuiltinRegistry())
	defs := v.ToolDefinitions()
	if len(defs) != len(BuiltinSpecs()) {
		t.Fatalf("expected all %d builtins on bootstrap, got %d", len(BuiltinSpecs()), len(defs))
	}
}

func TestActivateHintsExpandsMatchingToolOnlyOnce(t *testing.T) {
	v := NewProgressiveView(BuiltinRegistry())
	newly := v.ActivateHints("let me use $shell.exec to check this")
	if len(newly) != 1 || newly[0] != "shell.exec" {
		t.Fatalf("expected shell.exec newly expanded, got %v", newly)
	}
	if v.ExpandedCount() != 1 {
		t.Fatalf("expected 1 expanded, got %d", v.ExpandedCount())
	}
	newly = v.ActivateHints("using $shell.exec again")
	if len(newly) != 0 {
		t.Fatalf("expected no newly expanded on repeat hint, got %v", newly)
	}
}

func TestActivateHintsIsCaseInsensitive(t *testing.T) {
	v := NewProgressiveView(BuiltinRegistry())
	newly := v.ActivateHints("try $SHELL.EXEC")
	if len(newly) != 1 || newly[0] != "SHELL.EXEC" {
		t.Fatalf("expected case-insensitive match, got %v", newly)
	}
	if !v.expanded["shell.exec"] {
		t.Fatalf("expected canonical name shell.exec expanded, got %v", v.expanded)
	}
}

func TestToolDefinitionsOnlyExpandedAfterSelection(t *testing.T) {
	v := NewProgressiveView(BuiltinRegistry())
	v.NoteSelected("file.read")
	defs := v.ToolDefinitions()
	if len(defs) != 1 || defs[0].Function.Name != "file.read" {
		t.Fatalf("expected only file.read, got %+v", defs)
	}
}

func TestExpandedBlockEmptyWhenNothingExpanded(t *testing.T) {
	v := NewProgressiveView(BuiltinRegistry())
	if v.ExpandedBlock() != "" {
		t.Fatalf("expected empty expanded block, got %q", v.ExpandedBlock())
	}
}

func TestExpandedBlockListsSortedExpandedTools(t *testing.T) {
	v := NewProgressiveView(BuiltinRegistry())
	v.NoteSelected("web.search")
	v.NoteSelected("file.read")
	block := v.ExpandedBlock()
	fileIdx := strings.Index(block, "file.read")
	webIdx := strings.Index(block, "web.search")
	if fileIdx == -1 || webIdx == -1 || fileIdx > webIdx {
		t.Fatalf("expected file.read before web.search in sorted block, got %q", block)
	}
}

func TestResetClearsExpanded(t *testing.T) {
	v := NewProgressiveView(BuiltinRegistry())
	v.NoteSelected("file.read")
	v.Reset()
	if v.ExpandedCount() != 0 {
		t.Fatalf("expected 0 after reset, got %d", v.ExpandedCount())
	}
}

func TestCompactBlockListsAllToolsRegardlessOfExpansion(t *testing.T) {
	v := NewProgressiveView(BuiltinRegistry())
	block := v.CompactBlock()
	for _, s := range BuiltinSpecs() {
		if !strings.Contains(block, s.Name) {
			t.Fatalf("expected %s in compact block", s.Name)
		}
	}
}

