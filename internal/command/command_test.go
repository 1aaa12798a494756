package command

import "testing"

func TestDetectNonCommandReturnsNil(t *testing.T) {
	if Detect("hello there") != nil {
		t.Fatal("expected nil for non-command input")
	}
	if Detect("") != nil {
		t.Fatal("expected nil for empty input")
	}
	if Detect(",") != nil {
		t.Fatal("expected nil for bare comma")
	}
	if Detect(",   ") != nil {
		t.Fatal("expected nil for comma plus whitespace")
	}
}

func TestDetectShellCommand(t *testing.T) {
	d := Detect(",git status")
	if d == nil {
		t.Fatal("expected a detected command")
	}
	if d.Kind != Shell {
		t.Fatalf("expected Shell kind, got %v", d.Kind)
	}
	if d.Name != "git" {
		t.Fatalf("expected name 'git', got %q", d.Name)
	}
	if d.Raw != "git status" {
		t.Fatalf("expected raw 'git status', got %q", d.Raw)
	}
}

func TestDetectInternalCommand(t *testing.T) {
	d := Detect(",tape.info")
	if d == nil || d.Kind != Internal || d.Name != "tape.info" {
		t.Fatalf("unexpected result: %+v", d)
	}
}

func TestDetectInternalCommandWithKwargs(t *testing.T) {
	d := Detect(`,handoff name=phase-1 summary="bootstrap done"`)
	if d == nil || d.Kind != Internal || d.Name != "handoff" {
		t.Fatalf("unexpected result: %+v", d)
	}
	if v, ok := d.Args.Get("name"); !ok || v != "phase-1" {
		t.Fatalf("expected name=phase-1, got %q ok=%v", v, ok)
	}
	if v, ok := d.Args.Get("summary"); !ok || v != "bootstrap done" {
		t.Fatalf("expected summary with quotes stripped, got %q ok=%v", v, ok)
	}
}

func TestDetectInternalCommandWithFlagsAndPositional(t *testing.T) {
	d := Detect(",tape.reset extra --archive")
	if d == nil || d.Kind != Internal {
		t.Fatalf("unexpected result: %+v", d)
	}
	if !d.Args.HasFlag("archive") {
		t.Fatal("expected --archive flag to be set")
	}
	if len(d.Args.Positional) != 1 || d.Args.Positional[0] != "extra" {
		t.Fatalf("expected positional [extra], got %v", d.Args.Positional)
	}
}

func TestDetectInternalCommandLongFormKwarg(t *testing.T) {
	d := Detect(",tool.describe --name shell.exec")
	if d == nil {
		t.Fatal("expected detected")
	}
	if v, ok := d.Args.Get("name"); !ok || v != "shell.exec" {
		t.Fatalf("expected name=shell.exec via space form, got %q ok=%v", v, ok)
	}
}

func TestShellSplitQuoting(t *testing.T) {
	tokens := shellSplit(`echo "hello world" 'single quoted' unquoted\ escaped`)
	want := []string{"echo", "hello world", "single quoted", "unquoted escaped"}
	if len(tokens) != len(want) {
		t.Fatalf("expected %v, got %v", want, tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("token %d: expected %q, got %q", i, want[i], tokens[i])
		}
	}
}

func TestShellSplitUnterminatedQuoteTolerated(t *testing.T) {
	tokens := shellSplit(`echo "unterminated`)
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %v", tokens)
	}
	if tokens[1] != "unterminated" {
		t.Fatalf("expected trailing token 'unterminated', got %q", tokens[1])
	}
}

func TestUnknownNameFallsBackToShell(t *testing.T) {
	d := Detect(",notacommand --flag")
	if d == nil || d.Kind != Shell {
		t.Fatalf("expected Shell kind fallback, got %+v", d)
	}
	if d.Raw != "notacommand --flag" {
		t.Fatalf("expected raw line preserved, got %q", d.Raw)
	}
}
