package agentloop

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/crabclaw-go/crabclaw/internal/config"
)

func newLoop(t *testing.T, apiBase string) *Loop {
	t.Helper()
	ws := t.TempDir()
	cfg := config.Config{APIBase: apiBase, APIKey: "test", Model: "gpt-test", MaxContextMsg: 50}
	l, err := Open(cfg, ws, "sess:1", nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return l
}

// TestQuitShortCircuit covers end-to-end scenario 1: ",quit" exits
// immediately and the tape grows by exactly one command event, without
// ever invoking the model.
func TestQuitShortCircuit(t *testing.T) {
	l := newLoop(t, "http://unused.invalid")
	before := len(l.Tape.Entries())

	result := l.HandleInput(context.Background(), ",quit")
	if !result.ExitRequested {
		t.Fatal("expected exit requested")
	}
	after := len(l.Tape.Entries())
	if after != before+1 {
		t.Fatalf("expected tape to grow by exactly one entry, got %d -> %d", before, after)
	}
}

// TestShellSuccessSkipsModel covers scenario 2: a successful shell command
// returns its output immediately without entering the model.
func TestShellSuccessSkipsModel(t *testing.T) {
	l := newLoop(t, "http://unused.invalid")
	result := l.HandleInput(context.Background(), ",echo hello")
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if !strings.Contains(result.ImmediateOutput, "hello") {
		t.Fatalf("expected output to contain hello, got %q", result.ImmediateOutput)
	}
	if result.AssistantOutput != "" {
		t.Fatalf("expected no model invocation, got assistant output %q", result.AssistantOutput)
	}
}

// TestToolLoopOneRoundThenFinal covers scenario 5: the model requests the
// `tools` tool once, then replies with final text on the next call.
func TestToolLoopOneRoundThenFinal(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{{
					"message": map[string]any{
						"role":    "assistant",
						"content": "",
						"tool_calls": []map[string]any{{
							"id":       "call_1",
							"type":     "function",
							"function": map[string]any{"name": "tools", "arguments": "{}"},
						}},
					},
				}},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{"role": "assistant", "content": "Found 5 tools."},
			}},
		})
	}))
	defer srv.Close()

	l := newLoop(t, srv.URL)
	result := l.HandleInput(context.Background(), "how many tools are there?")
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.AssistantOutput != "Found 5 tools." {
		t.Fatalf("unexpected assistant output: %q", result.AssistantOutput)
	}
	if result.ToolRounds != 1 {
		t.Fatalf("expected 1 tool round, got %d", result.ToolRounds)
	}
}

// TestHandoffTruncatesContext covers end-to-end scenario 4: messages
// before a handoff anchor don't appear in the next turn's context.
func TestHandoffTruncatesContext(t *testing.T) {
	l := newLoop(t, "http://unused.invalid")
	l.Tape.AppendMessage("user", "old one")
	l.Tape.AppendMessage("user", "old two")

	if r := l.HandleInput(context.Background(), ",handoff x"); r.Err != nil {
		t.Fatalf("handoff: %v", r.Err)
	}

	l.Tape.AppendMessage("user", "new one")
	l.Tape.AppendMessage("user", "new two")

	since := l.Tape.EntriesSinceLastAnchor()
	count := 0
	for _, e := range since {
		if e.Kind == "message" {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("expected 2 messages since handoff anchor, got %d", count)
	}
}
