// Package agentloop implements the per-session façade that binds the
// tape, router, progressive tool view, and model runner behind the
// `HandleInput` and `HandleInputStream` entry points the channel adapters
// call.
package agentloop

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/crabclaw-go/crabclaw/internal/config"
	"github.com/crabclaw-go/crabclaw/internal/contextbuild"
	"github.com/crabclaw-go/crabclaw/internal/llmwire"
	"github.com/crabclaw-go/crabclaw/internal/modelrunner"
	"github.com/crabclaw-go/crabclaw/internal/router"
	"github.com/crabclaw-go/crabclaw/internal/schedule"
	"github.com/crabclaw-go/crabclaw/internal/skills"
	"github.com/crabclaw-go/crabclaw/internal/tape"
	"github.com/crabclaw-go/crabclaw/internal/tools"
)

// tapeDir is the workspace-relative directory every session's tape file
// lives under.
const tapeDir = ".crabclaw"

// Loop is one session's agent loop: it owns that session's tape, its
// progressive tool view, and the dependencies every tool call needs.
type Loop struct {
	SessionID string
	Workspace string
	Config    config.Config

	Tape      *tape.Store
	Registry  *tools.Registry
	View      *tools.ProgressiveView
	Scheduler *schedule.Scheduler

	skillsMu   sync.RWMutex
	toolSkills []skills.Skill

	notifier    func(string)
	agentRunner func(string) string
}

// Result is the outcome of one call to HandleInput.
type Result struct {
	ImmediateOutput string
	AssistantOutput string
	ExitRequested   bool
	ToolRounds      int
	Err             error
}

// sessionFileName turns a session id into the tape's on-disk file stem:
// any ':' is replaced with '_' so ids like "interactive:local" stay
// filename-safe.
func sessionFileName(sessionID string) string {
	return strings.ReplaceAll(sessionID, ":", "_")
}

// Open opens (or creates) the agent loop for one session: it opens the
// session's tape, builds the tool registry (builtins plus discovered
// workspace skills), and ensures a bootstrap anchor exists.
func Open(cfg config.Config, workspace, sessionID string, notifier func(string), agentRunner func(string) string) (*Loop, error) {
	store, err := tape.Open(filepath.Join(workspace, tapeDir), sessionFileName(sessionID))
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBootstrapAnchor(); err != nil {
		return nil, err
	}

	registry := tools.BuiltinRegistry()
	discovered := skills.Discover(workspace)
	for _, sk := range discovered {
		registry.Register("skill."+sk.Name, sk.Description, sk.Source)
	}

	l := &Loop{
		SessionID:   sessionID,
		Workspace:   workspace,
		Config:      cfg,
		Tape:        store,
		Registry:    registry,
		View:        tools.NewProgressiveView(registry),
		Scheduler:   schedule.Global(),
		toolSkills:  discovered,
		notifier:    notifier,
		agentRunner: agentRunner,
	}
	// A scheduled Agent-mode job re-enters this same session by default;
	// callers only need to supply their own agentRunner to redirect that
	// re-entry somewhere else (a different loop, a stub for tests, etc).
	if l.agentRunner == nil {
		l.agentRunner = l.AgentRunnerFunc()
	}
	return l, nil
}

// HandleInput runs one full turn of the agent loop for a line of input:
// route it, and if it needs the model, build context, run the bounded
// tool-calling iteration, and post-process the assistant's reply.
func (l *Loop) HandleInput(ctx context.Context, text string) Result {
	return l.handleInput(ctx, text, nil)
}

// HandleInputStream behaves like HandleInput but streams assistant tokens
// to onToken as they arrive.
func (l *Loop) HandleInputStream(ctx context.Context, text string, onToken func(string)) Result {
	return l.handleInput(ctx, text, onToken)
}

func (l *Loop) handleInput(ctx context.Context, text string, onToken func(string)) Result {
	route := router.RouteUser(text, l.Tape, l.Workspace, l.Registry)
	if route.ExitRequested {
		return Result{ExitRequested: true}
	}
	if !route.EnterModel {
		return Result{ImmediateOutput: route.ImmediateOutput}
	}

	if _, err := l.Tape.AppendMessage("user", route.ModelPrompt); err != nil {
		return Result{ImmediateOutput: route.ImmediateOutput, Err: err}
	}

	toolDefs := l.View.ToolDefinitions()
	systemPrompt := contextbuild.BuildSystemPrompt(l.Config.SystemPrompt, l.Workspace)
	messages := contextbuild.BuildMessages(l.Tape, systemPrompt, l.Config.MaxContextMsg)

	exec := l.toolExecutor()
	llmCfg := llmwire.Config{APIBase: l.Config.APIBase, APIKey: l.Config.APIKey}

	var turn modelrunner.Result
	if onToken != nil {
		turn = modelrunner.RunTurnStream(ctx, llmCfg, l.Config.Model, messages, toolDefs, exec, onToken)
	} else {
		turn = modelrunner.RunTurn(ctx, llmCfg, l.Config.Model, messages, toolDefs, exec)
	}

	if turn.Err != nil {
		return Result{ImmediateOutput: route.ImmediateOutput, ToolRounds: turn.ToolRounds, Err: turn.Err}
	}

	l.View.ActivateHints(turn.AssistantText)

	assistantRoute := router.RouteAssistant(turn.AssistantText, l.Tape, l.Workspace, l.Registry)
	if assistantRoute.HasCommands() {
		if _, err := l.Tape.AppendMessage("assistant", turn.AssistantText); err != nil {
			return Result{ImmediateOutput: route.ImmediateOutput, ToolRounds: turn.ToolRounds, Err: err}
		}
		if _, err := l.Tape.AppendEvent("assistant_command_results", map[string]any{
			"blocks": assistantRoute.CommandBlocks,
		}); err != nil {
			return Result{ImmediateOutput: route.ImmediateOutput, ToolRounds: turn.ToolRounds, Err: err}
		}
		return Result{
			ImmediateOutput: route.ImmediateOutput,
			AssistantOutput: assistantRoute.VisibleText,
			ExitRequested:   assistantRoute.ExitRequested,
			ToolRounds:      turn.ToolRounds,
		}
	}

	if _, err := l.Tape.AppendMessage("assistant", turn.AssistantText); err != nil {
		return Result{ImmediateOutput: route.ImmediateOutput, ToolRounds: turn.ToolRounds, Err: err}
	}
	return Result{
		ImmediateOutput: route.ImmediateOutput,
		AssistantOutput: turn.AssistantText,
		ToolRounds:      turn.ToolRounds,
	}
}

// toolExecutor closes over this loop's dependencies to satisfy
// modelrunner.ToolExecutor, wiring the scheduler's notifier/agent-runner
// context per call rather than leaking it into global state.
func (l *Loop) toolExecutor() modelrunner.ToolExecutor {
	return func(_ context.Context, name, argsJSON string) string {
		l.skillsMu.RLock()
		currentSkills := l.toolSkills
		l.skillsMu.RUnlock()

		deps := tools.Deps{
			Tape:      l.Tape,
			Workspace: l.Workspace,
			Scheduler: l.Scheduler,
			Skills:    currentSkills,
			Registry:  l.Registry,
		}
		toolCtx := tools.Context{
			Notifier:    l.notifier,
			AgentRunner: l.agentRunner,
		}
		return tools.ExecuteTool(name, argsJSON, deps, toolCtx)
	}
}

// ResetTape clears the tape and the progressive view's expanded tool set.
// The `,tape.reset` command does not go through here: the router resets
// the tape store directly and leaves the expanded tool set as it is.
func (l *Loop) ResetTape(archive bool) (string, error) {
	archived, err := l.Tape.Reset(archive)
	if err != nil {
		return "", err
	}
	l.View.Reset()
	return archived, nil
}

// StartSkillWatcher watches the workspace's .agent/skills directory and,
// on every change under it, re-runs discovery and registers each
// discovered skill as a tool, so long-lived sessions (interactive, serve)
// pick up added and edited skills without a restart. A removed skill
// drops out of the loop's skill list, but its `skill.<name>` entry stays
// in the Registry. stop, when closed, tears the watcher down. One-shot
// `run` invocations have no use for this and never call it.
func (l *Loop) StartSkillWatcher(stop <-chan struct{}) error {
	return skills.Watch(l.Workspace, stop, func(discovered []skills.Skill) {
		l.skillsMu.Lock()
		l.toolSkills = discovered
		l.skillsMu.Unlock()
		for _, sk := range discovered {
			l.Registry.Register("skill."+sk.Name, sk.Description, sk.Source)
		}
		slog.Info("skills: reloaded", "count", len(discovered))
	})
}

// AgentRunnerFunc adapts a Loop into a schedule.AgentRunner: re-entering
// the agent loop with a scheduled job's message as synthesized user input,
// and returning the resulting assistant text (or immediate output, for
// command-style messages) for the scheduler to hand to its Notifier.
func (l *Loop) AgentRunnerFunc() schedule.AgentRunner {
	return func(message string) string {
		result := l.HandleInput(context.Background(), message)
		if result.Err != nil {
			return "error: " + result.Err.Error()
		}
		if result.AssistantOutput != "" {
			return result.AssistantOutput
		}
		return result.ImmediateOutput
	}
}
