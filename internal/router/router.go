// Package router decides, for each turn, whether input goes straight to
// the model or gets handled as an internal/shell command first. For
// assistant output, it scans for comma-prefixed commands the model itself
// issued and executes them before the reply reaches the user.
package router

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/crabclaw-go/crabclaw/internal/command"
	"github.com/crabclaw-go/crabclaw/internal/sandbox"
	"github.com/crabclaw-go/crabclaw/internal/skills"
	"github.com/crabclaw-go/crabclaw/internal/tape"
	"github.com/crabclaw-go/crabclaw/internal/tools"
)

// UserRouteResult is the routing outcome for one line of user input.
type UserRouteResult struct {
	EnterModel      bool
	ModelPrompt     string
	ImmediateOutput string
	ExitRequested   bool
}

// AssistantRouteResult is the routing outcome for one assistant reply.
type AssistantRouteResult struct {
	VisibleText    string
	CommandBlocks  []string
	ExitRequested  bool
}

// HasCommands reports whether any commands were detected and executed.
func (r AssistantRouteResult) HasCommands() bool { return len(r.CommandBlocks) > 0 }

// NextPrompt joins the command result blocks for feeding back to the model.
func (r AssistantRouteResult) NextPrompt() string { return strings.Join(r.CommandBlocks, "\n") }

type commandResult struct {
	success       bool
	output        string
	exitRequested bool
}

// RouteUser implements the user-input routing algorithm: empty input is
// ignored, a comma-prefixed line is parsed as a command and executed
// (falling back to the model with structured context on failure), and
// everything else is natural language sent straight to the model.
func RouteUser(input string, tapeStore *tape.Store, workspace string, registry *tools.Registry) UserRouteResult {
	stripped := strings.TrimSpace(input)
	if stripped == "" {
		return UserRouteResult{}
	}

	detected := command.Detect(stripped)
	if detected == nil {
		tapeStore.AppendEvent("route", map[string]string{"kind": "model", "input": stripped})
		return UserRouteResult{EnterModel: true, ModelPrompt: stripped}
	}

	switch detected.Kind {
	case command.Internal:
		result := executeInternal(detected.Name, tapeStore, detected.Args, workspace, registry)

		tapeStore.AppendEvent("command", map[string]any{
			"origin": "human",
			"kind":   "internal",
			"name":   detected.Name,
			"status": statusOf(result.success),
			"output": result.output,
		})

		if result.exitRequested {
			return UserRouteResult{ExitRequested: true}
		}
		if result.success {
			return UserRouteResult{ImmediateOutput: result.output}
		}
		context := fmt.Sprintf("<command name=%q status=\"error\">\n%s\n</command>", detected.Name, result.output)
		return UserRouteResult{EnterModel: true, ModelPrompt: context, ImmediateOutput: result.output}

	default: // command.Shell
		shellResult := sandbox.Run(workspace, detected.Raw)
		display := sandbox.FormatOutput(shellResult)

		tapeStore.AppendEvent("command", map[string]any{
			"origin":    "human",
			"kind":      "shell",
			"cmd":       detected.Raw,
			"exit_code": shellResult.ExitCode,
			"timed_out": shellResult.TimedOut,
			"stdout":    shellResult.Stdout,
			"stderr":    shellResult.Stderr,
		})

		if shellResult.ExitCode == 0 && !shellResult.TimedOut {
			return UserRouteResult{ImmediateOutput: display}
		}
		context := sandbox.WrapFailureContext(detected.Raw, shellResult)
		return UserRouteResult{EnterModel: true, ModelPrompt: context, ImmediateOutput: display}
	}
}

// RouteAssistant scans assistant output line by line for comma-prefixed
// commands, executing each one (shell commands via sandbox, internal
// commands via executeInternal) and accumulating their results as
// command_blocks. Lines that aren't commands remain visible_text. A
// `,quit` from the assistant is never honored.
func RouteAssistant(text string, tapeStore *tape.Store, workspace string, registry *tools.Registry) AssistantRouteResult {
	var visibleLines []string
	var commandBlocks []string
	exitRequested := false

	for _, line := range strings.Split(text, "\n") {
		stripped := strings.TrimSpace(line)

		// Fence markers are suppressed from visible output once commands
		// start firing; comma-lines inside a fence still dispatch, same as
		// user input.
		if strings.HasPrefix(stripped, "```") {
			if len(commandBlocks) > 0 {
				continue
			}
			visibleLines = append(visibleLines, line)
			continue
		}

		detected := command.Detect(stripped)
		if detected == nil {
			visibleLines = append(visibleLines, line)
			continue
		}

		switch detected.Kind {
		case command.Shell:
			shellResult := sandbox.Run(workspace, detected.Raw)

			tapeStore.AppendEvent("command", map[string]any{
				"origin":    "assistant",
				"kind":      "shell",
				"cmd":       detected.Raw,
				"exit_code": shellResult.ExitCode,
				"timed_out": shellResult.TimedOut,
				"stdout":    shellResult.Stdout,
				"stderr":    shellResult.Stderr,
			})

			var block string
			if shellResult.ExitCode == 0 && !shellResult.TimedOut {
				block = fmt.Sprintf("<command name=%q status=\"ok\">\n%s\n</command>", detected.Raw, sandbox.FormatOutput(shellResult))
			} else {
				block = sandbox.WrapFailureContext(detected.Raw, shellResult)
			}
			commandBlocks = append(commandBlocks, block)

		case command.Internal:
			if detected.Name == "quit" {
				visibleLines = append(visibleLines, line)
				continue
			}

			result := executeInternal(detected.Name, tapeStore, detected.Args, workspace, registry)

			tapeStore.AppendEvent("command", map[string]any{
				"origin": "assistant",
				"kind":   "internal",
				"name":   detected.Name,
				"status": statusOf(result.success),
				"output": result.output,
			})

			block := fmt.Sprintf("<command name=%q status=%q>\n%s\n</command>", detected.Name, statusOf(result.success), result.output)
			commandBlocks = append(commandBlocks, block)

			if result.exitRequested {
				exitRequested = true
			}
		}
	}

	visibleText := text
	if len(commandBlocks) > 0 {
		visibleText = strings.TrimSpace(strings.Join(visibleLines, "\n"))
	}

	return AssistantRouteResult{
		VisibleText:   visibleText,
		CommandBlocks: commandBlocks,
		ExitRequested: exitRequested,
	}
}

func statusOf(success bool) string {
	if success {
		return "ok"
	}
	return "error"
}

func executeInternal(name string, tapeStore *tape.Store, args command.Args, workspace string, registry *tools.Registry) commandResult {
	switch name {
	case "help":
		return executeHelp()
	case "quit":
		return commandResult{success: true, output: "exit", exitRequested: true}
	case "tape.info", "tape":
		return executeTapeInfo(tapeStore)
	case "tape.reset":
		return executeTapeReset(tapeStore, args.HasFlag("archive"))
	case "tape.search":
		return executeTapeSearch(tapeStore, strings.Join(args.Positional, " "))
	case "anchors":
		return executeAnchors(tapeStore)
	case "handoff":
		return executeHandoff(tapeStore, args)
	case "tools":
		return executeTools(registry)
	case "tool.describe":
		return executeToolDescribe(args, registry)
	case "skills":
		return executeSkills(workspace)
	case "skills.describe":
		return executeSkillsDescribe(args, workspace)
	default:
		return commandResult{success: false, output: fmt.Sprintf("unknown internal command: %s", name)}
	}
}

func executeHelp() commandResult {
	help := strings.Join([]string{
		"Available commands:",
		"  ,help               — Show this help",
		"  ,quit               — Exit the session",
		"  ,tape               — Show tape session info",
		"  ,tape.info          — Show tape session info (alias)",
		"  ,tape.reset         — Reset the tape (--archive to keep backup)",
		"  ,tape.search <q>    — Search tape entries by content",
		"  ,anchors            — List all anchors in the tape",
		"  ,handoff [name]     — Create a handoff anchor (resets context window)",
		"  ,tools              — List all registered tools",
		"  ,tool.describe <n>  — Show tool details and parameter schema",
		"  ,skills             — List discovered skills",
		"  ,skills.describe <n>— Show full body of a skill",
		"  ,<shell command>    — Execute a shell command (e.g. ,ls, ,git status)",
	}, "\n")
	return commandResult{success: true, output: help}
}

func executeTapeInfo(tapeStore *tape.Store) commandResult {
	info := tapeStore.Info()
	display := map[string]any{
		"name":                      info.Name,
		"entries":                   info.EntryCount,
		"anchors":                   info.AnchorCount,
		"last_anchor":               info.LastAnchor,
		"entries_since_last_anchor": info.EntriesSince,
	}
	raw, err := json.MarshalIndent(display, "", "  ")
	if err != nil {
		return commandResult{success: true, output: fmt.Sprintf("%+v", info)}
	}
	return commandResult{success: true, output: string(raw)}
}

func executeTapeReset(tapeStore *tape.Store, archive bool) commandResult {
	archivedPath, err := tapeStore.Reset(archive)
	if err != nil {
		return commandResult{success: false, output: fmt.Sprintf("failed to reset tape: %v", err)}
	}
	if archivedPath != "" {
		return commandResult{success: true, output: fmt.Sprintf("Tape reset. Archived: %s", archivedPath)}
	}
	return commandResult{success: true, output: "Tape reset."}
}

func executeTapeSearch(tapeStore *tape.Store, query string) commandResult {
	if query == "" {
		return commandResult{success: false, output: "Usage: ,tape.search <query>"}
	}
	results := tapeStore.Search(query)
	if len(results) == 0 {
		return commandResult{success: true, output: fmt.Sprintf("No entries matching '%s'.", query)}
	}
	var lines []string
	for _, e := range results {
		preview := tape.Preview(e, 80)
		lines = append(lines, fmt.Sprintf("  [%s] %s #%d: %s", e.Timestamp.Format("2006-01-02T15:04:05Z"), e.Kind, e.ID, preview))
	}
	return commandResult{success: true, output: fmt.Sprintf("Found %d match(es) for '%s':\n%s", len(results), query, strings.Join(lines, "\n"))}
}

func executeAnchors(tapeStore *tape.Store) commandResult {
	var anchors []tape.Entry
	for _, e := range tapeStore.Entries() {
		if e.Kind == tape.KindAnchor {
			anchors = append(anchors, e)
		}
	}
	if len(anchors) == 0 {
		return commandResult{success: true, output: "No anchors in tape."}
	}
	var lines []string
	for _, a := range anchors {
		var payload tape.AnchorPayload
		name := "unnamed"
		if json.Unmarshal(a.Payload, &payload) == nil && payload.Name != "" {
			name = payload.Name
		}
		lines = append(lines, fmt.Sprintf("  #%d [%s] %s", a.ID, a.Timestamp.Format("2006-01-02T15:04:05Z"), name))
	}
	return commandResult{success: true, output: fmt.Sprintf("Anchors (%d):\n%s", len(anchors), strings.Join(lines, "\n"))}
}

func executeHandoff(tapeStore *tape.Store, args command.Args) commandResult {
	anchorName := "handoff"
	if len(args.Positional) > 0 {
		anchorName = strings.Join(args.Positional, " ")
	}
	info := tapeStore.Info()
	_, err := tapeStore.Anchor(anchorName, map[string]any{
		"owner":           "human",
		"type":            "handoff",
		"entries_before":  info.EntryCount,
		"previous_anchor": info.LastAnchor,
	})
	if err != nil {
		return commandResult{success: false, output: fmt.Sprintf("Failed to create anchor: %v", err)}
	}
	return commandResult{success: true, output: fmt.Sprintf(
		"Handoff anchor '%s' created. Context window reset (%d entries before).", anchorName, info.EntryCount)}
}

func executeTools(registry *tools.Registry) commandResult {
	if registry == nil {
		return commandResult{success: true, output: "No tools registered."}
	}
	rows := registry.CompactRows()
	if len(rows) == 0 {
		return commandResult{success: true, output: "No tools registered."}
	}
	lines := []string{fmt.Sprintf("Registered tools (%d):", len(rows))}
	for _, row := range rows {
		lines = append(lines, "  "+row)
	}
	return commandResult{success: true, output: strings.Join(lines, "\n")}
}

func executeToolDescribe(args command.Args, registry *tools.Registry) commandResult {
	if len(args.Positional) == 0 {
		return commandResult{success: false, output: "Usage: ,tool.describe <tool_name>"}
	}
	name := args.Positional[0]
	if registry == nil {
		return commandResult{success: false, output: fmt.Sprintf("Tool not found: %s", name)}
	}
	descriptor, ok := registry.Get(name)
	if !ok {
		return commandResult{success: false, output: fmt.Sprintf("Tool not found: %s", name)}
	}
	params := toolParametersFor(name)
	raw, _ := json.MarshalIndent(params, "", "  ")
	return commandResult{success: true, output: fmt.Sprintf(
		"Tool: %s\nDescription: %s\nSource: %s\nParameters:\n%s",
		descriptor.Name, descriptor.Description, descriptor.Source, string(raw))}
}

func toolParametersFor(name string) map[string]any {
	for _, s := range tools.BuiltinSpecs() {
		if s.Name == name {
			return s.Parameters
		}
	}
	return map[string]any{"type": "object", "properties": map[string]any{}, "required": []string{}}
}

func executeSkills(workspace string) commandResult {
	discovered := skills.Discover(workspace)
	if len(discovered) == 0 {
		return commandResult{success: true, output: "No skills discovered."}
	}
	lines := []string{fmt.Sprintf("Discovered skills (%d):", len(discovered))}
	for _, s := range discovered {
		lines = append(lines, fmt.Sprintf("  %s: %s [%s]", s.Name, s.Description, s.Source))
	}
	return commandResult{success: true, output: strings.Join(lines, "\n")}
}

func executeSkillsDescribe(args command.Args, workspace string) commandResult {
	if len(args.Positional) == 0 {
		return commandResult{success: false, output: "usage: ,skills.describe <name>"}
	}
	name := args.Positional[0]
	for _, s := range skills.Discover(workspace) {
		if s.Name == name {
			return commandResult{success: true, output: s.Body}
		}
	}
	return commandResult{success: false, output: fmt.Sprintf("skill not found: %s", name)}
}
