package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/crabclaw-go/crabclaw/internal/fileops"
	"github.com/crabclaw-go/crabclaw/internal/sandbox"
	"github.com/crabclaw-go/crabclaw/internal/schedule"
	"github.com/crabclaw-go/crabclaw/internal/skills"
	"github.com/crabclaw-go/crabclaw/internal/tape"
	"github.com/crabclaw-go/crabclaw/internal/webtools"
)

// Deps bundles everything a tool call may need beyond its own arguments.
type Deps struct {
	Tape      *tape.Store
	Workspace string
	Scheduler *schedule.Scheduler
	Skills    []skills.Skill
	Registry  *Registry
}

// ExecuteTool dispatches one tool call by name: a fixed set of builtins
// plus a `skill.<name>` prefix fallback into discovered workspace skills.
// Failures come back as strings, never errors, so the model can see them.
func ExecuteTool(name, argsJSON string, deps Deps, ctx Context) string {
	args := map[string]any{}
	if strings.TrimSpace(argsJSON) != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return fmt.Sprintf("Error: invalid arguments JSON: %v", err)
		}
	}

	switch name {
	case "tape.info":
		info := deps.Tape.Info()
		return fmt.Sprintf("tape=%s entries=%d messages=%d anchors=%d last_anchor=%s entries_since_anchor=%d next_id=%d",
			info.Name, info.EntryCount, info.MessageCount, info.AnchorCount, info.LastAnchor, info.EntriesSince, info.NextID)

	case "tape.reset":
		return "Error: resetting the tape requires the ,tape.reset command."

	case "help":
		return helpText()

	case "tools":
		if deps.Registry == nil {
			return "(no tools registered)"
		}
		return strings.Join(deps.Registry.CompactRows(), "\n")

	case "skills":
		if len(deps.Skills) == 0 {
			return "(no skills discovered)"
		}
		var rows []string
		for _, sk := range deps.Skills {
			rows = append(rows, fmt.Sprintf("skill.%s: %s [%s]", sk.Name, sk.Description, sk.Source))
		}
		return strings.Join(rows, "\n")

	case "shell.exec":
		command, err := requiredString(args, "command")
		if err != "" {
			return err
		}
		result := sandbox.Run(deps.Workspace, command)
		if result.ExitCode != 0 || result.TimedOut {
			return sandbox.WrapFailureContext(command, result)
		}
		return sandbox.FormatOutput(result)

	case "file.read":
		path, errStr := requiredString(args, "path")
		if errStr != "" {
			return errStr
		}
		return fileops.Read(deps.Workspace, path)

	case "file.write":
		path, errStr := requiredString(args, "path")
		if errStr != "" {
			return errStr
		}
		content, errStr := requiredString(args, "content")
		if errStr != "" {
			return errStr
		}
		return fileops.Write(deps.Workspace, path, content)

	case "file.list":
		path, _ := optionalString(args, "path")
		return fileops.List(deps.Workspace, path)

	case "file.search":
		query, errStr := requiredString(args, "query")
		if errStr != "" {
			return errStr
		}
		path, _ := optionalString(args, "path")
		return fileops.Search(deps.Workspace, query, path)

	case "file.edit":
		path, errStr := requiredString(args, "path")
		if errStr != "" {
			return errStr
		}
		old, errStr := requiredString(args, "old")
		if errStr != "" {
			return errStr
		}
		newText, errStr := requiredString(args, "new")
		if errStr != "" {
			return errStr
		}
		replaceAll, _ := args["replace_all"].(bool)
		return fileops.Edit(deps.Workspace, path, old, newText, replaceAll)

	case "web.fetch":
		url, errStr := requiredString(args, "url")
		if errStr != "" {
			return errStr
		}
		return webtools.Fetch(url)

	case "web.search":
		query, errStr := requiredString(args, "query")
		if errStr != "" {
			return errStr
		}
		return webtools.Search(query)

	case "schedule.add":
		return dispatchScheduleAdd(args, deps, ctx)

	case "schedule.list":
		if deps.Scheduler == nil {
			return "(no scheduled jobs)"
		}
		return deps.Scheduler.ListJobs()

	case "schedule.remove":
		jobID, errStr := requiredString(args, "job_id")
		if errStr != "" {
			return errStr
		}
		if deps.Scheduler == nil {
			return fmt.Sprintf("Error: job not found: %s", jobID)
		}
		return deps.Scheduler.RemoveJob(jobID)

	default:
		if strings.HasPrefix(name, "skill.") {
			return dispatchSkill(strings.TrimPrefix(name, "skill."), deps)
		}
		return fmt.Sprintf("Unknown tool: %s", name)
	}
}

func dispatchSkill(skillName string, deps Deps) string {
	for _, sk := range deps.Skills {
		if sk.Name == skillName {
			return sk.Body
		}
	}
	return fmt.Sprintf("Unknown tool: skill.%s", skillName)
}

func dispatchScheduleAdd(args map[string]any, deps Deps, ctx Context) string {
	message, errStr := requiredString(args, "message")
	if errStr != "" {
		return errStr
	}
	if deps.Scheduler == nil {
		return "Error: scheduling is unavailable in this context."
	}

	after := optionalUint64(args, "after_seconds")
	interval := optionalUint64(args, "interval_seconds")

	mode := schedule.Reminder
	if modeStr, _ := optionalString(args, "mode"); modeStr == string(schedule.Agent) {
		mode = schedule.Agent
	}

	return deps.Scheduler.AddJob(message, after, interval, mode, ctx.Notifier, ctx.AgentRunner)
}

func requiredString(args map[string]any, key string) (string, string) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Sprintf("Error: '%s' argument is required.", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Sprintf("Error: '%s' argument is required.", key)
	}
	return s, ""
}

func optionalString(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func optionalUint64(args map[string]any, key string) *uint64 {
	v, ok := args[key]
	if !ok {
		return nil
	}
	f, ok := v.(float64)
	if !ok || f < 0 {
		return nil
	}
	u := uint64(f)
	return &u
}

func helpText() string {
	return strings.Join([]string{
		",help             show this message",
		",quit             end the session",
		",tape.info        summarize the conversation tape",
		",tape.reset       clear the tape and start fresh",
		",tape.search <q>  search the tape for a query",
		",anchors          list tape anchors",
		",handoff <name>   write a new anchor",
		",tools            list registered tools",
		",tool.describe <name>  show a tool's full schema",
		",skills           list discovered workspace skills",
		",skills.describe <name>  show a skill's body",
	}, "\n")
}
