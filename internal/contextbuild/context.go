// Package contextbuild turns a tape into the message list sent to the
// model, and resolves the system prompt from config, workspace file, or
// built-in default.
package contextbuild

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/crabclaw-go/crabclaw/internal/llmwire"
	"github.com/crabclaw-go/crabclaw/internal/tape"
)

const defaultSystemPrompt = `You are CrabClaw, a helpful coding assistant running in a terminal environment.

You have access to the following tools:
- shell.exec: Execute shell commands in the user's workspace
- file.read: Read file contents (workspace-sandboxed)
- file.write: Write or create files (workspace-sandboxed)
- file.list: List directory contents
- file.search: Search for text within files (recursive grep)

You can also access any discovered skills from the workspace.

When helping the user:
- Be concise and actionable
- Use tools proactively when they would help answer the question
- If a shell command fails, analyze the error and suggest fixes
- Prefer reading files over asking the user to paste code`

// BuildSystemPrompt resolves the active system prompt: an explicit
// config override wins, then a workspace `.agent/system-prompt.md` file,
// then the built-in default.
func BuildSystemPrompt(configPrompt string, workspace string) string {
	if trimmed := strings.TrimSpace(configPrompt); trimmed != "" {
		return configPrompt
	}

	customPath := filepath.Join(workspace, ".agent", "system-prompt.md")
	if data, err := os.ReadFile(customPath); err == nil {
		if trimmed := strings.TrimSpace(string(data)); trimmed != "" {
			return trimmed
		}
	}

	return defaultSystemPrompt
}

// BuildMessages assembles the message list for one model turn: an
// optional system prompt, followed by tape messages since the last
// anchor, truncated to the last maxContextMessages with a truncation
// notice if the window was exceeded.
func BuildMessages(tapeStore *tape.Store, systemPrompt string, maxContextMessages int) []llmwire.Message {
	var messages []llmwire.Message

	if trimmed := strings.TrimSpace(systemPrompt); trimmed != "" {
		messages = append(messages, llmwire.SystemMessage(systemPrompt))
	}

	var tapeMessages []llmwire.Message
	for _, entry := range tapeStore.EntriesSinceLastAnchor() {
		if entry.Kind != tape.KindMessage {
			continue
		}
		var payload tape.MessagePayload
		if err := json.Unmarshal(entry.Payload, &payload); err != nil {
			continue
		}
		if payload.Content == "" {
			continue
		}
		role := payload.Role
		if role == "" {
			role = "user"
		}
		tapeMessages = append(tapeMessages, llmwire.Message{Role: role, Content: payload.Content})
	}

	if maxContextMessages > 0 && len(tapeMessages) > maxContextMessages {
		messages = append(messages, llmwire.SystemMessage(
			"Older messages in this session have been truncated to fit the context window."))
		keepStart := len(tapeMessages) - maxContextMessages
		messages = append(messages, tapeMessages[keepStart:]...)
	} else {
		messages = append(messages, tapeMessages...)
	}

	return messages
}
