// Package tools implements the tool registry, the progressive tool view
// that keeps unneeded tool schemas out of context, and the execute_tool
// dispatcher that backs every tool call the model makes.
package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Descriptor is one registered tool's metadata.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

// Registry is a name-sorted table of registered tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Descriptor)}
}

// Register adds or overwrites a tool entry.
func (r *Registry) Register(name, description, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = Descriptor{Name: name, Description: description, Source: source}
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Get looks up a tool by (case-sensitive) name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	return d, ok
}

// List returns all tool descriptors sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.tools))
	for _, d := range r.tools {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CompactRows renders `name: description [source]` rows for all tools.
func (r *Registry) CompactRows() []string {
	var rows []string
	for _, d := range r.List() {
		rows = append(rows, fmt.Sprintf("%s: %s [%s]", d.Name, d.Description, d.Source))
	}
	return rows
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Context is passed into every tool execution so session-specific
// callbacks (notifications, agent re-entry) never need to live in global
// state.
type Context struct {
	Notifier    func(string)
	AgentRunner func(string) string
}

// BuiltinSpec is a statically-known builtin tool's full JSON-schema
// parameter definition.
type BuiltinSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

func emptyParams() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}, "required": []string{}}
}

// BuiltinSpecs enumerates every built-in tool with its full parameter
// schema.
func BuiltinSpecs() []BuiltinSpec {
	return []BuiltinSpec{
		{Name: "tape.info", Description: "Show a summary of the current conversation tape.", Parameters: emptyParams()},
		{Name: "help", Description: "List available internal commands.", Parameters: emptyParams()},
		{Name: "tools", Description: "List all registered tools.", Parameters: emptyParams()},
		{Name: "skills", Description: "List discovered workspace skills.", Parameters: emptyParams()},
		{
			Name: "shell.exec", Description: "Execute a shell command in the workspace directory.",
			Parameters: obj(props{"command": str("The shell command line to execute.")}, "command"),
		},
		{
			Name: "file.read", Description: "Read a file's contents from the workspace.",
			Parameters: obj(props{"path": str("Workspace-relative path to the file.")}, "path"),
		},
		{
			Name: "file.write", Description: "Write content to a file in the workspace, creating parent directories as needed.",
			Parameters: obj(props{
				"path":    str("Workspace-relative path to the file."),
				"content": str("The full content to write."),
			}, "path", "content"),
		},
		{
			Name: "file.list", Description: "List the contents of a workspace directory.",
			Parameters: obj(props{"path": str("Workspace-relative directory path; empty for workspace root.")}),
		},
		{
			Name: "file.search", Description: "Recursively search workspace files for a query string.",
			Parameters: obj(props{
				"query": str("Text to search for, case-insensitive."),
				"path":  str("Workspace-relative directory to search under; empty for workspace root."),
			}, "query"),
		},
		{
			Name: "file.edit", Description: "Replace text within a workspace file.",
			Parameters: obj(props{
				"path":         str("Workspace-relative path to the file."),
				"old":          str("Exact text to find."),
				"new":          str("Replacement text."),
				"replace_all":  boolean("Replace all occurrences instead of only the first."),
			}, "path", "old", "new"),
		},
		{
			Name: "web.fetch", Description: "Fetch a URL and return its content as text or Markdown.",
			Parameters: obj(props{"url": str("The URL to fetch.")}, "url"),
		},
		{
			Name: "web.search", Description: "Build a web search URL for a query.",
			Parameters: obj(props{"query": str("The search query.")}, "query"),
		},
		{
			Name: "schedule.add", Description: "Schedule a reminder or agent re-entry job to fire later.",
			Parameters: obj(props{
				"message":          str("The message to deliver or re-enter the agent loop with."),
				"after_seconds":    integer("Fire once after this many seconds."),
				"interval_seconds": integer("Fire repeatedly every this many seconds."),
				"mode": enumStr("How the job should fire: 'reminder' delivers a message back to the "+
					"channel; 'agent' re-enters the full agent loop with the message as new user input, "+
					"letting the model act autonomously when the job fires.", "reminder", "agent"),
			}, "message"),
		},
		{Name: "schedule.list", Description: "List all scheduled jobs.", Parameters: emptyParams()},
		{
			Name: "schedule.remove", Description: "Cancel a scheduled job by ID.",
			Parameters: obj(props{"job_id": str("The job ID to remove.")}, "job_id"),
		},
	}
}

type props map[string]any

func str(desc string) map[string]any     { return map[string]any{"type": "string", "description": desc} }
func integer(desc string) map[string]any { return map[string]any{"type": "integer", "description": desc} }
func boolean(desc string) map[string]any { return map[string]any{"type": "boolean", "description": desc} }
func enumStr(desc string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": desc, "enum": values}
}

func obj(p props, required ...string) map[string]any {
	if required == nil {
		required = []string{}
	}
	return map[string]any{"type": "object", "properties": map[string]any(p), "required": required}
}

// ValidateSchema checks a tool parameter schema against the JSON Schema
// meta-schema, used at builtin registration time.
func ValidateSchema(schema map[string]any) error {
	data, err := json.Marshal(schema)
	if err != nil {
		return err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(string(data))); err != nil {
		return err
	}
	_, err = compiler.Compile("schema.json")
	return err
}

func toolParameters(name string) map[string]any {
	for _, s := range BuiltinSpecs() {
		if s.Name == name {
			return s.Parameters
		}
	}
	return emptyParams()
}

// BuiltinRegistry constructs a Registry pre-populated with every builtin
// tool (source "builtin"). Each builtin's parameter schema is checked
// against the JSON Schema meta-schema before registration; a malformed
// schema is a programming error, not a runtime condition, so it panics
// rather than silently registering a broken tool.
func BuiltinRegistry() *Registry {
	r := NewRegistry()
	for _, s := range BuiltinSpecs() {
		if err := ValidateSchema(s.Parameters); err != nil {
			panic(fmt.Sprintf("tools: invalid builtin schema for %s: %v", s.Name, err))
		}
		r.Register(s.Name, s.Description, "builtin")
	}
	return r
}
