package tools

import (
	"regexp"
	"sort"
	"strings"

	"github.com/crabclaw-go/crabclaw/internal/llmwire"
)

// ProgressiveView keeps the model's tool schema context small: while no
// tool is expanded every schema is sent; once tools have been explicitly
// selected or hinted at (via a `$tool.name` mention in model output), only
// their schemas are sent and the other tools are left out.
type ProgressiveView struct {
	registry *Registry
	expanded map[string]bool
}

var hintPattern = regexp.MustCompile(`\$([A-Za-z0-9_.-]+)`)

// NewProgressiveView wraps registry with an empty expanded set.
func NewProgressiveView(registry *Registry) *ProgressiveView {
	return &ProgressiveView{registry: registry, expanded: map[string]bool{}}
}

// ActivateHints scans text for `$hint` tokens and expands any matching
// registered tool (case-insensitively), returning the names newly
// expanded by this call.
func (v *ProgressiveView) ActivateHints(text string) []string {
	var newlyExpanded []string
	for _, m := range hintPattern.FindAllStringSubmatch(text, -1) {
		if v.noteHint(m[1]) {
			newlyExpanded = append(newlyExpanded, m[1])
		}
	}
	return newlyExpanded
}

func (v *ProgressiveView) noteHint(hint string) bool {
	lower := strings.ToLower(hint)
	for _, d := range v.registry.List() {
		if strings.ToLower(d.Name) == lower {
			if v.expanded[d.Name] {
				return false
			}
			v.expanded[d.Name] = true
			return true
		}
	}
	return false
}

// NoteSelected directly expands a tool by exact name, if registered.
func (v *ProgressiveView) NoteSelected(name string) {
	if v.registry.Has(name) {
		v.expanded[name] = true
	}
}

// CompactBlock renders the `<tool_view>` system-prompt block listing every
// registered tool as a one-line row.
func (v *ProgressiveView) CompactBlock() string {
	var b strings.Builder
	b.WriteString("<tool_view>\n")
	for _, row := range v.registry.CompactRows() {
		b.WriteString("  - " + row + "\n")
	}
	b.WriteString("</tool_view>")
	return b.String()
}

func (v *ProgressiveView) sortedExpanded() []string {
	names := make([]string, 0, len(v.expanded))
	for n := range v.expanded {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ExpandedBlock renders the `<tool_details>` block for every expanded
// tool, or "" if none are expanded.
func (v *ProgressiveView) ExpandedBlock() string {
	names := v.sortedExpanded()
	if len(names) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<tool_details>\n")
	for _, name := range names {
		d, ok := v.registry.Get(name)
		if !ok {
			continue
		}
		b.WriteString("  <tool name=\"" + name + "\">\n")
		b.WriteString("    description: " + d.Description + "\n")
		b.WriteString("  </tool>\n")
	}
	b.WriteString("</tool_details>")
	return b.String()
}

// ExpandedCount returns how many tools are currently expanded.
func (v *ProgressiveView) ExpandedCount() int { return len(v.expanded) }

// Reset clears the expanded set.
func (v *ProgressiveView) Reset() { v.expanded = map[string]bool{} }

// ToolDefinitions returns the tool schemas to send to the model: all
// tools when nothing is expanded yet (bootstrapping the first turn), or
// only the expanded subset afterwards. This is what keeps token usage
// down across a long conversation.
func (v *ProgressiveView) ToolDefinitions() []llmwire.ToolDefinition {
	if len(v.expanded) == 0 {
		return toToolDefinitions(v.registry, nil)
	}
	return toToolDefinitions(v.registry, v.sortedExpanded())
}

func toToolDefinitions(registry *Registry, only []string) []llmwire.ToolDefinition {
	var names []string
	if only == nil {
		for _, d := range registry.List() {
			names = append(names, d.Name)
		}
	} else {
		names = only
	}
	var defs []llmwire.ToolDefinition
	for _, name := range names {
		d, ok := registry.Get(name)
		if !ok {
			continue
		}
		defs = append(defs, llmwire.ToolDefinition{
			Type: "function",
			Function: llmwire.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  toolParameters(d.Name),
			},
		})
	}
	return defs
}
