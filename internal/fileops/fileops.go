// Package fileops implements the read/write/edit/list/search file tools,
// all confined to a workspace root via internal/pathsafe.
package fileops

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/crabclaw-go/crabclaw/internal/pathsafe"
)

const (
	maxReadBytes     = 50_000
	maxSearchResults = 50
	maxSearchDepth   = 10
	maxLineDisplay   = 120
)

var skipDirs = map[string]bool{
	".git": true, ".crabclaw": true, "target": true, "node_modules": true,
	".agent": true, "__pycache__": true, ".venv": true, "dist": true, "build": true,
}

var binaryExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".zip": true,
	".tar": true, ".gz": true, ".bz2": true, ".xz": true, ".pdf": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".o": true,
	".a": true, ".class": true, ".jar": true, ".pyc": true, ".wasm": true,
}

func accessDenied(p string) string {
	return fmt.Sprintf("Access denied: path escapes workspace: %s", p)
}

// safeTruncate truncates s to at most n bytes without splitting a UTF-8
// rune in the middle.
func safeTruncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Read implements the file.read tool.
func Read(workspace, path string) string {
	resolved, ok := pathsafe.Resolve(workspace, path)
	if !ok {
		return accessDenied(path)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("File not found: %s", path)
		}
		return fmt.Sprintf("Error reading file: %v", err)
	}
	if info.IsDir() {
		return fmt.Sprintf("Not a file: %s", path)
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return fmt.Sprintf("Error reading file: %v", err)
	}
	content := string(data)
	if len(content) > maxReadBytes {
		truncated := safeTruncate(content, maxReadBytes)
		return fmt.Sprintf("%s\n\n[... truncated, showing first %d of %d bytes]", truncated, len(truncated), len(content))
	}
	return content
}

// Write implements the file.write tool.
func Write(workspace, path, content string) string {
	resolved, ok := pathsafe.Resolve(workspace, path)
	if !ok {
		return accessDenied(path)
	}
	if dir := filepath.Dir(resolved); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Sprintf("Error creating directories: %v", err)
		}
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return fmt.Sprintf("Error writing file: %v", err)
	}
	return fmt.Sprintf("Written %d bytes to %s", len(content), pathsafe.Relative(workspace, resolved))
}

// Edit implements the file.edit tool: replaces the first or all
// occurrences of old with new.
func Edit(workspace, path, old, new string, replaceAll bool) string {
	resolved, ok := pathsafe.Resolve(workspace, path)
	if !ok {
		return accessDenied(path)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "File not found"
	}
	if info.IsDir() {
		return "Not a file"
	}
	if old == "" {
		return "Error: 'old' text cannot be empty."
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return fmt.Sprintf("Error reading file: %v", err)
	}
	text := string(data)
	count := strings.Count(text, old)
	if count == 0 {
		return fmt.Sprintf("Error: old text not found in %s", path)
	}

	var updated string
	var replaced int
	if replaceAll {
		updated = strings.ReplaceAll(text, old, new)
		replaced = count
	} else {
		updated = strings.Replace(text, old, new, 1)
		replaced = 1
	}
	if err := os.WriteFile(resolved, []byte(updated), 0o644); err != nil {
		return fmt.Sprintf("Error writing file: %v", err)
	}
	return fmt.Sprintf("Updated %s: %d occurrence(s) replaced", pathsafe.Relative(workspace, resolved), replaced)
}

// List implements the file.list tool.
func List(workspace, dirPath string) string {
	var resolved string
	if strings.TrimSpace(dirPath) == "" {
		resolved = workspace
	} else {
		r, ok := pathsafe.Resolve(workspace, dirPath)
		if !ok {
			return accessDenied(dirPath)
		}
		resolved = r
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return fmt.Sprintf("Directory not found: %s", dirPath)
	}
	if !info.IsDir() {
		return fmt.Sprintf("Not a directory: %s", dirPath)
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return fmt.Sprintf("Directory not found: %s", dirPath)
	}
	var rows []string
	for _, e := range entries {
		if e.IsDir() {
			rows = append(rows, fmt.Sprintf("  %s/", e.Name()))
		} else {
			fi, err := e.Info()
			var size int64
			if err == nil {
				size = fi.Size()
			}
			rows = append(rows, fmt.Sprintf("  %s  (%d bytes)", e.Name(), size))
		}
	}
	if len(rows) == 0 {
		return "(empty directory)"
	}
	sort.Strings(rows)
	return strings.Join(rows, "\n")
}

// Search implements the file.search tool: a recursive, depth- and
// result-capped case-insensitive grep.
func Search(workspace, query, path string) string {
	if strings.TrimSpace(query) == "" {
		return "Error: query cannot be empty."
	}
	var root string
	if strings.TrimSpace(path) == "" {
		root = workspace
	} else {
		r, ok := pathsafe.Resolve(workspace, path)
		if !ok {
			return accessDenied(path)
		}
		root = r
	}
	if _, err := os.Stat(root); err != nil {
		return fmt.Sprintf("Path not found: %s", path)
	}

	lowerQuery := strings.ToLower(query)
	var results []string
	capped := searchRecursive(workspace, root, lowerQuery, 0, &results)

	if len(results) == 0 {
		return fmt.Sprintf("No matches found for: %s", query)
	}
	out := fmt.Sprintf("%d match(es) for %q:\n%s", len(results), query, strings.Join(results, "\n"))
	if capped {
		out += "\n\n[... capped at 50 results]"
	}
	return out
}

func searchRecursive(workspace, target, lowerQuery string, depth int, results *[]string) bool {
	if len(*results) >= maxSearchResults {
		return true
	}
	if depth > maxSearchDepth {
		return false
	}
	info, err := os.Stat(target)
	if err != nil {
		return false
	}
	if !info.IsDir() {
		searchFile(workspace, target, lowerQuery, results)
		return len(*results) >= maxSearchResults
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if len(*results) >= maxSearchResults {
			return true
		}
		name := e.Name()
		if e.IsDir() {
			if strings.HasPrefix(name, ".") || skipDirs[name] {
				continue
			}
			if searchRecursive(workspace, filepath.Join(target, name), lowerQuery, depth+1, results) {
				return true
			}
			continue
		}
		searchFile(workspace, filepath.Join(target, name), lowerQuery, results)
	}
	return len(*results) >= maxSearchResults
}

func searchFile(workspace, path, lowerQuery string, results *[]string) {
	if binaryExts[strings.ToLower(filepath.Ext(path))] {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if !isLikelyText(data) {
		return
	}
	rel := pathsafe.Relative(workspace, path)
	for i, line := range strings.Split(string(data), "\n") {
		if len(*results) >= maxSearchResults {
			return
		}
		if !strings.Contains(strings.ToLower(line), lowerQuery) {
			continue
		}
		trimmed := strings.TrimSpace(line)
		display := trimmed
		if len(trimmed) > maxLineDisplay {
			display = safeTruncate(trimmed, maxLineDisplay-3) + "..."
		}
		*results = append(*results, fmt.Sprintf("  %s:%d: %s", rel, i+1, display))
	}
}

func isLikelyText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	n := len(data)
	if n > 8192 {
		n = 8192
	}
	return utf8.Valid(data[:n])
}
