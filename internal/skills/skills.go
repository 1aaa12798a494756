// Package skills discovers skill files (.agent/skills/<name>/SKILL.md,
// under the workspace and under the home directory) and exposes them as
// `skill.<name>` tools.
package skills

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Skill is one discovered skill.
type Skill struct {
	Name        string
	Description string
	Source      string
	Body        string
}

// Discover scans the project skills directory (<workspace>/.agent/skills)
// and the global one (~/.agent/skills) for SKILL.md files with a
// frontmatter block of `key: value` lines followed by `---`. When both
// roots define a skill with the same (case-insensitive) name, the project
// copy wins.
func Discover(workspace string) []Skill {
	roots := []struct {
		dir    string
		source string
	}{
		{filepath.Join(workspace, ".agent", "skills"), "project"},
	}
	if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots, struct {
			dir    string
			source string
		}{filepath.Join(home, ".agent", "skills"), "global"})
	}

	byName := map[string]Skill{}
	var order []string
	for _, root := range roots {
		entries, err := os.ReadDir(root.dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			data, err := os.ReadFile(filepath.Join(root.dir, e.Name(), "SKILL.md"))
			if err != nil {
				continue
			}
			skill := parseSkill(string(data))
			if skill.Name == "" {
				skill.Name = e.Name()
			}
			skill.Source = root.source
			key := strings.ToLower(skill.Name)
			if _, seen := byName[key]; seen {
				continue
			}
			byName[key] = skill
			order = append(order, key)
		}
	}

	sort.Strings(order)
	out := make([]Skill, 0, len(order))
	for _, key := range order {
		out = append(out, byName[key])
	}
	return out
}

// Watch watches <workspace>/.agent/skills for create/write/remove/rename
// events and calls onChange with a freshly re-run Discover result for every
// event, without debouncing. It runs until stop is closed, logging and continuing on
// watcher errors rather than tearing down the session over a missed event.
func Watch(workspace string, stop <-chan struct{}, onChange func([]Skill)) error {
	root := filepath.Join(workspace, ".agent", "skills")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := addRecursive(watcher, root); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-stop:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						_ = watcher.Add(event.Name)
					}
				}
				onChange(Discover(workspace))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("skills: watcher error", "error", err)
			}
		}
	}()
	return nil
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	if err := watcher.Add(root); err != nil {
		return err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		if e.IsDir() {
			_ = watcher.Add(filepath.Join(root, e.Name()))
		}
	}
	return nil
}

func parseSkill(content string) Skill {
	var s Skill
	s.Body = content

	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return s
	}

	i := 1
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "---" {
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "name":
			s.Name = value
		case "description":
			s.Description = value
		}
	}
	return s
}
