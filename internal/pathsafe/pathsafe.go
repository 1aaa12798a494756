// Package pathsafe resolves user-supplied relative paths against a
// workspace root and rejects anything that would escape it, whether via
// an absolute path, `..` segments, or a symlink.
package pathsafe

import (
	"os"
	"path/filepath"
	"strings"
)

// ErrEscape is returned (as part of a formatted message by callers) when a
// requested path would resolve outside the workspace.
const ErrEscape = "path escapes workspace"

// Resolve resolves requested against workspace, returning the absolute,
// symlink-free path if it stays within the workspace, or ("", false)
// otherwise.
func Resolve(workspace, requested string) (string, bool) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return "", false
	}

	wsCanonical, err := filepath.EvalSymlinks(workspace)
	if err != nil {
		wsCanonical, err = filepath.Abs(workspace)
		if err != nil {
			return "", false
		}
	}

	var candidate string
	if filepath.IsAbs(requested) {
		candidate = requested
	} else {
		candidate = filepath.Join(wsCanonical, requested)
	}

	var resolved string
	if _, statErr := os.Lstat(candidate); statErr == nil {
		if real, err := filepath.EvalSymlinks(candidate); err == nil {
			resolved = real
		} else {
			resolved = normalize(candidate)
		}
	} else {
		resolved = normalize(candidate)
	}

	resolved = filepath.Clean(resolved)
	wsCanonical = filepath.Clean(wsCanonical)

	if resolved != wsCanonical && !strings.HasPrefix(resolved, wsCanonical+string(filepath.Separator)) {
		return "", false
	}
	return resolved, true
}

// normalize performs purely lexical `.`/`..` component resolution without
// touching the filesystem (used when the candidate path doesn't exist yet,
// e.g. for file.write).
func normalize(path string) string {
	isAbs := filepath.IsAbs(path)
	parts := strings.Split(filepath.ToSlash(path), "/")
	var stack []string
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		case "..":
			if len(stack) > 0 && stack[len(stack)-1] != ".." {
				stack = stack[:len(stack)-1]
			} else if !isAbs {
				stack = append(stack, "..")
			}
		default:
			stack = append(stack, p)
		}
	}
	joined := strings.Join(stack, string(filepath.Separator))
	if isAbs {
		return string(filepath.Separator) + joined
	}
	return joined
}

// Relative returns path relative to workspace, falling back to path
// itself if it isn't actually inside workspace.
func Relative(workspace, path string) string {
	rel, err := filepath.Rel(workspace, path)
	if err != nil {
		return path
	}
	return rel
}
