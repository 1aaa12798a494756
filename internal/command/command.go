// Package command detects and parses comma-prefixed internal/shell commands
// typed by a user (e.g. ",tape.info" or ",git status"), using a
// shell-style quoted-argument tokenizer.
package command

import "strings"

// InternalPrefix is the character that introduces a command line.
const InternalPrefix = ','

// Kind distinguishes an internal (known) command from an arbitrary shell
// command line.
type Kind string

const (
	Internal Kind = "internal"
	Shell    Kind = "shell"
)

// KnownInternalCommands is the fixed set of recognized internal command
// names. Anything else after the comma prefix is treated as a shell
// command line.
var KnownInternalCommands = map[string]bool{
	"help":            true,
	"quit":            true,
	"tape":            true,
	"tape.info":       true,
	"tape.reset":      true,
	"tape.search":     true,
	"tools":           true,
	"tool.describe":   true,
	"skills":          true,
	"skills.describe": true,
	"anchors":         true,
	"handoff":         true,
}

// Args holds the parsed arguments for an internal command: positional
// tokens plus `--key=value` / `key=value` kwargs plus bare `--flag`s.
type Args struct {
	Positional []string
	Kwargs     map[string]string
	Flags      map[string]bool
}

// Get returns a kwarg value, if present.
func (a Args) Get(key string) (string, bool) {
	v, ok := a.Kwargs[key]
	return v, ok
}

// HasFlag reports whether a bare flag was set.
func (a Args) HasFlag(flag string) bool {
	return a.Flags[flag]
}

// Detected is the result of parsing one input line.
type Detected struct {
	Kind Kind
	Name string
	Args Args
	Raw  string // for Shell: the full command line after the comma
}

// Detect parses input and returns nil if it is not a command line (does
// not start with the comma prefix, or is empty after trimming).
func Detect(input string) *Detected {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}
	if trimmed[0] != InternalPrefix {
		return nil
	}
	body := strings.TrimLeft(trimmed[1:], " \t")
	if body == "" {
		return nil
	}

	tokens := shellSplit(body)
	if len(tokens) == 0 {
		return nil
	}

	name := tokens[0]
	if KnownInternalCommands[name] {
		return &Detected{
			Kind: Internal,
			Name: name,
			Args: parseKVArguments(tokens[1:]),
		}
	}

	return &Detected{
		Kind: Shell,
		Name: name,
		Raw:  body,
	}
}

// parseKVArguments groups tokens into positional args, kwargs and flags.
//
//   --k=v      -> kwarg
//   --k v      -> kwarg (consumes the following token, unless it starts with --)
//   --k        -> flag
//   k=v        -> kwarg (non-empty key)
//   otherwise  -> positional
func parseKVArguments(tokens []string) Args {
	args := Args{Kwargs: map[string]string{}, Flags: map[string]bool{}}
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case strings.HasPrefix(tok, "--"):
			rest := tok[2:]
			if eq := strings.IndexByte(rest, '='); eq >= 0 {
				args.Kwargs[rest[:eq]] = rest[eq+1:]
				continue
			}
			if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "--") {
				args.Kwargs[rest] = tokens[i+1]
				i++
				continue
			}
			args.Flags[rest] = true
		default:
			if eq := strings.IndexByte(tok, '='); eq > 0 {
				args.Kwargs[tok[:eq]] = tok[eq+1:]
				continue
			}
			args.Positional = append(args.Positional, tok)
		}
	}
	return args
}

// shellSplit tokenizes input the way a POSIX shell would split a command
// line: whitespace separates tokens outside quotes, single quotes suppress
// all escaping, double quotes allow backslash escapes, and an unterminated
// quote is tolerated (the rest of the line becomes the final token).
func shellSplit(input string) []string {
	var tokens []string
	var cur strings.Builder
	hasCur := false
	inSingle := false
	inDouble := false

	flush := func() {
		if hasCur {
			tokens = append(tokens, cur.String())
			cur.Reset()
			hasCur = false
		}
	}

	runes := []rune(input)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '\\' && !inSingle && i+1 < len(runes):
			cur.WriteRune(runes[i+1])
			hasCur = true
			i++
		case c == '\'' && !inDouble:
			inSingle = !inSingle
			hasCur = true
		case c == '"' && !inSingle:
			inDouble = !inDouble
			hasCur = true
		case (c == ' ' || c == '\t') && !inSingle && !inDouble:
			flush()
		default:
			cur.WriteRune(c)
			hasCur = true
		}
	}
	flush()
	return tokens
}
