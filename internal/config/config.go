// Package config resolves the agent runtime's App Config: provider
// endpoint and credentials, the active model (optionally dialect-prefixed),
// an optional system-prompt override, bus-adapter allow-lists, and the
// per-session context-message cap. Resolution follows a strict precedence
// chain: CLI override, then environment, then .env.local, then a YAML
// file, then built-in default.
package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the resolved App Config consumed by the agent loop, CLI, and
// bus adapter.
type Config struct {
	Profile string `yaml:"profile"`

	APIBase string `yaml:"api_base"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`

	SystemPrompt string `yaml:"system_prompt"`

	BusToken      string   `yaml:"bus_token"`
	BusAllowList  []string `yaml:"bus_allow_list"`
	MaxContextMsg int      `yaml:"max_context_messages"`

	Workspace string `yaml:"workspace"`
}

// Default values used when nothing else resolves a key.
const (
	DefaultAPIBase       = "https://api.openai.com/v1"
	DefaultModel         = "gpt-4o-mini"
	DefaultMaxContextMsg = 40
)

func defaults() Config {
	return Config{
		APIBase:       DefaultAPIBase,
		Model:         DefaultModel,
		MaxContextMsg: DefaultMaxContextMsg,
	}
}

// Overrides carries explicit CLI-flag values; a zero value for a field
// means "not set on the command line" and resolution falls through to the
// next precedence level.
type Overrides struct {
	Profile      string
	APIKey       string
	APIBase      string
	Model        string
	SystemPrompt string
}

// Resolve builds the effective Config by walking the precedence chain:
// CLI override > env `<PROFILE>_<KEY>` > env `<KEY>` > `.env.local`
// `<PROFILE>_<KEY>` > `.env.local` `<KEY>` > built-in default, at each
// level after blank-trimming the candidate value.
func Resolve(overrides Overrides, workspace string) Config {
	cfg := defaults()
	cfg.Workspace = workspace
	cfg.Profile = strings.TrimSpace(overrides.Profile)

	env := loadDotEnvLocal(workspace)

	cfg.APIBase = resolveKey("API_BASE", overrides.APIBase, cfg.Profile, env, cfg.APIBase)
	cfg.APIKey = resolveKey("API_KEY", overrides.APIKey, cfg.Profile, env, cfg.APIKey)
	cfg.Model = resolveKey("MODEL", overrides.Model, cfg.Profile, env, cfg.Model)
	cfg.SystemPrompt = resolveKey("SYSTEM_PROMPT", overrides.SystemPrompt, cfg.Profile, env, cfg.SystemPrompt)
	cfg.BusToken = resolveKey("BUS_TOKEN", "", cfg.Profile, env, cfg.BusToken)

	if list := resolveKey("BUS_ALLOW_LIST", "", cfg.Profile, env, ""); list != "" {
		cfg.BusAllowList = splitList(list)
	}
	if maxCtx := resolveKey("MAX_CONTEXT_MESSAGES", "", cfg.Profile, env, ""); maxCtx != "" {
		if n, ok := parsePositiveInt(maxCtx); ok {
			cfg.MaxContextMsg = n
		}
	}

	return mergeYAMLFile(cfg, workspace)
}

// resolveKey applies one key's precedence chain: cliValue (if non-blank)
// wins outright; otherwise env `<PROFILE>_<KEY>`, then env `<KEY>`, then
// `.env.local` `<PROFILE>_<KEY>`, then `.env.local` `<KEY>`, then
// fallback.
func resolveKey(key, cliValue, profile string, dotenv map[string]string, fallback string) string {
	if v := strings.TrimSpace(cliValue); v != "" {
		return v
	}
	if profile != "" {
		if v := strings.TrimSpace(os.Getenv(envName(profile, key))); v != "" {
			return v
		}
	}
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	if profile != "" {
		if v := strings.TrimSpace(dotenv[envName(profile, key)]); v != "" {
			return v
		}
	}
	if v := strings.TrimSpace(dotenv[key]); v != "" {
		return v
	}
	return fallback
}

func envName(profile, key string) string {
	return strings.ToUpper(profile) + "_" + key
}

// loadDotEnvLocal parses <workspace>/.env.local as simple KEY=VALUE lines;
// a missing file resolves to an empty map rather than an error, since
// .env.local is optional at every precedence level.
func loadDotEnvLocal(workspace string) map[string]string {
	out := map[string]string{}
	f, err := os.Open(filepath.Join(workspace, ".env.local"))
	if err != nil {
		return out
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		out[key] = value
	}
	return out
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parsePositiveInt(s string) (int, bool) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	if n <= 0 {
		return 0, false
	}
	return n, true
}

// mergeYAMLFile applies <workspace>/.agent/config.yaml on top of cfg for
// any field not already set by a higher-precedence source.
func mergeYAMLFile(cfg Config, workspace string) Config {
	path := filepath.Join(workspace, ".agent", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return cfg
	}
	if cfg.APIBase == DefaultAPIBase && fileCfg.APIBase != "" {
		cfg.APIBase = fileCfg.APIBase
	}
	if cfg.APIKey == "" && fileCfg.APIKey != "" {
		cfg.APIKey = fileCfg.APIKey
	}
	if cfg.Model == DefaultModel && fileCfg.Model != "" {
		cfg.Model = fileCfg.Model
	}
	if cfg.SystemPrompt == "" && fileCfg.SystemPrompt != "" {
		cfg.SystemPrompt = fileCfg.SystemPrompt
	}
	if cfg.BusToken == "" && fileCfg.BusToken != "" {
		cfg.BusToken = fileCfg.BusToken
	}
	if len(cfg.BusAllowList) == 0 && len(fileCfg.BusAllowList) > 0 {
		cfg.BusAllowList = fileCfg.BusAllowList
	}
	if cfg.MaxContextMsg == DefaultMaxContextMsg && fileCfg.MaxContextMsg > 0 {
		cfg.MaxContextMsg = fileCfg.MaxContextMsg
	}
	return cfg
}
