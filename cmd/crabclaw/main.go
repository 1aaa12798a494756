// Command crabclaw is the CLI entry point for the agent runtime: a
// one-shot `run` invocation, an interactive REPL, an HTTP `serve`
// bus adapter, and an `auth` subcommand group, all bound to the same
// agent loop core in internal/agentloop.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// flagSet carries every persistent/common CLI flag, resolved into a
// config.Overrides before the agent loop is opened.
type flagSet struct {
	profile      string
	apiKey       string
	apiBase      string
	model        string
	systemPrompt string
}

func main() {
	configureLogging()

	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// configureLogging sets up structured logging: JSON to stderr for log
// aggregation; the `interactive` subcommand swaps in a text handler when
// it detects a terminal.
func configureLogging() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
}

func buildRootCmd() *cobra.Command {
	flags := &flagSet{}

	root := &cobra.Command{
		Use:     "crabclaw",
		Short:   "crabclaw - a sandboxed, tool-calling conversational agent",
		Version: fmt.Sprintf("%s (commit %s)", version, commit),
		// SilenceUsage keeps cobra from dumping full usage text on every
		// runtime error; only the error itself is logged.
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.profile, "profile", "", "named config profile")
	root.PersistentFlags().StringVar(&flags.apiKey, "api-key", "", "provider API key override")
	root.PersistentFlags().StringVar(&flags.apiBase, "api-base", "", "provider API base URL override")
	root.PersistentFlags().StringVar(&flags.model, "model", "", "model id override, optionally dialect-prefixed (anthropic:<model>)")
	root.PersistentFlags().StringVar(&flags.systemPrompt, "system-prompt", "", "system prompt override")

	root.AddCommand(buildRunCmd(flags))
	root.AddCommand(buildInteractiveCmd(flags))
	root.AddCommand(buildServeCmd(flags))
	root.AddCommand(buildAuthCmd())
	return root
}
