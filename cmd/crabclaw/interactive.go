package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/crabclaw-go/crabclaw/internal/agentloop"
	"github.com/crabclaw-go/crabclaw/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// buildInteractiveCmd builds the REPL subcommand: a single long-lived
// session that reads lines from stdin, routes each one through the agent
// loop, and prints whatever comes back until ",quit" or EOF.
func buildInteractiveCmd(flags *flagSet) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "interactive",
		Short: "start an interactive REPL session",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg := config.Resolve(overridesFrom(flags), workspace)
			if sessionID == "" {
				sessionID = "interactive:local"
			}

			// A text handler reads far better in a terminal than the
			// default JSON handler serve/run use for log aggregation.
			if term.IsTerminal(int(os.Stdin.Fd())) {
				slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
			}

			loop, err := agentloop.Open(cfg, workspace, sessionID, nil, nil)
			if err != nil {
				return err
			}

			stop := make(chan struct{})
			defer close(stop)
			if err := loop.StartSkillWatcher(stop); err != nil {
				slog.Warn("skills: watcher disabled", "error", err)
			}

			return runREPL(cmd.Context(), loop, os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session id (defaults to interactive:local)")
	return cmd
}

func runREPL(ctx context.Context, loop *agentloop.Loop, in *os.File, out *os.File) error {
	interactive := term.IsTerminal(int(in.Fd()))
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if interactive {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		streamed := false
		result := loop.HandleInputStream(ctx, line, func(tok string) {
			streamed = true
			fmt.Fprint(out, tok)
		})
		if streamed {
			fmt.Fprintln(out)
		}
		if result.Err != nil {
			fmt.Fprintln(out, "error:", result.Err)
			continue
		}
		if result.ImmediateOutput != "" {
			fmt.Fprintln(out, result.ImmediateOutput)
		}
		if !streamed && result.AssistantOutput != "" {
			fmt.Fprintln(out, result.AssistantOutput)
		}
		if result.ExitRequested {
			return nil
		}
	}
}
