package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/crabclaw-go/crabclaw/internal/agentloop"
	"github.com/crabclaw-go/crabclaw/internal/config"
	"github.com/spf13/cobra"
)

func buildRunCmd(flags *flagSet) *cobra.Command {
	var prompt, promptFile string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "run one prompt to completion and print the reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			if prompt != "" && promptFile != "" {
				return fmt.Errorf("--prompt and --prompt-file are mutually exclusive")
			}

			input, err := resolveRunInput(prompt, promptFile)
			if err != nil {
				return err
			}
			if strings.TrimSpace(input) == "" {
				return fmt.Errorf("no prompt supplied: pass --prompt, --prompt-file, or pipe to stdin")
			}

			workspace, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg := config.Resolve(overridesFrom(flags), workspace)

			if dryRun {
				fmt.Printf("would run with model=%s api_base=%s prompt=%q\n", cfg.Model, cfg.APIBase, input)
				return nil
			}

			loop, err := agentloop.Open(cfg, workspace, "run:oneshot", nil, nil)
			if err != nil {
				return err
			}
			result := loop.HandleInput(context.Background(), input)
			return printResult(result)
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "prompt text")
	cmd.Flags().StringVar(&promptFile, "prompt-file", "", "path to a file containing the prompt")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "resolve config and print what would run, without invoking the model")
	return cmd
}

// resolveRunInput implements the `run` subcommand's input precedence:
// --prompt, then --prompt-file, then non-TTY stdin.
func resolveRunInput(prompt, promptFile string) (string, error) {
	if prompt != "" {
		return prompt, nil
	}
	if promptFile != "" {
		data, err := os.ReadFile(promptFile)
		if err != nil {
			return "", fmt.Errorf("reading prompt file: %w", err)
		}
		return string(data), nil
	}

	stat, err := os.Stdin.Stat()
	if err != nil {
		return "", err
	}
	if (stat.Mode() & os.ModeCharDevice) != 0 {
		return "", nil // stdin is a TTY, not piped input
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}

func printResult(result agentloop.Result) error {
	if result.Err != nil {
		return result.Err
	}
	if result.ImmediateOutput != "" {
		fmt.Println(result.ImmediateOutput)
	}
	if result.AssistantOutput != "" {
		fmt.Println(result.AssistantOutput)
	}
	return nil
}

func overridesFrom(f *flagSet) config.Overrides {
	return config.Overrides{
		Profile:      f.profile,
		APIKey:       f.apiKey,
		APIBase:      f.apiBase,
		Model:        f.model,
		SystemPrompt: f.systemPrompt,
	}
}
