package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alnah/transcribe-long/internal/config"
)

// ConfigCmd creates the config command, which prints the effective settings.
func ConfigCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "config [recording]",
		Short: "Show the effective configuration",
		Long: `Show the configuration after ` + config.FileName + ` discovery and environment
overrides. With a recording, the file next to it is searched first, as the
transcribe command does.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			return runConfig(env, input)
		},
	}
}

func runConfig(env *Env, input string) error {
	dirs := []string{"."}
	if input != "" {
		dirs = []string{filepath.Dir(input), "."}
	}

	cfg, path, err := env.ConfigLoader.Load(env.Getenv, dirs...)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	source := "built-in defaults"
	if path != "" {
		source = path
	}
	_, _ = fmt.Fprintf(env.Stdout, "# source: %s\n", source)

	enc := yaml.NewEncoder(env.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
