package cmd

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"genprovider/internal/logger"
)

type rootOptions struct {
	configPath string
	logLevel   string
	envFile    string
}

// NewRootCommand assembles the CLI.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "genprovider",
		Short:         "Unified generation over OpenAI, Anthropic and local Ollama backends",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is fine; keys may come from the real environment.
			_ = godotenv.Load(opts.envFile)
			if opts.logLevel != "" {
				logger.SetLevel(opts.logLevel)
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to YAML configuration file (default: local runtime only)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level override: debug, info, warn, error")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before configuration")

	root.AddCommand(
		newServeCommand(opts),
		newGenerateCommand(opts),
		newModelsCommand(opts),
		newSelectCommand(opts),
	)
	return root
}

// Execute runs the CLI with the provided arguments.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
