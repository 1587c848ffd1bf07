// Package commands provides CLI commands for agentchat.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/diogo/agentchat/internal/config"
)

var (
	// Global flags
	modelFlag  string
	outputFlag string
	fileFlag   string
	rawFlag    bool

	// Version info (set at build time)
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "agentchat [prompt]",
	Short: "Chat client for the Agent Chat backend",
	Long: `agentchat talks to an Agent Chat backend. Replies stream over a
persistent channel when one is available and fall back to a single
request otherwise.

Examples:
  agentchat chat                        Start interactive chat
  agentchat config show                 Show current settings
  agentchat "What is Go?"               Send a single query
  agentchat -f prompt.md                Read prompt from file
  cat prompt.md | agentchat             Read prompt from stdin
  agentchat "Hello" -o response.md      Save response to file`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("agentchat %s (built %s)\n", Version, BuildTime)
			return nil
		}

		stat, _ := os.Stdin.Stat()
		hasStdin := (stat.Mode() & os.ModeCharDevice) == 0

		if fileFlag != "" {
			data, err := os.ReadFile(fileFlag)
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}
			return runQuery(string(data), rawOutput())
		}

		if hasStdin {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			return runQuery(string(data), rawOutput())
		}

		if len(args) > 0 {
			return runQuery(args[0], rawOutput())
		}

		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "Model to use (e.g., gemini-2.0-flash)")
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Save response to file")
	rootCmd.Flags().StringVarP(&fileFlag, "file", "f", "", "Read prompt from file")
	rootCmd.Flags().BoolVar(&rawFlag, "raw", false, "Print only the raw response text")
	rootCmd.Flags().BoolP("version", "v", false, "Show version and exit")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(configCmd)
}

// rawOutput reports whether decorations should be suppressed: either
// requested explicitly or when stdout is a pipe
func rawOutput() bool {
	return rawFlag || !isStdoutTTY()
}

// getModel returns the model to use (from flag or config)
func getModel() string {
	if modelFlag != "" {
		return modelFlag
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return config.DefaultConfig().DefaultModel
	}
	return cfg.DefaultModel
}
