package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/diogo/agentchat/internal/config"
	"github.com/diogo/agentchat/internal/models"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("backend_url:       %s\n", cfg.BackendURL)
		fmt.Printf("default_model:     %s\n", cfg.DefaultModel)
		fmt.Printf("streaming:         %t\n", cfg.Streaming)
		fmt.Printf("stall_timeout_s:   %d\n", cfg.StallTimeoutSeconds)
		fmt.Printf("verbose:           %t\n", cfg.Verbose)
		fmt.Printf("copy_to_clipboard: %t\n", cfg.CopyToClipboard)
		fmt.Printf("markdown.style:    %s\n", cfg.Markdown.Style)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var configModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List known models",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _ := config.LoadConfig()
		for _, m := range models.AllModels() {
			marker := "  "
			if m.Name == cfg.DefaultModel {
				marker = "* "
			}
			if m.Vision {
				fmt.Printf("%s%s (vision)\n", marker, m.Name)
			} else {
				fmt.Printf("%s%s\n", marker, m.Name)
			}
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting",
	Long: `Change a setting and persist it.

Keys:
  backend_url        Base URL of the backend
  default_model      Model sent with every request
  streaming          true/false, use the persistent channel
  stall_timeout_s    Seconds without events before an exchange fails (0 disables)
  verbose            true/false, debug logging
  copy_to_clipboard  true/false, copy single-query replies
  markdown.style     dark, light, auto, or a theme path`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		if err := applySetting(&cfg, args[0], args[1]); err != nil {
			return err
		}

		if err := config.SaveConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", args[0], args[1])
		return nil
	},
}

// applySetting maps a key/value pair onto the config
func applySetting(cfg *config.Config, key, value string) error {
	parseBool := func() (bool, error) {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("value for %s must be true or false", key)
		}
		return b, nil
	}

	switch key {
	case "backend_url":
		cfg.BackendURL = value
	case "default_model":
		cfg.DefaultModel = value
	case "streaming":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.Streaming = b
	case "stall_timeout_s":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("value for %s must be a non-negative integer", key)
		}
		cfg.StallTimeoutSeconds = n
	case "verbose":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.Verbose = b
	case "copy_to_clipboard":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.CopyToClipboard = b
	case "markdown.style":
		cfg.Markdown.Style = value
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configModelsCmd)
}
