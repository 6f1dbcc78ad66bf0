package commands

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/ByteMirror/overseer/config"
	"github.com/ByteMirror/overseer/log"
	"github.com/spf13/cobra"
)

// LimitsCmd prints the effective configuration and where it comes from.
var LimitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Print the effective configuration, its path and the log file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		configDir, err := config.GetConfigDir()
		if err != nil {
			return fmt.Errorf("failed to get config directory: %w", err)
		}
		configJson, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Config: %s\n%s\n", filepath.Join(configDir, config.ConfigFileName), configJson)
		fmt.Fprintf(out, "Log: %s\n", log.FileName())
		return nil
	},
}
