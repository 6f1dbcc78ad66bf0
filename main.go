package main

import (
	"fmt"
	"os"

	"github.com/ByteMirror/overseer/commands"
	"github.com/ByteMirror/overseer/config"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	rootCmd = &cobra.Command{
		Use:   "overseer",
		Short: "Overseer - run subagents under shared resource limits",
		Long: `Overseer runs subagent processes under a shared budget of memory, CPU,
execution time and concurrency, terminating the ones that overstep it.`,
		SilenceUsage: true,
	}

	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Remove the stored status report",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.LoadConfig().ReportFile()
			if err != nil {
				return err
			}
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove status report: %w", err)
			}
			fmt.Println("Status report has been removed")
			return nil
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of overseer",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("overseer version %s\n", version)
		},
	}
)

func init() {
	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.LimitsCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
