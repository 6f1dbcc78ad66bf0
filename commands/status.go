package commands

import (
	"fmt"
	"os"

	"github.com/ByteMirror/overseer/config"
	"github.com/ByteMirror/overseer/monitoring"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	statusReportFlag string
	watchFlag        bool
	noColorFlag      bool
)

// configureColor drops styling when asked to or when stdout is not a terminal.
func configureColor(noColor bool) {
	if noColor || os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stdout.Fd())) {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// StatusCmd shows the last status report of a supervised session.
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of the current or last supervised session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := statusReportFlag
		if path == "" {
			var err error
			if path, err = config.LoadConfig().ReportFile(); err != nil {
				return err
			}
		}

		if watchFlag {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("--watch needs a terminal")
			}
			return monitoring.RunDashboard(path)
		}
		configureColor(noColorFlag)

		report, err := monitoring.ReadReport(path)
		if err != nil {
			return fmt.Errorf("no status report available: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), monitoring.RenderReport(report))
		return nil
	},
}

func init() {
	StatusCmd.Flags().StringVar(&statusReportFlag, "report", "", "Status report path (default: status.json in the config directory)")
	StatusCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Open a live dashboard")
	StatusCmd.Flags().BoolVar(&noColorFlag, "no-color", false, "Print the report without colors")
}
