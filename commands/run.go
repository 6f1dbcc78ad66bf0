package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ByteMirror/overseer/config"
	"github.com/ByteMirror/overseer/log"
	"github.com/ByteMirror/overseer/monitoring"
	"github.com/ByteMirror/overseer/orchestrator"
	"github.com/ByteMirror/overseer/sampler"
	"github.com/ByteMirror/overseer/supervisor"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	commandFlags  []string
	nameFlag      string
	runReportFlag string
	noReportFlag  bool
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// RunCmd runs shell commands as supervised subagents.
var RunCmd = &cobra.Command{
	Use:   "run -c CMD [-c CMD...]",
	Short: "Run commands as supervised subagents",
	Long: `Run one or more shell commands under the configured resource limits.
At most max_concurrent_subagents commands run at once; the rest wait for a
free slot. Commands that exceed their execution time or memory kill
threshold are terminated. A status report is written while the commands run
so that 'overseer status' can follow them.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(commandFlags) == 0 {
			return fmt.Errorf("at least one --command is required")
		}

		log.Initialize(false)
		defer log.Close()
		configureColor(noColorFlag)

		cfg := config.LoadConfig()
		if runReportFlag != "" {
			cfg.ReportPath = runReportFlag
		}
		return runCommands(cmd.Context(), cfg, buildCommands(cfg.Shell, nameFlag, commandFlags), !noReportFlag, cmd.OutOrStdout())
	},
}

func init() {
	RunCmd.Flags().StringArrayVarP(&commandFlags, "command", "c", nil, "Shell command to run (repeatable)")
	RunCmd.Flags().StringVarP(&nameFlag, "name", "n", "subagent", "Name prefix for the subagent ids")
	RunCmd.Flags().StringVar(&runReportFlag, "report", "", "Status report path (default: status.json in the config directory)")
	RunCmd.Flags().BoolVar(&noReportFlag, "no-report", false, "Do not write a status report")
	RunCmd.Flags().BoolVar(&noColorFlag, "no-color", false, "Print results without colors")
}

// buildCommands wraps each command string in `shell -c`. With more than one
// command the names are numbered.
func buildCommands(shell, name string, commands []string) []orchestrator.Command {
	cmds := make([]orchestrator.Command, 0, len(commands))
	for i, c := range commands {
		n := name
		if len(commands) > 1 {
			n = fmt.Sprintf("%s%d", name, i+1)
		}
		cmds = append(cmds, orchestrator.Command{Name: n, Argv: []string{shell, "-c", c}})
	}
	return cmds
}

func runCommands(ctx context.Context, cfg *config.Config, cmds []orchestrator.Command, report bool, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	sup, err := supervisor.New(cfg.Limits,
		supervisor.WithResourceSampler(sampler.NewProcessSampler()),
		supervisor.WithSystemStats(sampler.SystemStats),
	)
	if err != nil {
		return fmt.Errorf("failed to create supervisor: %w", err)
	}
	stopSignals := sup.HandleSignals()
	defer stopSignals()

	var reporter *monitoring.Reporter
	if report {
		path, err := cfg.ReportFile()
		if err != nil {
			sup.Shutdown()
			return err
		}
		reporter = monitoring.NewReporter(sup, path, cfg.ReportInterval())
		reporter.Start()
	}

	pool := orchestrator.NewPool(sup, orchestrator.LaunchOptions{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	results := pool.RunAll(ctx, cmds)

	sup.Shutdown()
	if reporter != nil {
		if err := reporter.Stop(); err != nil {
			log.WarningLog.Printf("failed to write final report: %v", err)
		}
	}

	var failed []string
	for _, res := range results {
		fmt.Fprintln(out, formatResult(res))
		if res.Failed() {
			failed = append(failed, res.Name)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d commands failed: %s", len(failed), len(results), strings.Join(failed, ", "))
	}
	return nil
}

func formatResult(res orchestrator.Result) string {
	id := res.ID
	if id == "" {
		id = "not started"
	}
	switch {
	case res.Err != nil:
		return failStyle.Render(fmt.Sprintf("✗ %s (%s): %v", res.Name, id, res.Err))
	case res.ExitCode != 0:
		return failStyle.Render(fmt.Sprintf("✗ %s (%s): exit code %d after %s", res.Name, id, res.ExitCode, res.Duration.Round(time.Millisecond)))
	default:
		return okStyle.Render(fmt.Sprintf("✓ %s (%s): ok after %s", res.Name, id, res.Duration.Round(time.Millisecond)))
	}
}
