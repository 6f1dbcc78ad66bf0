package main

import (
	"context"
	"fmt"
	stdlog "log"
	"os"

	"github.com/ByteMirror/overseer/config"
	"github.com/ByteMirror/overseer/log"
	overseermcp "github.com/ByteMirror/overseer/mcp"
	"github.com/ByteMirror/overseer/monitoring"
	"github.com/ByteMirror/overseer/sampler"
	"github.com/ByteMirror/overseer/supervisor"
)

func main() {
	// stdout carries the MCP protocol; everything else goes to the log file.
	log.Initialize(false)
	defer log.Close()
	overseermcp.SetLogger(stdlog.New(log.InfoLog.Writer(), "mcp: ", stdlog.LstdFlags))

	if err := run(); err != nil {
		log.ErrorLog.Printf("overseer-mcp: %v", err)
		fmt.Fprintf(os.Stderr, "overseer-mcp: %v\n", err)
		log.Close()
		os.Exit(1)
	}
}

func run() error {
	cfg := config.LoadConfig()

	sup, err := supervisor.New(cfg.Limits,
		supervisor.WithResourceSampler(sampler.NewProcessSampler()),
		supervisor.WithSystemStats(sampler.SystemStats),
	)
	if err != nil {
		return fmt.Errorf("failed to create supervisor: %w", err)
	}

	stopSignals := sup.HandleSignals()
	defer stopSignals()

	reportPath, err := cfg.ReportFile()
	if err != nil {
		sup.Shutdown()
		return err
	}
	reporter := monitoring.NewReporter(sup, reportPath, cfg.ReportInterval())
	reporter.Start()
	defer func() {
		// The final report shows the drained registry.
		sup.Shutdown()
		if err := reporter.Stop(); err != nil {
			log.WarningLog.Printf("failed to write final report: %v", err)
		}
	}()

	srv := overseermcp.NewOverseerMCPServer(context.Background(), sup, cfg.Shell, log.InfoLog.Writer())
	return srv.Serve()
}
