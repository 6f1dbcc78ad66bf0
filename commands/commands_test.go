//go:build unix

package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ByteMirror/overseer/config"
	"github.com/ByteMirror/overseer/log"
	"github.com/ByteMirror/overseer/monitoring"
	"github.com/ByteMirror/overseer/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.Initialize(false)
	defer log.Close()

	os.Exit(m.Run())
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Limits.MemoryCheckIntervalSeconds = 3600
	cfg.Limits.TerminationGraceSeconds = 0.2
	cfg.ReportPath = filepath.Join(t.TempDir(), "status.json")
	return cfg
}

func TestBuildCommands(t *testing.T) {
	single := buildCommands("sh", "job", []string{"echo hi"})
	assert.Equal(t, []orchestrator.Command{{Name: "job", Argv: []string{"sh", "-c", "echo hi"}}}, single)

	multi := buildCommands("bash", "job", []string{"a", "b"})
	require.Len(t, multi, 2)
	assert.Equal(t, "job1", multi[0].Name)
	assert.Equal(t, "job2", multi[1].Name)
	assert.Equal(t, []string{"bash", "-c", "b"}, multi[1].Argv)
}

func TestRunCommands(t *testing.T) {
	t.Run("all succeed and the final report is written", func(t *testing.T) {
		cfg := testConfig(t)
		var out bytes.Buffer

		err := runCommands(context.Background(), cfg, buildCommands(cfg.Shell, "ok", []string{"true", "exit 0"}), true, &out)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "ok1")
		assert.Contains(t, out.String(), "ok2")

		report, err := monitoring.ReadReport(cfg.ReportPath)
		require.NoError(t, err)
		assert.Equal(t, 0, report.ActiveSubagents, "final report is taken after draining")
	})

	t.Run("failure is reported", func(t *testing.T) {
		cfg := testConfig(t)
		var out bytes.Buffer

		err := runCommands(context.Background(), cfg, buildCommands(cfg.Shell, "job", []string{"true", "exit 4"}), false, &out)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 of 2 commands failed: job2")
		assert.Contains(t, out.String(), "exit code 4")
		assert.NoFileExists(t, cfg.ReportPath)
	})
}

func TestLimitsCmd(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OVERSEER_DIR", dir)

	var out bytes.Buffer
	LimitsCmd.SetOut(&out)
	t.Cleanup(func() { LimitsCmd.SetOut(nil) })

	require.NoError(t, LimitsCmd.RunE(LimitsCmd, nil))
	assert.Contains(t, out.String(), "Config: "+filepath.Join(dir, config.ConfigFileName))
	assert.Contains(t, out.String(), `"max_concurrent_subagents": 3`)
	assert.Contains(t, out.String(), "Log: "+log.FileName())
}
