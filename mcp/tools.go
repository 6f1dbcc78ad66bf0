package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ByteMirror/overseer/orchestrator"
	"github.com/ByteMirror/overseer/supervisor"

	gomcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// spawnResult is the JSON representation returned by spawn_subagent.
type spawnResult struct {
	ID  string `json:"id"`
	PID int    `json:"pid"`
}

// handleSupervisorStatus returns the supervisor snapshot as JSON.
func handleSupervisorStatus(sup *supervisor.Supervisor) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		Log("tool call: supervisor_status")
		data, err := json.MarshalIndent(sup.Snapshot(), "", "  ")
		if err != nil {
			return gomcp.NewToolResultError("failed to marshal status: " + err.Error()), nil
		}
		return gomcp.NewToolResultText(string(data)), nil
	}
}

// handleSpawnSubagent starts `shell -c command` as a supervised subagent.
// The process outlives the tool call; it is reaped in the background.
func handleSpawnSubagent(base context.Context, sup *supervisor.Supervisor, shell string, output io.Writer) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		command := req.GetString("command", "")
		name := req.GetString("name", "subagent")
		Log("tool call: spawn_subagent (name=%s, command=%q)", name, command)

		if command == "" {
			return gomcp.NewToolResultError("command is required"), nil
		}

		proc, err := orchestrator.Launch(base, sup, name, []string{shell, "-c", command},
			orchestrator.LaunchOptions{Stdout: output, Stderr: output})
		if err != nil {
			Log("spawn_subagent error: %v", err)
			if errors.Is(err, supervisor.ErrCapacityExceeded) {
				return gomcp.NewToolResultError("capacity exceeded, try again once a subagent finishes: " + err.Error()), nil
			}
			return gomcp.NewToolResultError("failed to spawn subagent: " + err.Error()), nil
		}

		go func() {
			code, err := proc.Wait()
			Log("subagent %s exited: code=%d err=%v", proc.ID(), code, err)
		}()

		data, err := json.Marshal(spawnResult{ID: proc.ID(), PID: proc.PID()})
		if err != nil {
			return gomcp.NewToolResultError("failed to marshal result: " + err.Error()), nil
		}
		Log("spawn_subagent: started %s", proc.ID())
		return gomcp.NewToolResultText(string(data)), nil
	}
}

// handleTerminateSubagent terminates and cleans up a subagent.
func handleTerminateSubagent(sup *supervisor.Supervisor) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		id := req.GetString("id", "")
		reason := req.GetString("reason", "requested by host agent")
		Log("tool call: terminate_subagent (id=%s, reason=%s)", id, reason)

		if id == "" {
			return gomcp.NewToolResultError("id is required"), nil
		}
		if !sup.Terminate(id, reason) {
			return gomcp.NewToolResultError(fmt.Sprintf("unknown subagent %q", id)), nil
		}
		sup.Cleanup(id)
		return gomcp.NewToolResultText(fmt.Sprintf("Subagent %s terminated.", id)), nil
	}
}
