//go:build unix

package mcp

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	olog "github.com/ByteMirror/overseer/log"
	"github.com/ByteMirror/overseer/supervisor"
	gomcp "github.com/mark3labs/mcp-go/mcp"
)

func TestMain(m *testing.M) {
	olog.Initialize(false)
	defer olog.Close()

	os.Exit(m.Run())
}

// resultText extracts the text string from a CallToolResult.
// It assumes the result contains exactly one TextContent item.
func resultText(t *testing.T, result *gomcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	tc, ok := gomcp.AsTextContent(result.Content[0])
	if !ok {
		t.Fatalf("result content[0] is not TextContent: %T", result.Content[0])
	}
	return tc.Text
}

func newTestSupervisor(t *testing.T, maxConcurrent int) *supervisor.Supervisor {
	t.Helper()
	limits := supervisor.DefaultLimits()
	limits.MaxConcurrentSubagents = maxConcurrent
	limits.MemoryCheckIntervalSeconds = 3600
	limits.TerminationGraceSeconds = 0.2

	sup, err := supervisor.New(limits)
	if err != nil {
		t.Fatalf("supervisor.New: %v", err)
	}
	t.Cleanup(sup.Shutdown)
	return sup
}

func call(t *testing.T, handler func(context.Context, gomcp.CallToolRequest) (*gomcp.CallToolResult, error), args map[string]any) *gomcp.CallToolResult {
	t.Helper()
	req := gomcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return result
}

func TestHandleSupervisorStatus(t *testing.T) {
	sup := newTestSupervisor(t, 2)
	if _, err := sup.Register("worker-1", nil); err != nil {
		t.Fatalf("Register: %v", err)
	}

	result := call(t, handleSupervisorStatus(sup), nil)
	if result.IsError {
		t.Fatalf("unexpected error: %s", resultText(t, result))
	}

	var report supervisor.Report
	if err := json.Unmarshal([]byte(resultText(t, result)), &report); err != nil {
		t.Fatalf("failed to parse JSON response: %v", err)
	}
	if report.ActiveSubagents != 1 {
		t.Errorf("ActiveSubagents = %d, want 1", report.ActiveSubagents)
	}
	if d, ok := report.SubagentDetails["worker-1"]; !ok || d.Status != supervisor.StatusActive {
		t.Errorf("worker-1 detail = %+v, want ACTIVE", d)
	}
	if report.Limits.MaxConcurrentSubagents != 2 {
		t.Errorf("Limits.MaxConcurrentSubagents = %d, want 2", report.Limits.MaxConcurrentSubagents)
	}
}

func TestHandleSpawnSubagent(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]any
		occupied bool
		wantErr  bool
		contains string
	}{
		{
			name:     "starts a command",
			args:     map[string]any{"command": "sleep 30", "name": "sleeper"},
			contains: `"id":"sleeper-`,
		},
		{
			name:     "missing command",
			args:     map[string]any{"name": "x"},
			wantErr:  true,
			contains: "command is required",
		},
		{
			name:     "capacity exceeded",
			args:     map[string]any{"command": "true"},
			occupied: true,
			wantErr:  true,
			contains: "capacity exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sup := newTestSupervisor(t, 1)
			if tt.occupied {
				if _, err := sup.Register("busy", nil); err != nil {
					t.Fatalf("Register: %v", err)
				}
			}

			result := call(t, handleSpawnSubagent(context.Background(), sup, "sh", nil), tt.args)
			text := resultText(t, result)

			if tt.wantErr != result.IsError {
				t.Fatalf("IsError = %v, want %v (%s)", result.IsError, tt.wantErr, text)
			}
			if !strings.Contains(text, tt.contains) {
				t.Errorf("result %q does not contain %q", text, tt.contains)
			}
			if tt.wantErr {
				return
			}

			var res spawnResult
			if err := json.Unmarshal([]byte(text), &res); err != nil {
				t.Fatalf("failed to parse JSON response: %v", err)
			}
			if res.PID <= 0 {
				t.Errorf("PID = %d, want > 0", res.PID)
			}
			if got := sup.Snapshot().ActiveSubagents; got != 1 {
				t.Errorf("ActiveSubagents = %d, want 1", got)
			}
		})
	}
}

func TestSpawnedSubagentIsReaped(t *testing.T) {
	sup := newTestSupervisor(t, 1)

	result := call(t, handleSpawnSubagent(context.Background(), sup, "sh", nil), map[string]any{"command": "exit 0"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", resultText(t, result))
	}

	deadline := time.Now().Add(5 * time.Second)
	for sup.Snapshot().ActiveSubagents != 0 {
		if time.Now().After(deadline) {
			t.Fatal("finished subagent was not cleaned up")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestHandleTerminateSubagent(t *testing.T) {
	sup := newTestSupervisor(t, 2)

	spawned := call(t, handleSpawnSubagent(context.Background(), sup, "sh", nil), map[string]any{"command": "sleep 30", "name": "victim"})
	var res spawnResult
	if err := json.Unmarshal([]byte(resultText(t, spawned)), &res); err != nil {
		t.Fatalf("failed to parse spawn response: %v", err)
	}

	t.Run("missing id", func(t *testing.T) {
		result := call(t, handleTerminateSubagent(sup), map[string]any{})
		if !result.IsError {
			t.Fatal("expected IsError=true")
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		result := call(t, handleTerminateSubagent(sup), map[string]any{"id": "nope"})
		if !result.IsError {
			t.Fatal("expected IsError=true")
		}
		if text := resultText(t, result); !strings.Contains(text, "unknown subagent") {
			t.Errorf("result %q does not mention unknown subagent", text)
		}
	})

	t.Run("terminates and removes", func(t *testing.T) {
		result := call(t, handleTerminateSubagent(sup), map[string]any{"id": res.ID, "reason": "no longer needed"})
		if result.IsError {
			t.Fatalf("unexpected error: %s", resultText(t, result))
		}
		if _, ok := sup.Snapshot().SubagentDetails[res.ID]; ok {
			t.Errorf("subagent %s still registered", res.ID)
		}
	})
}

func TestNewOverseerMCPServer(t *testing.T) {
	sup := newTestSupervisor(t, 1)
	srv := NewOverseerMCPServer(context.Background(), sup, "sh", nil)
	if srv.server == nil {
		t.Fatal("expected MCP server to be created")
	}
}
