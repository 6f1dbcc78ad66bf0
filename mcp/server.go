package mcp

import (
	"context"
	"io"

	"github.com/ByteMirror/overseer/supervisor"
	gomcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

const serverInstructions = "You are running under Overseer, a resource supervisor for subagents. " +
	"Every subagent you start counts against a shared budget of memory, CPU, runtime and concurrency. " +
	"Call supervisor_status before spawning work to see how much capacity is left. " +
	"Use spawn_subagent to start a shell command as a supervised subagent; it is rejected when the " +
	"concurrency limit is reached, in which case wait for running subagents to finish. " +
	"Use terminate_subagent to stop a subagent you no longer need."

// OverseerMCPServer exposes a supervisor to a host agent over MCP.
type OverseerMCPServer struct {
	server *mcpserver.MCPServer
	sup    *supervisor.Supervisor
	shell  string
	output io.Writer
	ctx    context.Context
}

// NewOverseerMCPServer creates a server that spawns commands with shell and
// sends their output to output. Output must not be the server's stdout.
func NewOverseerMCPServer(ctx context.Context, sup *supervisor.Supervisor, shell string, output io.Writer) *OverseerMCPServer {
	s := mcpserver.NewMCPServer(
		"overseer",
		"0.1.0",
		mcpserver.WithInstructions(serverInstructions),
	)

	h := &OverseerMCPServer{
		server: s,
		sup:    sup,
		shell:  shell,
		output: output,
		ctx:    ctx,
	}
	h.registerTools()

	Log("server created: shell=%s", shell)
	return h
}

func (h *OverseerMCPServer) registerTools() {
	status := gomcp.NewTool("supervisor_status",
		gomcp.WithDescription(
			"Report the supervisor's current state: every subagent with its status, memory, CPU, "+
				"runtime and warnings, plus the configured limits and session age.",
		),
		gomcp.WithReadOnlyHintAnnotation(true),
	)
	h.server.AddTool(status, handleSupervisorStatus(h.sup))

	spawn := gomcp.NewTool("spawn_subagent",
		gomcp.WithDescription(
			"Start a shell command as a supervised subagent and return its id. "+
				"The command is killed if it exceeds the execution time or memory limits.",
		),
		gomcp.WithString("command",
			gomcp.Required(),
			gomcp.Description("Shell command to run."),
		),
		gomcp.WithString("name",
			gomcp.Description("Short name used as the id prefix. Defaults to 'subagent'."),
		),
	)
	h.server.AddTool(spawn, handleSpawnSubagent(h.ctx, h.sup, h.shell, h.output))

	terminate := gomcp.NewTool("terminate_subagent",
		gomcp.WithDescription("Stop a subagent: interrupt it, kill it after the grace period, and remove it."),
		gomcp.WithString("id",
			gomcp.Required(),
			gomcp.Description("Subagent id as returned by spawn_subagent or supervisor_status."),
		),
		gomcp.WithString("reason",
			gomcp.Description("Why the subagent is being stopped. Recorded as a warning."),
		),
		gomcp.WithDestructiveHintAnnotation(true),
	)
	h.server.AddTool(terminate, handleTerminateSubagent(h.sup))
}

// Serve starts the MCP server using stdio transport.
func (h *OverseerMCPServer) Serve() error {
	return mcpserver.ServeStdio(h.server)
}
