package mcp

import (
	"fmt"
	"log"
	"sync/atomic"
)

// logger receives the server's tool-call trace. Handlers run on the
// server's goroutines, so it is swapped atomically.
var logger atomic.Pointer[log.Logger]

// SetLogger directs the MCP trace to l. A nil l silences it.
func SetLogger(l *log.Logger) {
	logger.Store(l)
}

// Log writes one formatted trace line, attributed to its caller.
func Log(format string, args ...any) {
	if l := logger.Load(); l != nil {
		_ = l.Output(2, fmt.Sprintf(format, args...))
	}
}
