//go:build !unix

package supervisor

import "os"

// Without process groups or SIGTERM the only portable stop is Kill.
func interruptProcess(proc *os.Process, _ bool) error {
	return proc.Signal(os.Interrupt)
}

func killProcess(proc *os.Process, _ bool) error {
	return proc.Kill()
}
