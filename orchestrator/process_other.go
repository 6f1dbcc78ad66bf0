//go:build !unix

package orchestrator

import "os/exec"

func setProcessGroup(*exec.Cmd) bool {
	return false
}
