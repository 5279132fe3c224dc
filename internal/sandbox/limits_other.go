//go:build !linux

package sandbox

import (
	"fmt"
	"os"
	"syscall"
)

// Resource limits and credential switching are only implemented on Linux.
// Elsewhere the process backend is suitable for local development only.

func sysProcAttr(Limits) *syscall.SysProcAttr { return nil }

func applyLimits(int, Limits) error { return nil }

func killGroup(p *os.Process) error {
	if p == nil {
		return nil
	}
	_ = p.Kill()
	return nil
}

func exitInfo(state *os.ProcessState) (int, string) {
	return state.ExitCode(), ""
}

func signalFromExitCode(code int) string {
	if code <= 128 || code >= 128+65 {
		return ""
	}
	return fmt.Sprintf("signal %d", code-128)
}
