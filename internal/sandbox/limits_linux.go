//go:build linux

package sandbox

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

func sysProcAttr(l Limits) *syscall.SysProcAttr {
	attr := &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	if l.UID >= 0 {
		gid := l.GID
		if gid < 0 {
			gid = l.UID
		}
		attr.Credential = &syscall.Credential{
			Uid: uint32(l.UID),
			Gid: uint32(gid),
		}
	}
	return attr
}

// applyLimits sets rlimits on a freshly started child. The program has
// already been exec'd at this point, so the first instructions run unbounded.
func applyLimits(pid int, l Limits) error {
	set := func(resource int, soft, hard uint64) error {
		lim := unix.Rlimit{Cur: soft, Max: hard}
		if err := unix.Prlimit(pid, resource, &lim, nil); err != nil {
			if errors.Is(err, unix.ESRCH) {
				return nil
			}
			return fmt.Errorf("prlimit %d: %w", resource, err)
		}
		return nil
	}

	if l.CPUSeconds > 0 {
		// SIGXCPU at the soft limit, SIGKILL one second later.
		if err := set(unix.RLIMIT_CPU, l.CPUSeconds, l.CPUSeconds+1); err != nil {
			return err
		}
	}
	if l.MemoryBytes > 0 {
		if err := set(unix.RLIMIT_AS, l.MemoryBytes, l.MemoryBytes); err != nil {
			return err
		}
	}
	if l.MaxOpenFiles > 0 {
		if err := set(unix.RLIMIT_NOFILE, l.MaxOpenFiles, l.MaxOpenFiles); err != nil {
			return err
		}
	}
	if l.MaxFileBytes > 0 {
		if err := set(unix.RLIMIT_FSIZE, l.MaxFileBytes, l.MaxFileBytes); err != nil {
			return err
		}
	}
	// RLIMIT_NPROC counts every process of the real uid, so it is only
	// meaningful when programs run under a dedicated user.
	if l.MaxProcs > 0 && l.UID >= 0 {
		if err := set(unix.RLIMIT_NPROC, l.MaxProcs, l.MaxProcs); err != nil {
			return err
		}
	}
	return nil
}

func killGroup(p *os.Process) error {
	if p == nil {
		return nil
	}
	err := unix.Kill(-p.Pid, unix.SIGKILL)
	if err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	return nil
}

func exitInfo(state *os.ProcessState) (int, string) {
	ws, ok := state.Sys().(syscall.WaitStatus)
	if ok && ws.Signaled() {
		return -1, signalName(ws.Signal())
	}
	return state.ExitCode(), ""
}

// signalFromExitCode maps a shell-style 128+n exit status to a signal name.
func signalFromExitCode(code int) string {
	if code <= 128 || code >= 128+65 {
		return ""
	}
	return signalName(syscall.Signal(code - 128))
}

func signalName(sig syscall.Signal) string {
	if name := unix.SignalName(sig); name != "" {
		return name
	}
	return fmt.Sprintf("signal %d", int(sig))
}
