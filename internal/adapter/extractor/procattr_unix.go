//go:build unix

package extractor

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup запускает воркер в отдельной группе процессов,
// чтобы при отмене убить и его потомков, держащих pipe.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
