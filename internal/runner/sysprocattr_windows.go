//go:build windows

package runner

import (
	"os"
	"os/exec"
)

func configureCmdSysProcAttr(cmd *exec.Cmd) {}

func signalTerm(p *os.Process) error {
	return p.Signal(os.Interrupt)
}
