//go:build !unix

package worker

import (
	"errors"
	"os"
	"os/exec"
)

func configureProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func isPermissionDenied(err error) bool {
	return errors.Is(err, os.ErrPermission)
}
