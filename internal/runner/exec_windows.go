//go:build windows

package runner

import "os/exec"

func setupProcessGroup(cmd *exec.Cmd) {}
