//go:build windows

package local

import (
	"os/exec"
	"strconv"
)

// killProcessGroup kills the process tree rooted at pid.
//
// TODO(windows): switch to Job Objects so grandchildren that detach from the
// tree are also reaped.
func killProcessGroup(pid int) error {
	return exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).Run()
}

// setProcessGroup is a no-op until Job Objects are used.
func setProcessGroup(_ *exec.Cmd) {}
