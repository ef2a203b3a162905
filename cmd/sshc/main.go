// Command sshc runs commands on remote hosts over SSH.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	err := newRootCmd().Execute()
	if err == nil {
		return
	}

	var exit *exitStatusError
	if errors.As(err, &exit) {
		os.Exit(exit.status)
	}

	fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+err.Error()))
	os.Exit(1)
}

// exitStatusError carries a remote exit status out of a command.
type exitStatusError struct {
	status int
}

func (e *exitStatusError) Error() string {
	return fmt.Sprintf("remote command exited with status %d", e.status)
}
