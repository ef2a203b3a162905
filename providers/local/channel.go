package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/ruffel/sshclient"
)

// channel runs one command and wraps `*exec.Cmd` to provide the channel
// primitives: exec, chunked reads, end-of-input, wait and exit status.
//
// The command's standard input is empty, so commands that read it see
// end-of-file immediately.
type channel struct {
	transport *Transport

	cmd    *exec.Cmd
	stdout io.ReadCloser

	// ctx is cancelled with the caller's context or when the transport closes.
	ctx    context.Context
	cancel context.CancelCauseFunc
	stop   func() bool

	once    sync.Once
	waited  bool
	waitErr error
}

func (c *channel) Exec(ctx context.Context, command string) error {
	if c.cmd != nil {
		return fmt.Errorf("%w: command already started", sshclient.ErrProtocolState)
	}

	c.ctx, c.cancel = context.WithCancelCause(ctx)
	c.stop = context.AfterFunc(c.transport.ctx, func() { c.cancel(sshclient.ErrSessionClosed) })

	shell := c.transport.config.Shell
	args := append(append([]string(nil), shell[1:]...), command)

	cmd := exec.CommandContext(c.ctx, shell[0], args...) //nolint:gosec // running commands is the point

	// Create a new Process Group to allow killing the entire tree (children) later.
	setProcessGroup(cmd)

	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}

		return killProcessGroup(cmd.Process.Pid)
	}

	cmd.Stdin = nil
	cmd.Stderr = c.transport.config.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.release()

		return err
	}

	if err := cmd.Start(); err != nil {
		c.release()

		return err
	}

	c.cmd = cmd
	c.stdout = stdout

	return nil
}

// ReadChunk reads the next piece of standard output. End of output caused by
// cancellation or a closed transport is reported as an error, and the killed
// command is reaped.
func (c *channel) ReadChunk(p []byte) (int, error) {
	if c.stdout == nil {
		return 0, fmt.Errorf("%w: read before exec", sshclient.ErrProtocolState)
	}

	n, err := c.stdout.Read(p)
	if n > 0 || !errors.Is(err, io.EOF) {
		return n, err
	}

	if cause := context.Cause(c.ctx); cause != nil {
		_ = c.cmd.Wait()
		c.release()

		return 0, fmt.Errorf("command interrupted: %w", cause)
	}

	return 0, io.EOF
}

// Close marks the end of the caller's use of the channel. Standard input was
// never open, so there is nothing to send.
func (c *channel) Close() error {
	if c.cmd == nil {
		return fmt.Errorf("%w: close before exec", sshclient.ErrProtocolState)
	}

	return nil
}

// WaitClosed waits for the command to exit. A non-zero exit is not an error
// here; it is reported through ExitStatus.
func (c *channel) WaitClosed() error {
	if c.cmd == nil {
		return fmt.Errorf("%w: wait before exec", sshclient.ErrProtocolState)
	}

	defer c.release()

	c.waited = true
	c.waitErr = c.cmd.Wait()

	var exitErr *exec.ExitError
	if c.waitErr == nil || errors.As(c.waitErr, &exitErr) {
		return nil
	}

	return c.waitErr
}

func (c *channel) ExitStatus() (int, error) {
	if !c.waited {
		return sshclient.NoExitStatus, fmt.Errorf("%w: exit status before wait", sshclient.ErrProtocolState)
	}

	code := c.cmd.ProcessState.ExitCode()
	if code < 0 {
		return sshclient.NoExitStatus, fmt.Errorf("command terminated without exit status: %w", c.waitErr)
	}

	return code, nil
}

func (c *channel) release() {
	c.once.Do(func() {
		if c.stop != nil {
			c.stop()
		}

		if c.cancel != nil {
			c.cancel(nil)
		}

		c.transport.release()
	})
}
