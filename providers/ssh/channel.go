package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ruffel/sshclient"
	"golang.org/x/crypto/ssh"
)

// channel implements sshclient.Channel on top of an ssh.Session.
//
// Session.Stdin is left nil, so x/crypto sends end-of-file on the channel as
// soon as the command starts and commands that read standard input never block.
type channel struct {
	transport *Transport
	session   *ssh.Session
	stderr    io.Writer

	ctx    context.Context
	stdout io.Reader
	stop   func() bool

	waited  bool
	waitErr error
}

func newChannel(t *Transport, session *ssh.Session) *channel {
	return &channel{transport: t, session: session, stderr: t.config.Stderr}
}

// Exec starts command. Cancelling ctx before the channel is waited on closes
// the session, which the reader observes as a failed read.
func (c *channel) Exec(ctx context.Context, command string) error {
	stdout, err := c.session.StdoutPipe()
	if err != nil {
		_ = c.session.Close()

		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if c.stderr != nil {
		c.session.Stderr = c.stderr
	}

	if err := c.session.Start(command); err != nil {
		_ = c.session.Close()

		return err
	}

	c.ctx = ctx
	c.stdout = stdout
	c.stop = context.AfterFunc(ctx, func() { _ = c.session.Close() })

	return nil
}

// ReadChunk reads the next piece of standard output. A closed session or
// connection looks like end of output to x/crypto, so end of output after the
// context was cancelled or the transport was closed is reported as an error.
func (c *channel) ReadChunk(p []byte) (int, error) {
	for {
		n, err := c.stdout.Read(p)
		if n > 0 {
			return n, nil
		}

		if errors.Is(err, io.EOF) {
			if cause := c.interrupted(); cause != nil {
				c.release()

				return 0, fmt.Errorf("command interrupted: %w", cause)
			}

			return 0, io.EOF
		}

		if err != nil {
			c.release()

			return 0, err
		}
	}
}

// Close ends the caller's use of the channel. End-of-file was already sent on
// standard input, and the channel itself closes once the remote command exits.
func (c *channel) Close() error {
	if c.stdout == nil {
		return fmt.Errorf("%w: close before exec", sshclient.ErrProtocolState)
	}

	return nil
}

// WaitClosed waits for the remote command to exit and the channel to close.
func (c *channel) WaitClosed() error {
	err := c.session.Wait()
	c.release()

	c.waited = true
	c.waitErr = err

	var exitErr *ssh.ExitError
	var missingErr *ssh.ExitMissingError

	switch {
	case err == nil, errors.As(err, &exitErr), errors.As(err, &missingErr):
		return nil
	default:
		return err
	}
}

// ExitStatus returns the status reported by the remote command.
func (c *channel) ExitStatus() (int, error) {
	if !c.waited {
		return sshclient.NoExitStatus, fmt.Errorf("%w: exit status before wait", sshclient.ErrProtocolState)
	}

	if c.waitErr == nil {
		return 0, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(c.waitErr, &exitErr) {
		return exitErr.ExitStatus(), nil
	}

	return sshclient.NoExitStatus, c.waitErr
}

func (c *channel) interrupted() error {
	if err := c.ctx.Err(); err != nil {
		return err
	}

	if c.transport.isClosed() {
		return sshclient.ErrSessionClosed
	}

	return nil
}

func (c *channel) release() {
	if c.stop != nil {
		c.stop()
	}

	_ = c.session.Close()
}
