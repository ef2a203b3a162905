package sshclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// NoExitStatus is returned as the exit status when a command did not run to completion.
const NoExitStatus = -1

// Sink receives command output, one chunk at a time and in order.
// Returning an error aborts the command.
type Sink func(chunk string) error

// SinkWriter returns a Sink that writes every chunk to w.
func SinkWriter(w io.Writer) Sink {
	return func(chunk string) error {
		_, err := io.WriteString(w, chunk)

		return err
	}
}

// channelState tracks a channel through its lifecycle.
type channelState int

const (
	stateOpened channelState = iota
	stateExecuting
	stateDraining
	stateClosed
	stateWaited
)

func (s channelState) String() string {
	switch s {
	case stateOpened:
		return "opened"
	case stateExecuting:
		return "executing"
	case stateDraining:
		return "draining"
	case stateClosed:
		return "closed"
	case stateWaited:
		return "waited"
	default:
		return "unknown"
	}
}

// execution drives one command on one channel, strictly in order:
// exec, drain, close, wait, exit status.
type execution struct {
	channel Channel
	command string
	state   channelState
	buf     []byte
}

func (x *execution) advance(from, to channelState) error {
	if x.state != from {
		return fmt.Errorf("%w: channel is %s, want %s", ErrProtocolState, x.state, from)
	}

	x.state = to

	return nil
}

func (x *execution) exec(ctx context.Context) error {
	if err := x.advance(stateOpened, stateExecuting); err != nil {
		return err
	}

	if err := x.channel.Exec(ctx, x.command); err != nil {
		return &ExecError{Command: x.command, Err: err}
	}

	return nil
}

func (x *execution) drain(sink Sink) error {
	if err := x.advance(stateExecuting, stateDraining); err != nil {
		return err
	}

	for {
		n, err := x.channel.ReadChunk(x.buf)

		switch {
		case n < 0:
			return &ChannelIOError{Code: n, Err: err}
		case n > 0:
			if sinkErr := sink(string(x.buf[:n])); sinkErr != nil {
				return &ChannelIOError{Code: CodeSinkFailed, Err: sinkErr}
			}
		case err == nil || errors.Is(err, io.EOF):
			return nil
		}

		if err != nil && !errors.Is(err, io.EOF) {
			return &ChannelIOError{Code: CodeReadFailed, Err: err}
		}
	}
}

func (x *execution) finish() (int, error) {
	if err := x.advance(stateDraining, stateClosed); err != nil {
		return NoExitStatus, err
	}

	if err := x.channel.Close(); err != nil {
		return NoExitStatus, &ChannelCloseError{Step: "close", Err: err}
	}

	if err := x.advance(stateClosed, stateWaited); err != nil {
		return NoExitStatus, err
	}

	if err := x.channel.WaitClosed(); err != nil {
		return NoExitStatus, &ChannelCloseError{Step: "wait", Err: err}
	}

	status, err := x.channel.ExitStatus()
	if err != nil {
		return NoExitStatus, &ChannelCloseError{Step: "exit-status", Err: err}
	}

	return status, nil
}

// runCommand opens a channel on t, runs command and streams its output to sink.
// A failure while opening, executing or draining returns immediately; the
// channel is not closed or waited on in that case.
func runCommand(ctx context.Context, t Transport, command string, sink Sink, chunkSize int) (int, error) {
	ch, err := t.OpenChannel(ctx)
	if err != nil {
		return NoExitStatus, &ChannelOpenError{Err: err}
	}

	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	x := &execution{
		channel: ch,
		command: command,
		state:   stateOpened,
		buf:     make([]byte, chunkSize),
	}

	if err := x.exec(ctx); err != nil {
		return NoExitStatus, err
	}

	if err := x.drain(sink); err != nil {
		return NoExitStatus, err
	}

	return x.finish()
}

// lineSplitter turns chunks into lines, holding back a trailing partial line
// until the next chunk or flush.
type lineSplitter struct {
	pending strings.Builder
	onLine  func(string)
}

func (l *lineSplitter) write(chunk string) error {
	for {
		i := strings.IndexByte(chunk, '\n')
		if i < 0 {
			l.pending.WriteString(chunk)

			return nil
		}

		l.pending.WriteString(chunk[:i])
		line := strings.TrimSuffix(l.pending.String(), "\r")
		l.pending.Reset()
		l.onLine(line)

		chunk = chunk[i+1:]
	}
}

func (l *lineSplitter) flush() {
	if l.pending.Len() == 0 {
		return
	}

	line := l.pending.String()
	l.pending.Reset()
	l.onLine(line)
}
