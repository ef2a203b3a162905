package sshclient

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Dialer creates a Transport that is connected but not yet handshaken.
type Dialer func(ctx context.Context) (Transport, error)

// Session is an established connection to a remote host.
//
// A Session owns its Transport. It is not safe for concurrent use: only one
// Execute or Capture call may be in flight at a time.
type Session struct {
	id        string
	transport Transport
	auth      *Authenticator
	config    Config
	logger    zerolog.Logger

	busy   atomic.Bool
	closed atomic.Bool
}

// Open performs the handshake on t and returns a Session owning it.
// On failure t is closed and a *HandshakeError is returned.
func Open(ctx context.Context, t Transport, opts ...Option) (*Session, error) {
	cfg := newConfig(opts)
	id := uuid.NewString()
	logger := cfg.Logger.With().Str("session_id", id).Logger()
	cfg.Logger = logger

	if err := t.Handshake(ctx); err != nil {
		_ = t.Close()

		logger.Debug().Err(err).Msg("handshake failed")

		var hsErr *HandshakeError
		if errors.As(err, &hsErr) {
			return nil, err
		}

		return nil, &HandshakeError{Err: err}
	}

	logger.Debug().Msg("handshake complete")

	return &Session{
		id:        id,
		transport: t,
		auth:      NewAuthenticator(t, WithLogger(logger), WithPassphraseProvider(cfg.Passphrases)),
		config:    cfg,
		logger:    logger,
	}, nil
}

// Connect dials a transport, performs the handshake, authenticates user with
// method and then invokes body with the live session. body is never invoked
// if any of those steps fails. The session is closed when body returns.
func Connect(ctx context.Context, dial Dialer, user string, method AuthMethod, body func(*Session) error, opts ...Option) error {
	return connect(ctx, dial, body, opts, func(s *Session) error {
		return s.Authenticate(ctx, user, method)
	})
}

// ConnectAny is like Connect but tries methods in order until one is accepted.
func ConnectAny(ctx context.Context, dial Dialer, user string, methods []AuthMethod, body func(*Session) error, opts ...Option) error {
	return connect(ctx, dial, body, opts, func(s *Session) error {
		return s.AuthenticateAny(ctx, user, methods)
	})
}

func connect(ctx context.Context, dial Dialer, body func(*Session) error, opts []Option, authenticate func(*Session) error) error {
	t, err := dial(ctx)
	if err != nil {
		var hsErr *HandshakeError
		if errors.As(err, &hsErr) {
			return err
		}

		return &HandshakeError{Err: err}
	}

	s, err := Open(ctx, t, opts...)
	if err != nil {
		return err
	}

	defer func() { _ = s.Close() }()

	if err := authenticate(s); err != nil {
		return err
	}

	return body(s)
}

// ID returns the identifier used to correlate this session's log entries.
func (s *Session) ID() string {
	return s.id
}

// Authenticate authenticates user with a single method. A failure is an
// *AuthError wrapping the transport's error.
func (s *Session) Authenticate(ctx context.Context, user string, method AuthMethod) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	return s.auth.Authenticate(ctx, user, method)
}

// AuthenticateAny tries methods in order until one is accepted.
func (s *Session) AuthenticateAny(ctx context.Context, user string, methods []AuthMethod) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	return s.auth.AuthenticateAny(ctx, user, methods)
}

// TryAuthenticate is like AuthenticateAny but returns the full Outcome.
func (s *Session) TryAuthenticate(ctx context.Context, user string, methods []AuthMethod) Outcome {
	if s.closed.Load() {
		return Outcome{User: user, Attempts: []Attempt{{Err: ErrSessionClosed}}}
	}

	return s.auth.Try(ctx, user, methods)
}

// Execute runs command and returns its exit status. Output is delivered to sink
// chunk by chunk; a nil sink writes it to the configured output (os.Stdout by default).
func (s *Session) Execute(ctx context.Context, command string, sink Sink) (int, error) {
	if sink == nil {
		sink = SinkWriter(s.config.Output)
	}

	if err := s.acquire(); err != nil {
		return NoExitStatus, err
	}

	defer s.release()

	s.logger.Debug().Str("command", command).Msg("executing")

	status, err := runCommand(ctx, s.transport, command, sink, s.config.ChunkSize)
	if err != nil {
		s.logger.Debug().Err(err).Str("command", command).Msg("command failed")

		return status, err
	}

	s.logger.Debug().Str("command", command).Int("exit_status", status).Msg("command finished")

	return status, nil
}

// Capture runs command and returns its exit status together with its complete output.
// On failure the output received so far is returned alongside the error.
func (s *Session) Capture(ctx context.Context, command string) (int, string, error) {
	var buf []byte

	status, err := s.Execute(ctx, command, func(chunk string) error {
		buf = append(buf, chunk...)

		return nil
	})

	return status, string(buf), err
}

// ExecuteLines runs command and calls onLine for every line of output, without
// the line terminator. A final line without a terminator is delivered too.
func (s *Session) ExecuteLines(ctx context.Context, command string, onLine func(string)) (int, error) {
	lines := &lineSplitter{onLine: onLine}

	status, err := s.Execute(ctx, command, lines.write)

	lines.flush()

	return status, err
}

// Close closes the underlying transport.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.logger.Debug().Msg("closing session")

	return s.transport.Close()
}

func (s *Session) acquire() error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	if !s.busy.CompareAndSwap(false, true) {
		return ErrSessionBusy
	}

	return nil
}

func (s *Session) release() {
	s.busy.Store(false)
}
