package sshclient

import (
	"errors"
	"fmt"
)

// ErrNotSupported indicates that the requested feature (e.g. an agent) is not
// available from the specific provider.
var ErrNotSupported = errors.New("operation not supported")

// ErrSessionClosed indicates that an operation was attempted on a closed session.
var ErrSessionClosed = errors.New("session is closed")

// ErrSessionBusy indicates that a command is already running on the session.
var ErrSessionBusy = errors.New("session already has a command in flight")

// ErrProtocolState indicates that an operation was invoked out of sequence,
// e.g. enumerating agent identities before listing them.
var ErrProtocolState = errors.New("operation invoked out of sequence")

// ErrNotAuthenticated indicates that a channel was requested before authentication.
var ErrNotAuthenticated = errors.New("transport is not authenticated")

// ErrCredentialRejected indicates that the remote host refused the offered credentials.
var ErrCredentialRejected = errors.New("credentials rejected")

// ErrPassphraseRequired indicates that a private key is encrypted and no passphrase was available.
var ErrPassphraseRequired = errors.New("private key is encrypted and no passphrase was provided")

// ErrNotTerminal indicates that an interactive prompt was requested without a terminal.
var ErrNotTerminal = errors.New("interactive prompt requires a terminal")

// ErrNoIdentities indicates that the key agent holds no identities.
var ErrNoIdentities = errors.New("agent holds no identities")

// Attempt records the outcome of one failed authentication attempt.
type Attempt struct {
	Method   AuthMethod
	Identity *Identity // Set for attempts made with an agent identity
	Err      error
}

func (a Attempt) String() string {
	name := "<nil>"
	if a.Method != nil {
		name = a.Method.String()
	}

	if a.Identity != nil {
		name = fmt.Sprintf("%s[%s]", name, a.Identity)
	}

	return fmt.Sprintf("%s: %v", name, a.Err)
}

// AuthError reports that every authentication attempt of a call was exhausted.
// Each attempt's cause remains reachable through errors.Is and errors.As.
type AuthError struct {
	User     string
	Attempts []Attempt
}

func (e *AuthError) Error() string {
	switch len(e.Attempts) {
	case 0:
		return fmt.Sprintf("authentication failed for %q: no methods attempted", e.User)
	case 1:
		return fmt.Sprintf("authentication failed for %q: %s", e.User, e.Attempts[0])
	default:
		last := e.Attempts[len(e.Attempts)-1]

		return fmt.Sprintf("authentication failed for %q after %d attempts (last %s)", e.User, len(e.Attempts), last)
	}
}

func (e *AuthError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))

	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}

	return errs
}

// HandshakeError represents a failure establishing the transport session.
type HandshakeError struct {
	Addr string
	Err  error
}

func (e *HandshakeError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("handshake failed: %v", e.Err)
	}

	return fmt.Sprintf("handshake with %s failed: %v", e.Addr, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// ChannelOpenError represents a failure opening a command channel.
type ChannelOpenError struct {
	Err error
}

func (e *ChannelOpenError) Error() string {
	return fmt.Sprintf("failed to open channel: %v", e.Err)
}

func (e *ChannelOpenError) Unwrap() error {
	return e.Err
}

// ExecError represents a failure starting a command on an open channel.
type ExecError struct {
	Command string
	Err     error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("failed to execute %q: %v", e.Command, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Channel I/O error codes used when the cause carries no code of its own.
const (
	CodeReadFailed = -1 // The transport returned an error while reading
	CodeSinkFailed = -2 // The output sink rejected a chunk
)

// ChannelIOError represents a failure while draining a command's output.
type ChannelIOError struct {
	Code int
	Err  error
}

func (e *ChannelIOError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("channel read failed with code %d", e.Code)
	}

	return fmt.Sprintf("channel read failed with code %d: %v", e.Code, e.Err)
}

func (e *ChannelIOError) Unwrap() error {
	return e.Err
}

// ChannelCloseError represents a failure in one of the closing steps of a channel.
type ChannelCloseError struct {
	Step string // "close", "wait" or "exit-status"
	Err  error
}

func (e *ChannelCloseError) Error() string {
	return fmt.Sprintf("channel %s failed: %v", e.Step, e.Err)
}

func (e *ChannelCloseError) Unwrap() error {
	return e.Err
}
