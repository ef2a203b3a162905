// Package sshclient provides a minimal SSH client API: connect, authenticate
// against a remote host with ordered fallback across methods, and execute
// remote commands while streaming or capturing their output.
//
// # Core Interfaces
//
// - Transport: the connection to a remote host (handshake, low-level authentication, channels).
// - Channel: a single remote command's output stream and exit status.
// - AgentHandle: a running key agent that can list identities and authenticate with them.
//
// Providers implement these interfaces: providers/ssh speaks the SSH protocol via
// golang.org/x/crypto/ssh, providers/local runs commands on the local machine, and
// providers/mock offers testify mocks.
//
// # Authentication
//
// A Session authenticates with a single AuthMethod or an ordered list of them.
// Methods in a list are tried in order until one is accepted; failures are recorded
// on the returned *AuthError rather than discarded.
//
// # Streaming
//
// Output is delivered chunk by chunk to a Sink in the order the remote command
// produced it. Use Capture when you just want the whole output as a string.
package sshclient

import (
	"context"
	"io"
)

// PassphraseFunc lazily resolves the passphrase for an encrypted private key.
// Transports call it only when the key actually needs decrypting.
type PassphraseFunc func() (string, error)

// KeyFiles names the on-disk key pair used for public key authentication.
type KeyFiles struct {
	PrivateKeyPath string
	PublicKeyPath  string
}

// Transport abstracts an established connection to a remote host.
//
// Implementations own the network socket and the cryptographic session. They are
// not required to be safe for concurrent use.
type Transport interface {
	io.Closer

	// Handshake establishes the protocol session (connect and key exchange).
	Handshake(ctx context.Context) error

	// AuthenticateByKey authenticates user with the given key pair.
	// passphrase is invoked at most once, and only if the private key is encrypted.
	AuthenticateByKey(ctx context.Context, user string, key KeyFiles, passphrase PassphraseFunc) error

	// AuthenticateByPassword authenticates user with a password.
	AuthenticateByPassword(ctx context.Context, user, password string) error

	// OpenChannel opens a new channel for a single command.
	// Fails if the transport is not authenticated or has no capacity.
	OpenChannel(ctx context.Context) (Channel, error)

	// AgentSession returns a handle to the local key agent bound to this transport.
	// Returns an error wrapping ErrNotSupported if no agent is available.
	AgentSession() (AgentHandle, error)
}

// Channel is a single logical stream used for one remote command's lifetime.
//
// Callers invoke Exec, then ReadChunk until end of output, then Close, WaitClosed
// and ExitStatus, each exactly once and in that order.
type Channel interface {
	// Exec starts command on the channel.
	Exec(ctx context.Context, command string) error

	// ReadChunk reads the next chunk of output into p.
	// A positive count is a chunk, zero (or io.EOF) signals end of output and a
	// negative count is a transport error code.
	ReadChunk(p []byte) (int, error)

	// Close signals that the caller is done with the channel.
	Close() error

	// WaitClosed blocks until the remote peer confirms closure.
	WaitClosed() error

	// ExitStatus returns the command's exit code.
	ExitStatus() (int, error)
}

// AgentHandle is a session with a key agent.
//
// ListIdentities must be called once, after Connect and before NextIdentity.
type AgentHandle interface {
	io.Closer

	// Connect establishes the session with the agent.
	Connect(ctx context.Context) error

	// ListIdentities asks the agent to enumerate the identities it holds.
	ListIdentities(ctx context.Context) error

	// NextIdentity returns the identity following after, or the first identity when
	// after is nil. It returns nil once no identity remains.
	NextIdentity(after *Identity) (*Identity, error)

	// TryAuthenticate attempts to authenticate user with the given identity over the
	// transport that created this handle.
	TryAuthenticate(ctx context.Context, user string, id Identity) (bool, error)
}
