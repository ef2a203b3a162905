package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/user"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ruffel/sshclient"
	"golang.org/x/crypto/ssh"
)

var _ sshclient.Transport = (*Transport)(nil)

// Transport implements sshclient.Transport over golang.org/x/crypto/ssh.
//
// x/crypto/ssh performs key exchange and authentication as a single step, so
// Handshake verifies the host with a key exchange that offers no credentials,
// and each authentication attempt runs its own key exchange offering exactly
// one credential. The first accepted attempt's connection is kept and carries
// every channel.
type Transport struct {
	config Config
	dialer net.Dialer

	mu         sync.Mutex
	client     *ssh.Client
	handshaken bool
	closed     bool
}

// New creates a transport from the given options. It does not connect.
func New(opts ...Option) (*Transport, error) {
	c := NewConfig("")

	for _, o := range opts {
		o(&c)
	}

	c = c.WithDefaults()

	c, err := c.resolveHostKeyCheck()
	if err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &Transport{
		config: c,
		dialer: net.Dialer{Timeout: c.Timeout},
	}, nil
}

// Config returns the transport's effective configuration.
func (t *Transport) Config() Config {
	return t.config
}

// Handshake connects to the host and completes key exchange, verifying the host key.
func (t *Transport) Handshake(ctx context.Context) error {
	if t.isClosed() {
		return sshclient.ErrSessionClosed
	}

	client, verified, err := t.negotiate(ctx, handshakeUser(t.config.User))
	if err == nil {
		// The server accepted the "none" method; nothing else to learn from this connection.
		_ = client.Close()
	} else if !verified {
		return &sshclient.HandshakeError{Addr: t.config.Address(), Err: err}
	}

	t.mu.Lock()
	t.handshaken = true
	t.mu.Unlock()

	return nil
}

// AuthenticateByKey authenticates user with the key pair in key.
func (t *Transport) AuthenticateByKey(ctx context.Context, user string, key sshclient.KeyFiles, passphrase sshclient.PassphraseFunc) error {
	if err := t.checkHandshaken(); err != nil {
		return err
	}

	signer, err := LoadSigner(key.PrivateKeyPath, key.PublicKeyPath, passphrase)
	if err != nil {
		return err
	}

	return t.authenticate(ctx, user, ssh.PublicKeys(signer))
}

// AuthenticateByPassword authenticates user with password.
func (t *Transport) AuthenticateByPassword(ctx context.Context, user, password string) error {
	if err := t.checkHandshaken(); err != nil {
		return err
	}

	return t.authenticate(ctx, user, ssh.Password(password))
}

// OpenChannel opens a new session channel on the authenticated connection.
func (t *Transport) OpenChannel(_ context.Context) (sshclient.Channel, error) {
	t.mu.Lock()
	client, closed := t.client, t.closed
	t.mu.Unlock()

	if closed {
		return nil, sshclient.ErrSessionClosed
	}

	if client == nil {
		return nil, sshclient.ErrNotAuthenticated
	}

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create ssh session: %w", err)
	}

	return newChannel(t, session), nil
}

// AgentSession returns a handle to the agent at the configured socket.
func (t *Transport) AgentSession() (sshclient.AgentHandle, error) {
	if t.config.DisableAgent || t.config.AgentSocket == "" {
		return nil, fmt.Errorf("%w: no ssh agent configured", sshclient.ErrNotSupported)
	}

	return newAgentHandle(t, t.config.AgentSocket), nil
}

// Close closes the underlying SSH connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	t.closed = true

	if t.client != nil {
		return t.client.Close()
	}

	return nil
}

// authenticate runs one connection attempt offering a single auth method and
// keeps the resulting client on success.
func (t *Transport) authenticate(ctx context.Context, user string, method ssh.AuthMethod) error {
	client, verified, err := t.negotiate(ctx, user, method)
	if err != nil {
		if verified && isAuthFailure(err) {
			return fmt.Errorf("%w: %w", sshclient.ErrCredentialRejected, err)
		}

		return fmt.Errorf("failed to dial ssh at %s: %w", t.config.Address(), err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		_ = client.Close()

		return sshclient.ErrSessionClosed
	}

	if t.client != nil {
		_ = t.client.Close()
	}

	t.client = client

	return nil
}

// negotiate dials the host and runs key exchange and authentication with the
// given methods. verified reports whether the host key was accepted, which
// tells a failed authentication apart from a failed key exchange.
func (t *Transport) negotiate(ctx context.Context, user string, auth ...ssh.AuthMethod) (*ssh.Client, bool, error) {
	addr := t.config.Address()

	conn, err := t.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, false, err
	}

	var verified atomic.Bool

	hostKey := func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		if err := t.config.HostKeyCheck(hostname, remote, key); err != nil {
			return err
		}

		verified.Store(true)

		return nil
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, t.config.clientConfig(user, hostKey, auth...))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(ctxErr, err)
		}

		return nil, verified.Load(), err
	}

	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(c, chans, reqs), true, nil
}

func (t *Transport) checkHandshaken() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return sshclient.ErrSessionClosed
	}

	if !t.handshaken {
		return fmt.Errorf("%w: authenticate before handshake", sshclient.ErrProtocolState)
	}

	return nil
}

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.closed
}

// isAuthFailure reports whether err is x/crypto's "no method accepted" error.
// The client returns it as a plain formatted error; ssh.ServerAuthError is
// only produced on the server side, so the message is all there is to match.
func isAuthFailure(err error) bool {
	return strings.Contains(err.Error(), "unable to authenticate")
}

func handshakeUser(configured string) string {
	if configured != "" {
		return configured
	}

	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}

	return "root"
}
