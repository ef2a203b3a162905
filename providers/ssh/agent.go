package ssh

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ruffel/sshclient"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

var _ sshclient.AgentHandle = (*agentHandle)(nil)

// agentHandle talks to an SSH agent over its unix socket and authenticates
// through the transport that created it.
type agentHandle struct {
	transport *Transport // nil for a listing-only handle
	socket    string
	timeout   time.Duration

	conn    net.Conn
	client  agent.ExtendedAgent
	keys    []*agent.Key
	signers map[string]ssh.Signer
	listed  bool
}

func newAgentHandle(t *Transport, socket string) *agentHandle {
	return &agentHandle{transport: t, socket: socket, timeout: t.config.Timeout}
}

// OpenAgent returns a handle to the agent at socket that can enumerate
// identities without a remote host. TryAuthenticate always fails on it.
// An empty socket means $SSH_AUTH_SOCK.
func OpenAgent(socket string) (sshclient.AgentHandle, error) {
	if socket == "" {
		socket = os.Getenv("SSH_AUTH_SOCK")
	}

	if socket == "" {
		return nil, fmt.Errorf("%w: SSH_AUTH_SOCK is not set", sshclient.ErrNotSupported)
	}

	return &agentHandle{socket: socket, timeout: NewConfig("").Timeout}, nil
}

// Connect opens the agent socket.
func (a *agentHandle) Connect(ctx context.Context) error {
	dialer := net.Dialer{Timeout: a.timeout}

	conn, err := dialer.DialContext(ctx, "unix", a.socket)
	if err != nil {
		return fmt.Errorf("connect to ssh agent: %w", err)
	}

	a.conn = conn
	a.client = agent.NewClient(conn)

	return nil
}

// ListIdentities snapshots the agent's keys together with their signers.
func (a *agentHandle) ListIdentities(_ context.Context) error {
	if a.client == nil {
		return fmt.Errorf("%w: list identities before connect", sshclient.ErrProtocolState)
	}

	keys, err := a.client.List()
	if err != nil {
		return fmt.Errorf("list agent keys: %w", err)
	}

	signers, err := a.client.Signers()
	if err != nil {
		return fmt.Errorf("load agent signers: %w", err)
	}

	a.keys = keys
	a.signers = make(map[string]ssh.Signer, len(signers))

	for _, s := range signers {
		a.signers[string(s.PublicKey().Marshal())] = s
	}

	a.listed = true

	return nil
}

// NextIdentity returns the identity after the given one, in agent order.
func (a *agentHandle) NextIdentity(after *sshclient.Identity) (*sshclient.Identity, error) {
	if !a.listed {
		return nil, fmt.Errorf("%w: get identity before listing", sshclient.ErrProtocolState)
	}

	next := 0
	if after != nil {
		next = after.Index() + 1
	}

	if next >= len(a.keys) {
		return nil, nil //nolint:nilnil // nil identity marks the end of the listing
	}

	k := a.keys[next]
	id := sshclient.NewIdentity(next, k.Format, k.Comment, k.Blob)

	return &id, nil
}

// TryAuthenticate authenticates user with the agent key behind id.
func (a *agentHandle) TryAuthenticate(ctx context.Context, user string, id sshclient.Identity) (bool, error) {
	if a.transport == nil {
		return false, fmt.Errorf("%w: agent handle is not bound to a transport", sshclient.ErrNotSupported)
	}

	signer, ok := a.signers[string(id.Blob())]
	if !ok {
		return false, fmt.Errorf("agent no longer holds identity %s", id)
	}

	if err := a.transport.authenticate(ctx, user, ssh.PublicKeys(signer)); err != nil {
		return false, err
	}

	return true, nil
}

// Close closes the agent socket.
func (a *agentHandle) Close() error {
	if a.conn == nil {
		return nil
	}

	return a.conn.Close()
}
