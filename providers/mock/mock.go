package mock

import (
	"context"
	"io"

	"github.com/ruffel/sshclient"
	"github.com/stretchr/testify/mock"
)

// Anything is re-exported so callers need not import testify/mock directly.
const Anything = mock.Anything

// Transport implements a mock sshclient.Transport using testify/mock.
type Transport struct {
	mock.Mock
}

var _ sshclient.Transport = (*Transport)(nil)

// NewTransport creates a new mock transport.
func NewTransport() *Transport {
	return &Transport{}
}

// Handshake mocks the key exchange.
func (m *Transport) Handshake(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// AuthenticateByKey mocks key authentication. The passphrase function is
// passed through to the expectation so tests can invoke it from Run.
func (m *Transport) AuthenticateByKey(ctx context.Context, user string, files sshclient.KeyFiles, passphrase sshclient.PassphraseFunc) error {
	args := m.Called(ctx, user, files, passphrase)

	return args.Error(0)
}

// AuthenticateByPassword mocks password authentication.
func (m *Transport) AuthenticateByPassword(ctx context.Context, user, password string) error {
	args := m.Called(ctx, user, password)

	return args.Error(0)
}

// OpenChannel mocks opening a session channel.
func (m *Transport) OpenChannel(ctx context.Context) (sshclient.Channel, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(sshclient.Channel), args.Error(1)
}

// AgentSession mocks opening an agent handle.
func (m *Transport) AgentSession() (sshclient.AgentHandle, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(sshclient.AgentHandle), args.Error(1)
}

// Close mocks closing the transport.
func (m *Transport) Close() error {
	args := m.Called()

	return args.Error(0)
}

// Channel implements a mock sshclient.Channel using testify/mock.
type Channel struct {
	mock.Mock
}

var _ sshclient.Channel = (*Channel)(nil)

// NewChannel creates a new mock channel.
func NewChannel() *Channel {
	return &Channel{}
}

// Exec mocks starting a command.
func (m *Channel) Exec(ctx context.Context, command string) error {
	args := m.Called(ctx, command)

	return args.Error(0)
}

// ReadChunk mocks reading output. Use Chunk to copy data into p.
func (m *Channel) ReadChunk(p []byte) (int, error) {
	args := m.Called(p)

	return args.Int(0), args.Error(1)
}

// Close mocks sending end-of-input.
func (m *Channel) Close() error {
	args := m.Called()

	return args.Error(0)
}

// WaitClosed mocks waiting for the remote side to close.
func (m *Channel) WaitClosed() error {
	args := m.Called()

	return args.Error(0)
}

// ExitStatus mocks returning the remote exit status.
func (m *Channel) ExitStatus() (int, error) {
	args := m.Called()

	return args.Int(0), args.Error(1)
}

// ExpectChunks scripts ReadChunk to return each chunk in order and then io.EOF.
func (m *Channel) ExpectChunks(chunks ...string) {
	for _, c := range chunks {
		m.On("ReadChunk", mock.Anything).Run(Chunk(c)).Return(len(c), nil).Once()
	}

	m.On("ReadChunk", mock.Anything).Return(0, io.EOF).Once()
}

// ExpectCommand scripts a complete, successful run of command producing output
// and exiting with status.
func (m *Channel) ExpectCommand(command string, status int, output ...string) {
	m.On("Exec", mock.Anything, command).Return(nil).Once()
	m.ExpectChunks(output...)
	m.On("Close").Return(nil).Once()
	m.On("WaitClosed").Return(nil).Once()
	m.On("ExitStatus").Return(status, nil).Once()
}

// Chunk is a helper to copy data into the buffer passed to ReadChunk.
// Usage: ch.On("ReadChunk", mock.Anything).Run(Chunk("out")).Return(3, nil).
func Chunk(data string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		copy(args.Get(0).([]byte), data)
	}
}

// Agent implements a mock sshclient.AgentHandle using testify/mock.
type Agent struct {
	mock.Mock
}

var _ sshclient.AgentHandle = (*Agent)(nil)

// NewAgent creates a new mock agent handle.
func NewAgent() *Agent {
	return &Agent{}
}

// Connect mocks connecting to the agent.
func (m *Agent) Connect(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// ListIdentities mocks the identity listing request.
func (m *Agent) ListIdentities(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// NextIdentity mocks returning the identity after the given one.
func (m *Agent) NextIdentity(after *sshclient.Identity) (*sshclient.Identity, error) {
	args := m.Called(after)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*sshclient.Identity), args.Error(1)
}

// TryAuthenticate mocks authenticating with one identity.
func (m *Agent) TryAuthenticate(ctx context.Context, user string, id sshclient.Identity) (bool, error) {
	args := m.Called(ctx, user, id)

	return args.Bool(0), args.Error(1)
}

// Close mocks closing the agent handle.
func (m *Agent) Close() error {
	args := m.Called()

	return args.Error(0)
}

// ExpectIdentities scripts Connect, ListIdentities and a full NextIdentity
// walk over ids. NextIdentity expectations are optional, so a walk that stops
// early still satisfies AssertExpectations.
func (m *Agent) ExpectIdentities(ids ...sshclient.Identity) {
	m.On("Connect", mock.Anything).Return(nil)
	m.On("ListIdentities", mock.Anything).Return(nil)

	var prev *sshclient.Identity

	for i := range ids {
		id := ids[i]
		m.On("NextIdentity", prev).Return(&id, nil).Maybe()
		prev = &id
	}

	m.On("NextIdentity", prev).Return(nil, nil).Maybe()
}
