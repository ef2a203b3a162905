package local

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"runtime"
	"sync"

	"github.com/ruffel/sshclient"
)

var _ sshclient.Transport = (*Transport)(nil)

// Transport implements sshclient.Transport for the local operating system.
// Thread-safe wrapper around os/exec.
type Transport struct {
	config Config

	// ctx is cancelled by Close and interrupts running commands.
	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.RWMutex
	handshaken    bool
	authenticated bool
	active        int
	closed        bool
}

// New creates a new local transport.
func New(opts ...Option) (*Transport, error) {
	var cfg Config

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.User == "" {
		cfg.User = CurrentUser()
	}

	if len(cfg.Shell) == 0 {
		cfg.Shell = defaultShell()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Transport{config: cfg, ctx: ctx, cancel: cancel}, nil
}

// CurrentUser returns the name of the user running this process.
func CurrentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}

	return os.Getenv("USER")
}

func defaultShell() []string {
	if runtime.GOOS == "windows" {
		return []string{"cmd", "/C"}
	}

	return []string{"sh", "-c"}
}

// Handshake always succeeds on an open transport.
func (t *Transport) Handshake(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("cannot handshake: %w", sshclient.ErrSessionClosed)
	}

	t.handshaken = true

	return nil
}

// AuthenticateByKey accepts the configured user when the private key is readable.
// The passphrase is never requested.
func (t *Transport) AuthenticateByKey(_ context.Context, user string, files sshclient.KeyFiles, _ sshclient.PassphraseFunc) error {
	if _, err := os.Stat(files.PrivateKeyPath); err != nil {
		return fmt.Errorf("read private key: %w", err)
	}

	return t.accept(user)
}

// AuthenticateByPassword accepts the configured user, and the configured
// password if one was set.
func (t *Transport) AuthenticateByPassword(_ context.Context, user, password string) error {
	if t.config.Password != "" && password != t.config.Password {
		return fmt.Errorf("%w: password for %s", sshclient.ErrCredentialRejected, user)
	}

	return t.accept(user)
}

// AgentSession is not supported locally.
func (t *Transport) AgentSession() (sshclient.AgentHandle, error) {
	return nil, fmt.Errorf("local agent: %w", sshclient.ErrNotSupported)
}

// OpenChannel returns a channel that will run one command through the shell.
func (t *Transport) OpenChannel(_ context.Context) (sshclient.Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, fmt.Errorf("cannot open channel: %w", sshclient.ErrSessionClosed)
	}

	if !t.authenticated {
		return nil, sshclient.ErrNotAuthenticated
	}

	t.active++

	return &channel{transport: t}, nil
}

// ActiveChannels returns the number of channels not yet closed.
func (t *Transport) ActiveChannels() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.active
}

// Close shuts down the transport.
// New channels fail. Running commands are killed and their reads fail.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.cancel()

	return nil
}

func (t *Transport) accept(user string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return sshclient.ErrSessionClosed
	}

	if !t.handshaken {
		return fmt.Errorf("%w: authenticate before handshake", sshclient.ErrProtocolState)
	}

	if user != t.config.User {
		return fmt.Errorf("%w: only %s may log in locally", sshclient.ErrCredentialRejected, t.config.User)
	}

	t.authenticated = true

	return nil
}

func (t *Transport) release() {
	t.mu.Lock()
	t.active--
	t.mu.Unlock()
}
