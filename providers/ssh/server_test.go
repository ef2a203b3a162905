package ssh

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

const (
	testUser     = "alice"
	testPassword = "correct horse"
)

// testServer is an in-process SSH server that runs exec requests with sh -c.
type testServer struct {
	listener net.Listener
	hostKey  ssh.Signer

	mu         sync.Mutex
	authorized map[string]bool
	conns      int
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	hostKey, err := ssh.NewSignerFromKey(hostPriv)
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &testServer{
		listener:   listener,
		hostKey:    hostKey,
		authorized: make(map[string]bool),
	}

	go s.serve()

	t.Cleanup(func() { _ = listener.Close() })

	return s
}

func (s *testServer) authorize(pub ssh.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.authorized[string(pub.Marshal())] = true
}

func (s *testServer) connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conns
}

func (s *testServer) port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *testServer) options() []Option {
	return []Option{
		WithHost("127.0.0.1"),
		WithPort(s.port()),
		WithHostKeyCheck(ssh.FixedHostKey(s.hostKey.PublicKey())),
		WithoutAgent(),
	}
}

func (s *testServer) config() *ssh.ServerConfig {
	cfg := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pw []byte) (*ssh.Permissions, error) {
			if c.User() == testUser && string(pw) == testPassword {
				return nil, nil
			}

			return nil, errors.New("password rejected")
		},
		PublicKeyCallback: func(c ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			s.mu.Lock()
			defer s.mu.Unlock()

			if c.User() == testUser && s.authorized[string(key.Marshal())] {
				return nil, nil
			}

			return nil, errors.New("key rejected")
		},
	}
	cfg.AddHostKey(s.hostKey)

	return cfg
}

func (s *testServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.conns++
		s.mu.Unlock()

		go s.handle(conn)
	}
}

func (s *testServer) handle(conn net.Conn) {
	_, chans, reqs, err := ssh.NewServerConn(conn, s.config())
	if err != nil {
		_ = conn.Close()

		return
	}

	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "only sessions are supported")

			continue
		}

		ch, requests, err := newCh.Accept()
		if err != nil {
			continue
		}

		go s.session(ch, requests)
	}
}

func (s *testServer) session(ch ssh.Channel, requests <-chan *ssh.Request) {
	for req := range requests {
		if req.Type != "exec" {
			_ = req.Reply(false, nil)

			continue
		}

		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)

			continue
		}

		_ = req.Reply(true, nil)

		go s.run(ch, payload.Command)
	}
}

func (s *testServer) run(ch ssh.Channel, command string) {
	cmd := exec.Command("sh", "-c", command)
	cmd.Stdin = ch
	cmd.Stdout = ch
	cmd.Stderr = ch.Stderr()

	status := 0

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			status = exitErr.ExitCode()
		} else {
			status = 127
		}
	}

	_ = ch.CloseWrite()
	_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{uint32(status)}))
	_ = ch.Close()
}

// testKey is a key pair written to disk.
type testKey struct {
	signer      ssh.Signer
	private     ed25519.PrivateKey
	privatePath string
	publicPath  string
}

func writeTestKey(t *testing.T, dir, name, passphrase string) testKey {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, name)
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, name, []byte(passphrase))
	}

	require.NoError(t, err)

	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)

	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	privatePath := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(privatePath, pem.EncodeToMemory(block), 0o600))
	require.NoError(t, os.WriteFile(privatePath+".pub", ssh.MarshalAuthorizedKey(sshPub), 0o644))

	return testKey{signer: signer, private: priv, privatePath: privatePath, publicPath: privatePath + ".pub"}
}

// startTestAgent serves an in-memory keyring on a unix socket holding keys in order.
func startTestAgent(t *testing.T, keys ...testKey) string {
	t.Helper()

	keyring := agent.NewKeyring()

	for _, k := range keys {
		require.NoError(t, keyring.Add(agent.AddedKey{PrivateKey: k.private, Comment: filepath.Base(k.privatePath)}))
	}

	dir, err := os.MkdirTemp("", "agent")
	require.NoError(t, err)

	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	socket := filepath.Join(dir, "agent.sock")

	listener, err := net.Listen("unix", socket)
	require.NoError(t, err)

	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}

			go func() {
				defer func() { _ = conn.Close() }()

				_ = agent.ServeAgent(keyring, conn)
			}()
		}
	}()

	return socket
}

func sameKey(a, b ssh.PublicKey) bool {
	return bytes.Equal(a.Marshal(), b.Marshal())
}
