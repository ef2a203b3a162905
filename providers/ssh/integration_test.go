//go:build integration

package ssh

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/ruffel/sshclient"
	"github.com/ruffel/sshclient/sshclienttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

const (
	sshTestImage       = "lscr.io/linuxserver/openssh-server:latest"
	sshTestContainer   = "sshclient-test-container"
	sshTestPortDefault = 2224
)

// integrationTarget describes a real OpenSSH server.
type integrationTarget struct {
	config Config
	user   string
	method sshclient.AuthMethod
}

func TestIntegration(t *testing.T) {
	target, cleanup := setupSSHEnvironment(t)
	defer cleanup()

	t.Logf("Connecting to %s@%s:%d...", target.user, target.config.Host, target.config.Port)

	ctx := context.Background()

	tr, err := New(WithConfig(target.config))
	require.NoError(t, err)

	s, err := sshclient.Open(ctx, tr)
	require.NoError(t, err)
	defer s.Close()

	// Agent first so a developer's loaded keys are exercised, then the test key.
	methods := sshclient.Methods().Agent().Method(target.method).Build()
	require.NoError(t, s.AuthenticateAny(ctx, target.user, methods))

	t.Run("Run simple command", func(t *testing.T) {
		status, out, err := s.Capture(ctx, "echo 'hello ssh'")
		require.NoError(t, err)
		assert.Equal(t, 0, status)
		assert.Equal(t, "hello ssh\n", out)
	})

	t.Run("Run error command", func(t *testing.T) {
		status, _, err := s.Capture(ctx, "exit 1")
		require.NoError(t, err)
		assert.Equal(t, 1, status)
	})

	t.Run("Large output", func(t *testing.T) {
		status, out, err := s.Capture(ctx, "head -c 200000 /dev/zero | tr '\\0' 'x'")
		require.NoError(t, err)
		assert.Equal(t, 0, status)
		assert.Len(t, out, 200000)
	})

	t.Run("Working Directory", func(t *testing.T) {
		dir := "/tmp"
		if os.Getenv("SSH_TEST_HOST") == "" {
			dir = "/config" // docker image specific
		}

		_, out, err := s.Capture(ctx, "cd "+dir+" && pwd")
		require.NoError(t, err)
		assert.Contains(t, out, dir)
	})

	t.Run("Contract", func(t *testing.T) {
		sshclienttest.Verify(t, func(t *testing.T) sshclienttest.Target {
			tr, err := New(WithConfig(target.config))
			require.NoError(t, err)

			return sshclienttest.Target{Transport: tr, User: target.user, Method: target.method}
		})
	})
}

// setupSSHEnvironment determines if we should use an existing SSH host or spin up a Docker container.
func setupSSHEnvironment(t *testing.T) (integrationTarget, func()) {
	// Check for manual override (e.g. CI or manual testing)
	host := os.Getenv("SSH_TEST_HOST")
	if host != "" {
		port, _ := strconv.Atoi(os.Getenv("SSH_TEST_PORT"))
		if port == 0 {
			port = 22
		}

		var method sshclient.AuthMethod = sshclient.Password(os.Getenv("SSH_TEST_PASS"))
		if path := os.Getenv("SSH_TEST_KEY_PATH"); path != "" {
			method = sshclient.Key(sshclient.NewKeySpec(path))
		}

		return integrationTarget{
			config: Config{
				Host:               host,
				Port:               port,
				Timeout:            5 * time.Second,
				InsecureSkipVerify: true,
			},
			user:   os.Getenv("SSH_TEST_USER"),
			method: method,
		}, func() {}
	}

	// Fallback to Docker
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("SSH_TEST_HOST not set and docker not found in PATH")
	}

	privKey, pubKey, err := generateSSHKey()
	require.NoError(t, err)

	tmpDir := t.TempDir()
	keyPath := filepath.Join(tmpDir, "id_rsa_test")
	require.NoError(t, os.WriteFile(keyPath, privKey, 0o600))

	sshTestUser := "testuser"

	// Cleanup existing container if any
	_ = exec.Command("docker", "rm", "-f", sshTestContainer).Run()

	cmd := exec.Command("docker", "run", "-d",
		"--name", sshTestContainer,
		"-p", fmt.Sprintf("%d:2222", sshTestPortDefault),
		"-e", "PUID=1000",
		"-e", "PGID=1000",
		"-e", "USER_NAME="+sshTestUser,
		"-e", "PUBLIC_KEY="+string(pubKey),
		"-e", "PASSWORD_ACCESS=false",
		sshTestImage,
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "Failed to start docker container: %s", out)

	cleanup := func() {
		if os.Getenv("KEEP_SSH_CONTAINER") == "" {
			_ = exec.Command("docker", "rm", "-f", sshTestContainer).Run()
		}
	}

	// Use localhost and mapped port for Mac compatibility
	host = "127.0.0.1"
	port := sshTestPortDefault

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	if !waitForPort(addr, 30*time.Second) {
		logs, _ := exec.Command("docker", "logs", sshTestContainer).CombinedOutput()
		cleanup()
		t.Fatalf("SSH server never became ready at %s. Logs:\n%s", addr, logs)
	}
	// Give sshd a grace period
	time.Sleep(3 * time.Second)

	return integrationTarget{
		config: Config{
			Host:               host,
			Port:               port,
			Timeout:            5 * time.Second,
			InsecureSkipVerify: true,
			DisableAgent:       true,
		},
		user:   sshTestUser,
		method: sshclient.Key(sshclient.NewKeySpec(keyPath)),
	}, cleanup
}

func generateSSHKey() ([]byte, []byte, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, err
	}

	privBlock := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	}

	pub, err := ssh.NewPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, nil, err
	}

	return pem.EncodeToMemory(privBlock), ssh.MarshalAuthorizedKey(pub), nil
}

func waitForPort(addr string, timeout time.Duration) bool {
	end := time.Now().Add(timeout)
	for time.Now().Before(end) {
		conn, err := net.DialTimeout("tcp", addr, 1*time.Second)
		if err == nil {
			_ = conn.Close()

			return true
		}

		time.Sleep(500 * time.Millisecond)
	}

	return false
}
