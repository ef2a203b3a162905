package ssh

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kevinburke/ssh_config"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Config holds all parameters required to establish an SSH transport.
type Config struct {
	// Connection details
	Host string // Hostname or IP address
	Port int    // Port number (default 22)

	// Hints resolved from ~/.ssh/config. The transport itself authenticates
	// whichever user the caller asks for.
	User         string
	IdentityFile string

	// Agent settings
	AgentSocket  string // Path of the agent socket (default $SSH_AUTH_SOCK)
	DisableAgent bool   // If true, AgentSession always fails

	// Connection settings
	Timeout            time.Duration       // Connection timeout (default 10s)
	HostKeyCheck       ssh.HostKeyCallback // Callback to verify host key. You normally generate this from known_hosts.
	KnownHostsPath     string              // Used to build HostKeyCheck when it is nil
	InsecureSkipVerify bool                // If true, disables strict host key checking. Use ONLY for testing.

	// Stderr receives the remote command's standard error. Discarded when nil.
	Stderr io.Writer
}

// NewConfig creates a Config with safe defaults.
// Note: It does NOT set a default HostKeyCheck. You must provide one, a
// KnownHostsPath, or set InsecureSkipVerify=true.
func NewConfig(host string) Config {
	return Config{
		Host:    host,
		Port:    22,
		Timeout: 10 * time.Second,
	}
}

// NewFromSSHConfig loads configuration for alias from an SSH config file.
// An empty path reads ~/.ssh/config.
func NewFromSSHConfig(alias, path string) (Config, error) {
	if path == "" {
		path = filepath.Join(homeDir(), ".ssh", "config")
	}

	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open ssh config: %w", err)
	}

	defer func() { _ = f.Close() }()

	return NewFromSSHConfigReader(alias, f)
}

// NewFromSSHConfigReader parses SSH config data and resolves alias to its
// HostName, Port, User, IdentityFile, known hosts file and agent socket.
func NewFromSSHConfigReader(alias string, r io.Reader) (Config, error) {
	cfg, err := ssh_config.Decode(r)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse ssh config: %w", err)
	}

	get := func(key string) string {
		v, _ := cfg.Get(alias, key)

		return strings.TrimSpace(v)
	}

	hostName := get("HostName")
	if hostName == "" {
		hostName = alias // Fallback if no HostName defined
	}

	c := NewConfig(hostName)
	c.User = get("User")
	c.IdentityFile = expandHome(get("IdentityFile"))

	if portStr := get("Port"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid port %q for host %s: %w", portStr, alias, err)
		}

		c.Port = port
	}

	if strings.EqualFold(get("StrictHostKeyChecking"), "no") {
		c.InsecureSkipVerify = true
	}

	if files := strings.Fields(get("UserKnownHostsFile")); len(files) > 0 {
		c.KnownHostsPath = expandHome(files[0])
	}

	switch agent := get("IdentityAgent"); {
	case strings.EqualFold(agent, "none"):
		c.DisableAgent = true
	case agent != "" && agent != "SSH_AUTH_SOCK":
		c.AgentSocket = expandHome(strings.TrimPrefix(agent, "$"))
	}

	return c, nil
}

// WithDefaults sets default values for zero-valued fields.
func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = 22
	}

	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}

	if c.AgentSocket == "" && !c.DisableAgent {
		c.AgentSocket = os.Getenv("SSH_AUTH_SOCK")
	}

	// If insecure is requested and no callback provided, use insecure ignore.
	if c.InsecureSkipVerify && c.HostKeyCheck == nil {
		c.HostKeyCheck = ssh.InsecureIgnoreHostKey() //nolint:gosec // explicitly requested
	}

	return c
}

// resolveHostKeyCheck builds HostKeyCheck from KnownHostsPath when needed.
func (c Config) resolveHostKeyCheck() (Config, error) {
	if c.HostKeyCheck != nil || c.KnownHostsPath == "" {
		return c, nil
	}

	cb, err := knownhosts.New(c.KnownHostsPath)
	if err != nil {
		return c, fmt.Errorf("failed to load known hosts: %w", err)
	}

	c.HostKeyCheck = cb

	return c, nil
}

// Validate ensures all required fields are present.
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.New("configuration error: host address cannot be empty")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("configuration error: port %d out of range", c.Port)
	}

	if c.HostKeyCheck == nil {
		return errors.New("configuration error: HostKeyCheck is missing; you must provide a callback (e.g. valid 'known_hosts') or set InsecureSkipVerify=true (testing only)")
	}

	return nil
}

// Address returns the host:port address to dial.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// clientConfig builds the x/crypto client configuration for one connection
// attempt. hostKey wraps HostKeyCheck.
func (c Config) clientConfig(user string, hostKey ssh.HostKeyCallback, auth ...ssh.AuthMethod) *ssh.ClientConfig {
	return &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         c.Timeout,
	}
}

// DefaultKnownHostsPath returns ~/.ssh/known_hosts.
func DefaultKnownHostsPath() string {
	return filepath.Join(homeDir(), ".ssh", "known_hosts")
}

// DefaultKnownHosts returns a HostKeyCallback that verifies the host key against
// strict entries in the user's ~/.ssh/known_hosts file.
func DefaultKnownHosts() (ssh.HostKeyCallback, error) {
	return knownhosts.New(DefaultKnownHostsPath())
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}

	return os.Getenv("HOME")
}

func expandHome(path string) string {
	if path == "~" {
		return homeDir()
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}

	return path
}
