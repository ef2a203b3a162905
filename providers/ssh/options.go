package ssh

import (
	"io"
	"time"

	"golang.org/x/crypto/ssh"
)

// Option defines a functional option for the SSH provider.
type Option func(*Config)

// WithConfig returns an Option that sets multiple fields from a Config struct.
func WithConfig(c Config) Option {
	return func(cfg *Config) {
		*cfg = c
	}
}

// WithHost sets the target hostname.
func WithHost(host string) Option {
	return func(c *Config) {
		c.Host = host
	}
}

// WithPort sets the SSH port.
func WithPort(port int) Option {
	return func(c *Config) {
		c.Port = port
	}
}

// WithTimeout sets the connection timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithHostKeyCheck sets the host key callback.
func WithHostKeyCheck(cb ssh.HostKeyCallback) Option {
	return func(c *Config) {
		c.HostKeyCheck = cb
	}
}

// WithKnownHosts verifies host keys against the given known_hosts file.
func WithKnownHosts(path string) Option {
	return func(c *Config) {
		c.KnownHostsPath = path
	}
}

// WithAgentSocket sets the path of the agent socket and enables the agent.
func WithAgentSocket(path string) Option {
	return func(c *Config) {
		c.AgentSocket = path
		c.DisableAgent = false
	}
}

// WithoutAgent disables agent authentication.
func WithoutAgent() Option {
	return func(c *Config) {
		c.DisableAgent = true
	}
}

// WithStderr routes the remote standard error stream to w.
func WithStderr(w io.Writer) Option {
	return func(c *Config) {
		c.Stderr = w
	}
}

// WithInsecureSkipVerify enables/disables strict host key checking.
func WithInsecureSkipVerify(skip bool) Option {
	return func(c *Config) {
		c.InsecureSkipVerify = skip
	}
}
