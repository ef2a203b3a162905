package local

import "io"

// Config holds configuration for the local transport.
type Config struct {
	User     string    // The only user allowed to authenticate (default: current OS user)
	Password string    // When set, password authentication must present exactly this value
	Shell    []string  // Command prefix the command line is appended to (default: sh -c, or cmd /C on Windows)
	Stderr   io.Writer // Receives standard error. Discarded when nil
}

// Option defines a functional option for the local provider.
type Option func(*Config)

// WithUser sets the user allowed to authenticate.
func WithUser(user string) Option {
	return func(c *Config) {
		c.User = user
	}
}

// WithPassword requires password authentication to present password.
func WithPassword(password string) Option {
	return func(c *Config) {
		c.Password = password
	}
}

// WithShell overrides the shell used to interpret command lines.
func WithShell(shell ...string) Option {
	return func(c *Config) {
		c.Shell = shell
	}
}

// WithStderr routes standard error to w.
func WithStderr(w io.Writer) Option {
	return func(c *Config) {
		c.Stderr = w
	}
}
