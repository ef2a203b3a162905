package sshclient

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// DefaultChunkSize is the size of the buffer used to read command output.
const DefaultChunkSize = 16 * 1024

// Config holds configuration derived from options.
type Config struct {
	Logger      zerolog.Logger
	Passphrases PassphraseProvider // Consulted for AgentOrInteractive keys
	Output      io.Writer          // Destination of output when no Sink is given
	ChunkSize   int
}

// DefaultConfig returns defaults: a silent logger, an interactive terminal
// prompt, output to os.Stdout.
func DefaultConfig() Config {
	return Config{
		Logger:      zerolog.Nop(),
		Passphrases: TerminalPrompt{},
		Output:      os.Stdout,
		ChunkSize:   DefaultChunkSize,
	}
}

// Option defines a functional option for sessions and authenticators.
type Option func(*Config)

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithPassphraseProvider sets how passphrases of AgentOrInteractive keys are obtained.
func WithPassphraseProvider(p PassphraseProvider) Option {
	return func(c *Config) {
		c.Passphrases = p
	}
}

// WithOutput sets where output goes when Execute is called without a Sink.
func WithOutput(w io.Writer) Option {
	return func(c *Config) {
		c.Output = w
	}
}

// WithChunkSize sets the read buffer size. Values below 1 are ignored.
func WithChunkSize(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.ChunkSize = n
		}
	}
}

func newConfig(opts []Option) Config {
	cfg := DefaultConfig()

	for _, o := range opts {
		o(&cfg)
	}

	if cfg.Output == nil {
		cfg.Output = io.Discard
	}

	return cfg
}
