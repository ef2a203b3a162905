package sshclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/google/shlex"
	"golang.org/x/term"
)

// PassphraseProvider supplies the passphrase for an encrypted private key.
type PassphraseProvider interface {
	Passphrase(ctx context.Context, keyPath string) (string, error)
}

// PassphraseProviderFunc adapts a function to a PassphraseProvider.
type PassphraseProviderFunc func(ctx context.Context, keyPath string) (string, error)

// Passphrase calls f.
func (f PassphraseProviderFunc) Passphrase(ctx context.Context, keyPath string) (string, error) {
	return f(ctx, keyPath)
}

// FixedPassphrase returns a provider that always yields value.
func FixedPassphrase(value string) PassphraseProvider {
	return PassphraseProviderFunc(func(context.Context, string) (string, error) {
		return value, nil
	})
}

// TerminalPrompt reads a passphrase from the controlling terminal without echoing it.
type TerminalPrompt struct {
	In  *os.File  // Defaults to os.Stdin
	Out io.Writer // Where the prompt is written. Defaults to os.Stderr
}

// Passphrase prompts for the passphrase of keyPath.
// Returns ErrNotTerminal when In is not a terminal.
func (p TerminalPrompt) Passphrase(_ context.Context, keyPath string) (string, error) {
	in := p.In
	if in == nil {
		in = os.Stdin
	}

	out := p.Out
	if out == nil {
		out = os.Stderr
	}

	fd := int(in.Fd()) //nolint:gosec // file descriptors fit in an int
	if !term.IsTerminal(fd) {
		return "", ErrNotTerminal
	}

	_, _ = fmt.Fprintf(out, "Enter passphrase for key '%s': ", keyPath)
	passphrase, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(out)

	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}

	return string(passphrase), nil
}

// AskPass runs an external helper program to obtain the passphrase, the way
// OpenSSH uses SSH_ASKPASS. The prompt is passed as the last argument and the
// helper's standard output, minus the trailing newline, is the passphrase.
type AskPass struct {
	Command string // Command line, split with shell quoting rules
}

// AskPassFromEnv returns an AskPass configured from SSH_ASKPASS, if set.
func AskPassFromEnv() (AskPass, bool) {
	cmd := strings.TrimSpace(os.Getenv("SSH_ASKPASS"))
	if cmd == "" {
		return AskPass{}, false
	}

	return AskPass{Command: cmd}, true
}

// Passphrase runs the helper for keyPath.
func (a AskPass) Passphrase(ctx context.Context, keyPath string) (string, error) {
	parts, err := shlex.Split(a.Command)
	if err != nil {
		return "", fmt.Errorf("failed to parse askpass command: %w", err)
	}

	if len(parts) == 0 {
		return "", errors.New("askpass command is empty")
	}

	args := append(parts[1:], fmt.Sprintf("Enter passphrase for key '%s': ", keyPath))

	out, err := exec.CommandContext(ctx, parts[0], args...).Output() //nolint:gosec // helper is configured by the user
	if err != nil {
		return "", fmt.Errorf("askpass helper failed: %w", err)
	}

	return strings.TrimRight(string(out), "\r\n"), nil
}

// passphraseResolver resolves a Decryption into a passphrase at most once.
type passphraseResolver struct {
	decryption Decryption
	provider   PassphraseProvider
	keyPath    string

	resolved bool
	value    string
	err      error
}

func newPassphraseResolver(spec KeySpec, provider PassphraseProvider) *passphraseResolver {
	return &passphraseResolver{
		decryption: spec.decryption(),
		provider:   provider,
		keyPath:    spec.PrivateKeyPath,
	}
}

func (r *passphraseResolver) resolve(ctx context.Context) (string, error) {
	if r.resolved {
		return r.value, r.err
	}

	r.resolved = true

	switch d := r.decryption.(type) {
	case fixedDecryption:
		r.value = d.value
	case agentOrInteractive:
		if r.provider == nil {
			r.err = ErrPassphraseRequired

			break
		}

		r.value, r.err = r.provider.Passphrase(ctx, r.keyPath)
	default:
		r.value = ""
	}

	return r.value, r.err
}

func (r *passphraseResolver) bind(ctx context.Context) PassphraseFunc {
	return func() (string, error) {
		return r.resolve(ctx)
	}
}
