package sshclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Outcome is the result of trying an ordered list of authentication methods.
// Method is the accepted method, or nil when every attempt failed.
type Outcome struct {
	User     string
	Method   AuthMethod
	Attempts []Attempt
}

// Succeeded reports whether one of the methods was accepted.
func (o Outcome) Succeeded() bool {
	return o.Method != nil
}

// Err returns nil on success, or an *AuthError listing every failed attempt.
func (o Outcome) Err() error {
	if o.Succeeded() {
		return nil
	}

	return &AuthError{User: o.User, Attempts: o.Attempts}
}

// Authenticator drives a Transport through authentication.
type Authenticator struct {
	transport   Transport
	passphrases PassphraseProvider
	logger      zerolog.Logger
}

// NewAuthenticator creates an Authenticator for the given transport.
func NewAuthenticator(t Transport, opts ...Option) *Authenticator {
	cfg := newConfig(opts)

	return &Authenticator{
		transport:   t,
		passphrases: cfg.Passphrases,
		logger:      cfg.Logger,
	}
}

// Try attempts each method in order and stops at the first accepted one.
// Failures are recorded on the Outcome and never stop the iteration; methods
// are neither reordered nor deduplicated.
func (a *Authenticator) Try(ctx context.Context, user string, methods []AuthMethod) Outcome {
	out := Outcome{User: user}

	for i, m := range methods {
		err := a.Authenticate(ctx, user, m)
		if err == nil {
			out.Method = m

			return out
		}

		a.logger.Debug().Err(err).Int("position", i).Stringer("method", m).Msg("authentication method failed")
		out.Attempts = append(out.Attempts, Attempt{Method: m, Err: err})
	}

	return out
}

// AuthenticateAny tries methods in order; see Try. Returns an *AuthError when
// the list is exhausted, including when it is empty.
func (a *Authenticator) AuthenticateAny(ctx context.Context, user string, methods []AuthMethod) error {
	return a.Try(ctx, user, methods).Err()
}

// Authenticate authenticates user with a single method.
// Returns nil on success or an *AuthError. Transport errors, including the
// password variant's, are wrapped in the AuthError and remain reachable with
// errors.Is and errors.As.
func (a *Authenticator) Authenticate(ctx context.Context, user string, method AuthMethod) error {
	var err error

	switch m := method.(type) {
	case KeyAuth:
		err = a.authenticateKey(ctx, user, m)
	case PasswordAuth:
		err = a.authenticatePassword(ctx, user, m)
	case AgentAuth:
		err = a.authenticateAgent(ctx, user)
	default:
		err = failed(user, method, fmt.Errorf("%w: authentication method %T", ErrNotSupported, method))
	}

	if err == nil {
		a.logger.Debug().Str("user", user).Stringer("method", method).Msg("authenticated")
	}

	return err
}

func (a *Authenticator) authenticatePassword(ctx context.Context, user string, m PasswordAuth) error {
	if err := a.transport.AuthenticateByPassword(ctx, user, m.Password); err != nil {
		return failed(user, m, err)
	}

	return nil
}

func (a *Authenticator) authenticateKey(ctx context.Context, user string, m KeyAuth) error {
	var attempts []Attempt

	if _, ok := m.Spec.decryption().(agentOrInteractive); ok {
		err := a.authenticateAgent(ctx, user)
		if err == nil {
			return nil
		}

		// The agent is an optimization here; its failure only moves us on to the key.
		a.logger.Debug().Err(err).Str("key", m.Spec.PrivateKeyPath).Msg("agent authentication failed, falling back to key")
		attempts = append(attempts, Attempt{Method: Agent(), Err: err})
	}

	resolver := newPassphraseResolver(m.Spec, a.passphrases)

	err := a.transport.AuthenticateByKey(ctx, user, m.Spec.Files(), resolver.bind(ctx))
	if err == nil {
		return nil
	}

	attempts = append(attempts, Attempt{Method: m, Err: err})

	return &AuthError{User: user, Attempts: attempts}
}

func (a *Authenticator) authenticateAgent(ctx context.Context, user string) error {
	method := Agent()

	handle, err := a.transport.AgentSession()
	if err != nil {
		return failed(user, method, err)
	}

	defer func() { _ = handle.Close() }()

	enum := NewEnumerator(handle)

	if err := enum.Connect(ctx); err != nil {
		return failed(user, method, err)
	}

	if err := enum.ListIdentities(ctx); err != nil {
		return failed(user, method, err)
	}

	var attempts []Attempt

	cursor := Start()

	for {
		id, ok, err := enum.Next(cursor)
		if err != nil {
			attempts = append(attempts, Attempt{Method: method, Err: err})

			break
		}

		if !ok {
			break
		}

		accepted, err := handle.TryAuthenticate(ctx, user, id)
		if accepted && err == nil {
			a.logger.Debug().Str("identity", id.String()).Msg("agent identity accepted")

			return nil
		}

		if err == nil {
			err = ErrCredentialRejected
		}

		a.logger.Debug().Err(err).Str("identity", id.String()).Msg("agent identity rejected")
		attempts = append(attempts, Attempt{Method: method, Identity: &id, Err: err})
		cursor = After(id)
	}

	if len(attempts) == 0 {
		attempts = append(attempts, Attempt{Method: method, Err: ErrNoIdentities})
	}

	return &AuthError{User: user, Attempts: attempts}
}

func failed(user string, method AuthMethod, err error) error {
	var authErr *AuthError
	if errors.As(err, &authErr) && authErr.User == user {
		return authErr
	}

	return &AuthError{User: user, Attempts: []Attempt{{Method: method, Err: err}}}
}
