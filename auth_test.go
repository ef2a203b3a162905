package sshclient_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ruffel/sshclient"
	"github.com/ruffel/sshclient/providers/mock"
	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// countingProvider records how often a passphrase is requested.
type countingProvider struct {
	value string
	calls int
}

func (p *countingProvider) Passphrase(context.Context, string) (string, error) {
	p.calls++

	return p.value, nil
}

func identities(n int) []sshclient.Identity {
	ids := make([]sshclient.Identity, n)
	for i := range ids {
		ids[i] = sshclient.NewIdentity(i, "ssh-ed25519", "key", []byte{byte(i)})
	}

	return ids
}

func TestTry_StopsAtFirstSuccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tr := mock.NewTransport()
	tr.On("AuthenticateByPassword", ctx, "alice", "wrong").Return(sshclient.ErrCredentialRejected).Once()
	tr.On("AuthenticateByPassword", ctx, "alice", "right").Return(nil).Once()

	methods := sshclient.Methods().Password("wrong").Password("right").Password("never").Build()

	out := sshclient.NewAuthenticator(tr).Try(ctx, "alice", methods)
	require.True(t, out.Succeeded())
	require.NoError(t, out.Err())
	assert.Equal(t, methods[1], out.Method)
	require.Len(t, out.Attempts, 1)
	require.ErrorIs(t, out.Attempts[0].Err, sshclient.ErrCredentialRejected)

	tr.AssertExpectations(t)
	tr.AssertNumberOfCalls(t, "AuthenticateByPassword", 2)
}

func TestTry_EveryFailureAdvances(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	transportDown := errors.New("connection reset by peer")

	tr := mock.NewTransport()
	tr.On("AgentSession").Return(nil, sshclient.ErrNotSupported).Once()
	tr.On("AuthenticateByKey", ctx, "alice", tmock.Anything, tmock.Anything).Return(transportDown).Once()
	tr.On("AuthenticateByPassword", ctx, "alice", "pw").Return(sshclient.ErrCredentialRejected).Once()

	methods := sshclient.Methods().Agent().Key("id_rsa").Password("pw").Build()

	err := sshclient.NewAuthenticator(tr).AuthenticateAny(ctx, "alice", methods)

	var authErr *sshclient.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "alice", authErr.User)
	require.Len(t, authErr.Attempts, 3)

	for i, a := range authErr.Attempts {
		assert.Equal(t, methods[i], a.Method)
	}

	require.ErrorIs(t, err, sshclient.ErrNotSupported)
	require.ErrorIs(t, err, transportDown)
	require.ErrorIs(t, err, sshclient.ErrCredentialRejected)

	tr.AssertExpectations(t)
}

func TestTry_EmptyList(t *testing.T) {
	t.Parallel()

	tr := mock.NewTransport()

	err := sshclient.NewAuthenticator(tr).AuthenticateAny(context.Background(), "alice", nil)

	var authErr *sshclient.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Empty(t, authErr.Attempts)

	tr.AssertNotCalled(t, "AuthenticateByPassword", tmock.Anything, tmock.Anything, tmock.Anything)
}

func TestTry_DuplicatesAreRetried(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tr := mock.NewTransport()
	tr.On("AuthenticateByPassword", ctx, "alice", "pw").Return(sshclient.ErrCredentialRejected).Twice()

	out := sshclient.NewAuthenticator(tr).Try(ctx, "alice", sshclient.Methods().Password("pw").Password("pw").Build())
	assert.False(t, out.Succeeded())
	assert.Len(t, out.Attempts, 2)

	tr.AssertExpectations(t)
}

func TestAuthenticate_ReturnsTransportAuthError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inner := &sshclient.AuthError{User: "alice", Attempts: []sshclient.Attempt{{Method: sshclient.Password("pw"), Err: sshclient.ErrCredentialRejected}}}

	tr := mock.NewTransport()
	tr.On("AuthenticateByPassword", ctx, "alice", "pw").Return(inner).Once()

	err := sshclient.NewAuthenticator(tr).Authenticate(ctx, "alice", sshclient.Password("pw"))
	assert.Same(t, inner, err)
}

func TestAuthenticateKey_PassphraseIsLazy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("fixed passphrase reaches the transport", func(t *testing.T) {
		t.Parallel()

		tr := mock.NewTransport()
		tr.On("AuthenticateByKey", ctx, "alice", sshclient.KeyFiles{PrivateKeyPath: "id_rsa", PublicKeyPath: "id_rsa.pub"}, tmock.Anything).
			Run(func(args tmock.Arguments) {
				passphrase := args.Get(3).(sshclient.PassphraseFunc)

				value, err := passphrase()
				assert.NoError(t, err)
				assert.Equal(t, "s3cret", value)
			}).
			Return(nil).Once()

		spec := sshclient.NewKeySpec("id_rsa", sshclient.WithDecryption(sshclient.Passphrase("s3cret")))
		require.NoError(t, sshclient.NewAuthenticator(tr).Authenticate(ctx, "alice", sshclient.Key(spec)))
		tr.AssertExpectations(t)
	})

	t.Run("unencrypted key never consults the provider", func(t *testing.T) {
		t.Parallel()

		provider := &countingProvider{value: "unused"}

		tr := mock.NewTransport()
		tr.On("AuthenticateByKey", ctx, "alice", tmock.Anything, tmock.Anything).Return(nil).Once()

		spec := sshclient.NewKeySpec("id_rsa", sshclient.WithDecryption(sshclient.AgentOrInteractive()))
		tr.On("AgentSession").Return(nil, sshclient.ErrNotSupported).Once()

		auth := sshclient.NewAuthenticator(tr, sshclient.WithPassphraseProvider(provider))
		require.NoError(t, auth.Authenticate(ctx, "alice", sshclient.Key(spec)))
		assert.Zero(t, provider.calls)
	})

	t.Run("encrypted key asks once", func(t *testing.T) {
		t.Parallel()

		provider := &countingProvider{value: "typed"}

		tr := mock.NewTransport()
		tr.On("AgentSession").Return(nil, sshclient.ErrNotSupported).Once()
		tr.On("AuthenticateByKey", ctx, "alice", tmock.Anything, tmock.Anything).
			Run(func(args tmock.Arguments) {
				passphrase := args.Get(3).(sshclient.PassphraseFunc)

				for range 3 {
					value, err := passphrase()
					assert.NoError(t, err)
					assert.Equal(t, "typed", value)
				}
			}).
			Return(nil).Once()

		spec := sshclient.NewKeySpec("id_rsa", sshclient.WithDecryption(sshclient.AgentOrInteractive()))
		auth := sshclient.NewAuthenticator(tr, sshclient.WithPassphraseProvider(provider))
		require.NoError(t, auth.Authenticate(ctx, "alice", sshclient.Key(spec)))
		assert.Equal(t, 1, provider.calls)
	})

	t.Run("no provider", func(t *testing.T) {
		t.Parallel()

		tr := mock.NewTransport()
		tr.On("AgentSession").Return(nil, sshclient.ErrNotSupported).Once()
		tr.On("AuthenticateByKey", ctx, "alice", tmock.Anything, tmock.Anything).
			Run(func(args tmock.Arguments) {
				_, err := args.Get(3).(sshclient.PassphraseFunc)()
				assert.ErrorIs(t, err, sshclient.ErrPassphraseRequired)
			}).
			Return(sshclient.ErrPassphraseRequired).Once()

		spec := sshclient.NewKeySpec("id_rsa", sshclient.WithDecryption(sshclient.AgentOrInteractive()))
		auth := sshclient.NewAuthenticator(tr, sshclient.WithPassphraseProvider(nil))

		err := auth.Authenticate(ctx, "alice", sshclient.Key(spec))

		var authErr *sshclient.AuthError
		require.ErrorAs(t, err, &authErr)
		require.Len(t, authErr.Attempts, 2)
		assert.Equal(t, sshclient.Agent(), authErr.Attempts[0].Method)
		require.ErrorIs(t, err, sshclient.ErrPassphraseRequired)
	})
}

func TestAuthenticateKey_AgentFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ids := identities(2)
	provider := &countingProvider{value: "never"}

	agent := mock.NewAgent()
	agent.ExpectIdentities(ids...)
	agent.On("TryAuthenticate", ctx, "alice", ids[0]).Return(true, nil).Once()
	agent.On("Close").Return(nil).Once()

	tr := mock.NewTransport()
	tr.On("AgentSession").Return(agent, nil).Once()

	spec := sshclient.NewKeySpec("id_rsa", sshclient.WithDecryption(sshclient.AgentOrInteractive()))
	auth := sshclient.NewAuthenticator(tr, sshclient.WithPassphraseProvider(provider))

	require.NoError(t, auth.Authenticate(ctx, "alice", sshclient.Key(spec)))
	assert.Zero(t, provider.calls)

	tr.AssertNotCalled(t, "AuthenticateByKey", tmock.Anything, tmock.Anything, tmock.Anything, tmock.Anything)
	agent.AssertExpectations(t)
}

func TestAuthenticateAgent_FullPass(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ids := identities(3)

	agent := mock.NewAgent()
	agent.ExpectIdentities(ids...)
	agent.On("TryAuthenticate", ctx, "alice", tmock.Anything).Return(false, nil).Times(3)
	agent.On("Close").Return(nil).Once()

	tr := mock.NewTransport()
	tr.On("AgentSession").Return(agent, nil).Once()

	err := sshclient.NewAuthenticator(tr).Authenticate(ctx, "alice", sshclient.Agent())

	var authErr *sshclient.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Len(t, authErr.Attempts, 3)

	for i, a := range authErr.Attempts {
		require.NotNil(t, a.Identity)
		assert.Equal(t, ids[i], *a.Identity)
		require.ErrorIs(t, a.Err, sshclient.ErrCredentialRejected)
	}

	// N identities plus the terminal empty answer.
	agent.AssertNumberOfCalls(t, "NextIdentity", 4)
	agent.AssertExpectations(t)
}

func TestAuthenticateAgent_StopsAtAcceptedIdentity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ids := identities(4)

	agent := mock.NewAgent()
	agent.ExpectIdentities(ids...)
	agent.On("TryAuthenticate", ctx, "alice", ids[0]).Return(false, nil).Once()
	agent.On("TryAuthenticate", ctx, "alice", ids[1]).Return(true, nil).Once()
	agent.On("Close").Return(nil).Once()

	tr := mock.NewTransport()
	tr.On("AgentSession").Return(agent, nil).Once()

	require.NoError(t, sshclient.NewAuthenticator(tr).Authenticate(ctx, "alice", sshclient.Agent()))

	agent.AssertNumberOfCalls(t, "NextIdentity", 2)
	agent.AssertNumberOfCalls(t, "TryAuthenticate", 2)
	agent.AssertExpectations(t)
}

func TestAuthenticateAgent_NoIdentities(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	agent := mock.NewAgent()
	agent.ExpectIdentities()
	agent.On("Close").Return(nil).Once()

	tr := mock.NewTransport()
	tr.On("AgentSession").Return(agent, nil).Once()

	err := sshclient.NewAuthenticator(tr).Authenticate(ctx, "alice", sshclient.Agent())
	require.ErrorIs(t, err, sshclient.ErrNoIdentities)

	agent.AssertNumberOfCalls(t, "NextIdentity", 1)
}

func TestAuthenticateAgent_ConnectFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	refused := errors.New("connection refused")

	agent := mock.NewAgent()
	agent.On("Connect", ctx).Return(refused).Once()
	agent.On("Close").Return(nil).Once()

	tr := mock.NewTransport()
	tr.On("AgentSession").Return(agent, nil).Once()

	err := sshclient.NewAuthenticator(tr).Authenticate(ctx, "alice", sshclient.Agent())

	var authErr *sshclient.AuthError
	require.ErrorAs(t, err, &authErr)
	require.ErrorIs(t, err, refused)

	agent.AssertNotCalled(t, "ListIdentities", tmock.Anything)
	agent.AssertExpectations(t)
}
