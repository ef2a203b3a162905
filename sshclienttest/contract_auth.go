package sshclienttest

import (
	"github.com/ruffel/sshclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unknownUser = "sshclient-contract-nobody"

func authContracts() []TestCase {
	return []TestCase{
		{
			Category:        CategoryAuth,
			Name:            "empty-method-list",
			Description:     "An empty method list fails with an AuthError and no attempts",
			Unauthenticated: true,
			Run: func(t T, s *sshclient.Session, target Target) {
				err := s.AuthenticateAny(t.Context(), target.User, nil)

				var authErr *sshclient.AuthError
				require.ErrorAs(t, err, &authErr)
				assert.Empty(t, authErr.Attempts)
			},
		},
		{
			Category:        CategoryAuth,
			Name:            "unknown-user-rejected",
			Unauthenticated: true,
			Run: func(t T, s *sshclient.Session, target Target) {
				err := s.Authenticate(t.Context(), unknownUser, target.Method)

				var authErr *sshclient.AuthError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, unknownUser, authErr.User)
			},
		},
		{
			Category:        CategoryAuth,
			Name:            "fallback-to-accepted-method",
			Description:     "A rejected method does not stop the list",
			Unauthenticated: true,
			Run: func(t T, s *sshclient.Session, target Target) {
				methods := sshclient.Methods().
					Key("/nonexistent/sshclient-contract-key").
					Method(target.Method).
					Build()

				out := s.TryAuthenticate(t.Context(), target.User, methods)
				require.True(t, out.Succeeded())
				assert.Equal(t, target.Method, out.Method)
				require.Len(t, out.Attempts, 1)
				assert.Equal(t, methods[0], out.Attempts[0].Method)
			},
		},
		{
			Category:        CategoryAuth,
			Name:            "channel-requires-authentication",
			Unauthenticated: true,
			Run: func(t T, s *sshclient.Session, _ Target) {
				status, _, err := s.Capture(t.Context(), "echo hello")
				require.ErrorIs(t, err, sshclient.ErrNotAuthenticated)
				assert.Equal(t, sshclient.NoExitStatus, status)
			},
		},
	}
}
