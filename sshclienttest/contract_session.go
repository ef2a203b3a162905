package sshclienttest

import (
	"github.com/ruffel/sshclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionContracts() []TestCase {
	return []TestCase{
		{
			Category:    CategorySession,
			Name:        "sequential-commands",
			Description: "One session runs several commands, one after another",
			Run: func(t T, s *sshclient.Session, _ Target) {
				for _, want := range []string{"one", "two", "three"} {
					_, out, err := s.Capture(t.Context(), "echo "+want)
					require.NoError(t, err)
					assert.Equal(t, want+"\n", out)
				}
			},
		},
		{
			Category: CategorySession,
			Name:     "close-idempotent",
			Run: func(t T, s *sshclient.Session, _ Target) {
				require.NoError(t, s.Close())
				require.NoError(t, s.Close())
			},
		},
		{
			Category:    CategorySession,
			Name:        "execute-after-close",
			Description: "Execute fails deterministically after the session is closed",
			Run: func(t T, s *sshclient.Session, _ Target) {
				require.NoError(t, s.Close())

				status, _, err := s.Capture(t.Context(), "echo hello")
				require.ErrorIs(t, err, sshclient.ErrSessionClosed)
				assert.Equal(t, sshclient.NoExitStatus, status)
			},
		},
	}
}
