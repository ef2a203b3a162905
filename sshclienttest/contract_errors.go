package sshclienttest

import (
	"errors"

	"github.com/ruffel/sshclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errContractSink = errors.New("contract sink failure")

func errorContracts() []TestCase {
	return []TestCase{
		{
			Category:    CategoryErrors,
			Name:        "sink-error-aborts",
			Description: "A sink error stops the command with a ChannelIOError",
			Run: func(t T, s *sshclient.Session, _ Target) {
				calls := 0

				status, err := s.Execute(t.Context(), "echo hello; echo world", func(string) error {
					calls++

					return errContractSink
				})

				var ioErr *sshclient.ChannelIOError
				require.ErrorAs(t, err, &ioErr)
				assert.Equal(t, sshclient.CodeSinkFailed, ioErr.Code)
				require.ErrorIs(t, err, errContractSink)
				assert.Equal(t, sshclient.NoExitStatus, status)
				assert.Equal(t, 1, calls)
			},
		},
		{
			Category:    CategoryErrors,
			Name:        "unterminated-output",
			Description: "Output without a trailing newline is delivered unchanged",
			Run: func(t T, s *sshclient.Session, _ Target) {
				status, out, err := s.Capture(t.Context(), "printf partial; exit 0")
				require.NoError(t, err)
				assert.Equal(t, 0, status)
				assert.Equal(t, "partial", out)
			},
		},
	}
}
