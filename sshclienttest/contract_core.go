package sshclienttest

import (
	"context"
	"strings"
	"time"

	"github.com/ruffel/sshclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	exitStatusCode = 13
	largeLines     = 2000
	largeLine      = "0123456789012345678901234567890123456789012345678"

	stdinTimeout = 10 * time.Second
	cancelAfter  = 500 * time.Millisecond
)

func coreContracts() []TestCase {
	return []TestCase{
		{
			Category: CategoryCore,
			Name:     "simple-echo",
			Run: func(t T, s *sshclient.Session, _ Target) {
				status, out, err := s.Capture(t.Context(), "echo hello")
				require.NoError(t, err)

				assert.Equal(t, 0, status)
				assert.Equal(t, "hello\n", out)
			},
		},
		{
			Category:    CategoryCore,
			Name:        "exit-status",
			Description: "A non-zero exit status is a result, not an error",
			Run: func(t T, s *sshclient.Session, _ Target) {
				status, _, err := s.Capture(t.Context(), "exit 13")
				require.NoError(t, err)
				assert.Equal(t, exitStatusCode, status)
			},
		},
		{
			Category:    CategoryCore,
			Name:        "empty-output",
			Description: "A command with no output never calls the sink",
			Run: func(t T, s *sshclient.Session, _ Target) {
				calls := 0

				status, err := s.Execute(t.Context(), "true", func(string) error {
					calls++

					return nil
				})
				require.NoError(t, err)
				assert.Equal(t, 0, status)
				assert.Zero(t, calls)
			},
		},
		{
			Category:    CategoryCore,
			Name:        "lines-in-order",
			Description: "Output lines arrive in order, including an unterminated last line",
			Run: func(t T, s *sshclient.Session, _ Target) {
				var lines []string

				status, err := s.ExecuteLines(t.Context(), `printf 'a\nb\nc'`, func(line string) {
					lines = append(lines, line)
				})
				require.NoError(t, err)
				assert.Equal(t, 0, status)
				assert.Equal(t, []string{"a", "b", "c"}, lines)
			},
		},
		{
			Category:    CategoryCore,
			Name:        "large-output",
			Description: "Output spanning many chunks is delivered completely and in order",
			Run: func(t T, s *sshclient.Session, _ Target) {
				script := `i=0; while [ $i -lt 2000 ]; do echo ` + largeLine + `; i=$((i+1)); done`

				status, out, err := s.Capture(t.Context(), script)
				require.NoError(t, err)
				assert.Equal(t, 0, status)
				assert.Equal(t, strings.Repeat(largeLine+"\n", largeLines), out)
			},
		},
		{
			Category:    CategoryCore,
			Name:        "stdin-is-empty",
			Description: "A command reading standard input sees end-of-file instead of blocking",
			Run: func(t T, s *sshclient.Session, _ Target) {
				ctx, cancel := context.WithTimeout(t.Context(), stdinTimeout)
				defer cancel()

				status, out, err := s.Capture(ctx, "cat; echo done")
				require.NoError(t, err)
				assert.Equal(t, 0, status)
				assert.Equal(t, "done\n", out)
			},
		},
		{
			Category:    CategoryCore,
			Name:        "cancel-fails-read",
			Description: "Cancelling a running command is a read failure, not end of output",
			Run: func(t T, s *sshclient.Session, _ Target) {
				ctx, cancel := context.WithTimeout(t.Context(), cancelAfter)
				defer cancel()

				status, out, err := s.Capture(ctx, "echo first; sleep 5; echo second")

				var ioErr *sshclient.ChannelIOError
				require.ErrorAs(t, err, &ioErr)
				assert.Equal(t, sshclient.CodeReadFailed, ioErr.Code)
				require.ErrorIs(t, err, context.DeadlineExceeded)
				assert.Equal(t, sshclient.NoExitStatus, status)
				assert.Equal(t, "first\n", out)
			},
		},
	}
}
