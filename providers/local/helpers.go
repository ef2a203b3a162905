package local

import (
	"context"

	"github.com/ruffel/sshclient"
)

// RunShell runs script locally through a new session and returns its exit
// status and output.
func RunShell(ctx context.Context, script string, opts ...sshclient.Option) (int, string, error) {
	var (
		status int
		output string
	)

	t, err := New()
	if err != nil {
		return sshclient.NoExitStatus, "", err
	}

	dial := func(context.Context) (sshclient.Transport, error) { return t, nil }

	err = sshclient.Connect(ctx, dial, CurrentUser(), sshclient.Password(""), func(s *sshclient.Session) error {
		var runErr error

		status, output, runErr = s.Capture(ctx, script)

		return runErr
	}, opts...)
	if err != nil {
		return sshclient.NoExitStatus, output, err
	}

	return status, output, nil
}
