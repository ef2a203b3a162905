package main

import (
	"fmt"
	"time"

	"github.com/ruffel/sshclient"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run [host] -- <command>",
		Short: "Run a command and stream its output",
		Long:  "Run a command on host, streaming its output, and exit with its status. The host may be an ~/.ssh/config alias.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, command, err := splitCommand(args, cmd.ArgsLenAtDash(), !a.config.Local)
			if err != nil {
				return err
			}

			status := sshclient.NoExitStatus

			err = a.withSession(cmd, host, func(s *sshclient.Session) error {
				var runErr error

				status, runErr = s.Execute(cmd.Context(), command, sshclient.SinkWriter(cmd.OutOrStdout()))

				return runErr
			})
			if err != nil {
				return err
			}

			if status != 0 {
				return &exitStatusError{status: status}
			}

			return nil
		},
	}
}

func newCaptureCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "capture [host] -- <command>",
		Short: "Run a command and print its status and output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, command, err := splitCommand(args, cmd.ArgsLenAtDash(), !a.config.Local)
			if err != nil {
				return err
			}

			start := time.Now()

			return a.withSession(cmd, host, func(s *sshclient.Session) error {
				status, out, err := s.Capture(cmd.Context(), command)
				if err != nil {
					return err
				}

				style := checkStyle
				if status != 0 {
					style = errorStyle
				}

				w := cmd.OutOrStdout()
				_, _ = fmt.Fprintln(w, style.Render(fmt.Sprintf("exit status %d", status))+" "+
					dimStyle.Render(fmt.Sprintf("(took %v)", time.Since(start).Round(time.Millisecond))))
				_, _ = fmt.Fprint(w, out)

				return nil
			})
		},
	}
}

// withSession connects to host, authenticates and runs body.
func (a *app) withSession(cmd *cobra.Command, host string, body func(*sshclient.Session) error) error {
	t, err := a.resolveTarget(host)
	if err != nil {
		return err
	}

	a.logger.Info().Str("target", t.name).Int("methods", len(t.methods)).Msg("connecting")

	opts := []sshclient.Option{
		sshclient.WithLogger(a.logger),
		sshclient.WithPassphraseProvider(passphraseProvider()),
		sshclient.WithOutput(cmd.OutOrStdout()),
	}

	return sshclient.ConnectAny(cmd.Context(), t.dial, t.user, t.methods, body, opts...)
}
