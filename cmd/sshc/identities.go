package main

import (
	"fmt"

	"github.com/ruffel/sshclient"
	"github.com/ruffel/sshclient/providers/ssh"
	"github.com/spf13/cobra"
)

func newIdentitiesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "identities",
		Short: "List the identities held by the SSH agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			handle, err := ssh.OpenAgent(a.config.AgentSocket)
			if err != nil {
				return err
			}

			defer func() { _ = handle.Close() }()

			enum := sshclient.NewEnumerator(handle)

			if err := enum.Connect(cmd.Context()); err != nil {
				return err
			}

			if err := enum.ListIdentities(cmd.Context()); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			count := 0

			_, _ = fmt.Fprintln(w, titleStyle.Render("Agent identities"))

			err = enum.Walk(func(id sshclient.Identity) bool {
				count++

				_, _ = fmt.Fprintf(w, "%s %s %s %s\n",
					dimStyle.Render(fmt.Sprintf("%2d", id.Index())),
					infoStyle.Render(id.Format()),
					id.Fingerprint(),
					id.Comment())

				return false
			})
			if err != nil {
				return err
			}

			if count == 0 {
				_, _ = fmt.Fprintln(w, dimStyle.Render("The agent has no identities."))
			}

			a.logger.Debug().Int("count", count).Msg("listed agent identities")

			return nil
		},
	}
}
