package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app holds state shared by every subcommand once flags are parsed.
type app struct {
	configFile string
	config     cliConfig
	logger     zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "sshc",
		Short:         "Run commands on remote hosts over SSH",
		Long:          `sshc authenticates with an ordered list of methods (agent, keys, password) and runs commands, streaming their output.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags(), a.configFile)
			if err != nil {
				return err
			}

			a.config = cfg
			a.logger = newLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())

			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Config file (default ~/.config/sshc/config.yaml)")
	flags.String("log-level", "warn", "Log level (trace, debug, info, warn, error)")
	flags.String("log-format", "console", "Log format (console, json)")
	flags.StringP("user", "u", "", "Remote user (default from ssh config, then the local user)")
	flags.IntP("port", "p", 0, "Remote port (default from ssh config, then 22)")
	flags.Duration("timeout", defaultConfig().Timeout, "Connection timeout")
	flags.String("ssh-config", "", "SSH config file used to resolve host aliases (default ~/.ssh/config)")
	flags.Bool("local", false, "Run on the local machine instead of over SSH")
	flags.Bool("agent", true, "Try the identities held by the SSH agent")
	flags.String("agent-socket", "", "Agent socket (default $SSH_AUTH_SOCK)")
	flags.StringSlice("key", nil, "Private key to try (repeatable)")
	flags.StringSlice("key-interactive", nil, "Private key to try via the agent, then with a prompted passphrase (repeatable)")
	flags.String("password-env", "", "Environment variable holding a password to try last")
	flags.String("known-hosts", "", "known_hosts file (default ~/.ssh/known_hosts)")
	flags.Bool("insecure", false, "Skip host key verification (testing only)")

	rootCmd.AddCommand(newRunCmd(a), newCaptureCmd(a), newIdentitiesCmd(a))

	return rootCmd
}
