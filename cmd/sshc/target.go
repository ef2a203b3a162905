package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/ruffel/sshclient"
	"github.com/ruffel/sshclient/providers/local"
	"github.com/ruffel/sshclient/providers/ssh"
	"golang.org/x/term"
)

// target is everything needed to connect: how to dial, who to be and which
// methods to try.
type target struct {
	name    string
	dial    sshclient.Dialer
	user    string
	methods []sshclient.AuthMethod
}

// splitCommand separates the optional host from the command line.
// Everything after "--" is the command; without "--" the first argument is the host.
func splitCommand(args []string, dash int, needHost bool) (string, string, error) {
	var host string

	rest := args

	switch {
	case dash >= 0:
		if dash > 1 {
			return "", "", fmt.Errorf("expected at most one host before --, got %d", dash)
		}

		if dash == 1 {
			host = args[0]
		}

		rest = args[dash:]
	case needHost && len(args) > 0:
		host, rest = args[0], args[1:]
	}

	if needHost && host == "" {
		return "", "", errors.New("missing host")
	}

	if len(rest) == 0 {
		return "", "", errors.New("missing command")
	}

	return host, strings.Join(rest, " "), nil
}

// resolveTarget builds the dialer and method list from host and configuration.
func (a *app) resolveTarget(host string) (target, error) {
	cfg := a.config

	if cfg.Local {
		t := target{
			name: "local",
			dial: func(_ context.Context) (sshclient.Transport, error) { return local.New() },
			user: local.CurrentUser(),
		}
		t.methods = []sshclient.AuthMethod{sshclient.Password("")}

		return t, nil
	}

	sshCfg, err := ssh.NewFromSSHConfig(host, cfg.SSHConfig)
	if errors.Is(err, fs.ErrNotExist) {
		sshCfg, err = ssh.NewConfig(host), nil
	}

	if err != nil {
		return target{}, err
	}

	if cfg.Port != 0 {
		sshCfg.Port = cfg.Port
	}

	sshCfg.Timeout = cfg.Timeout
	sshCfg.Stderr = os.Stderr

	if cfg.AgentSocket != "" {
		sshCfg.AgentSocket = cfg.AgentSocket
	}

	if cfg.Insecure {
		sshCfg.InsecureSkipVerify = true
	}

	if cfg.KnownHosts != "" {
		sshCfg.KnownHostsPath = cfg.KnownHosts
	}

	if sshCfg.KnownHostsPath == "" && !sshCfg.InsecureSkipVerify {
		sshCfg.KnownHostsPath = ssh.DefaultKnownHostsPath()
	}

	user := cfg.User
	if user == "" {
		user = sshCfg.User
	}

	if user == "" {
		user = local.CurrentUser()
	}

	methods, err := buildMethods(cfg, sshCfg.IdentityFile, os.LookupEnv)
	if err != nil {
		return target{}, err
	}

	return target{
		name:    fmt.Sprintf("%s@%s", user, sshCfg.Address()),
		dial:    ssh.Dialer(ssh.WithConfig(sshCfg)),
		user:    user,
		methods: methods,
	}, nil
}

// buildMethods returns the methods to try, in order: agent, keys, interactive
// keys, the ssh config IdentityFile, then the password.
func buildMethods(cfg cliConfig, identityFile string, lookupEnv func(string) (string, bool)) ([]sshclient.AuthMethod, error) {
	list := sshclient.Methods()

	if cfg.Agent {
		list.Agent()
	}

	for _, k := range cfg.Keys {
		list.Key(k)
	}

	for _, k := range cfg.InteractiveKeys {
		list.InteractiveKey(k)
	}

	if identityFile != "" {
		list.InteractiveKey(identityFile)
	}

	if cfg.PasswordEnv != "" {
		pw, ok := lookupEnv(cfg.PasswordEnv)
		if !ok {
			return nil, fmt.Errorf("password variable %s is not set", cfg.PasswordEnv)
		}

		list.Password(pw)
	}

	methods := list.Build()
	if len(methods) == 0 {
		return nil, errors.New("no authentication methods: enable --agent or pass --key or --password-env")
	}

	return methods, nil
}

// passphraseProvider prompts on the terminal, falling back to SSH_ASKPASS
// when stdin is not a terminal.
func passphraseProvider() sshclient.PassphraseProvider {
	if term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec // file descriptors fit in an int
		return sshclient.TerminalPrompt{}
	}

	if askPass, ok := sshclient.AskPassFromEnv(); ok {
		return askPass
	}

	return sshclient.TerminalPrompt{}
}
