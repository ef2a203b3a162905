package ssh

import (
	"context"

	"github.com/ruffel/sshclient"
)

// Dialer returns an sshclient.Dialer that builds a Transport from opts.
func Dialer(opts ...Option) sshclient.Dialer {
	return func(context.Context) (sshclient.Transport, error) {
		return New(opts...)
	}
}

// Connect opens an SSH session to host:port, authenticates user with method and
// runs body with the live session. Host keys are verified against
// ~/.ssh/known_hosts. body is never invoked if the handshake or authentication fails.
func Connect(
	ctx context.Context,
	host string,
	port int,
	user string,
	method sshclient.AuthMethod,
	body func(*sshclient.Session) error,
	opts ...sshclient.Option,
) error {
	dial := Dialer(WithHost(host), WithPort(port), WithKnownHosts(DefaultKnownHostsPath()))

	return sshclient.Connect(ctx, dial, user, method, body, opts...)
}
