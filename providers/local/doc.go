// Package local provides an implementation of the sshclient.Transport
// interface that runs commands on the local machine.
//
// It serves as a thin wrapper around the standard library's "os/exec" package,
// adapting it to the transport primitives so a Session can be exercised
// without a network: the handshake always succeeds, only the current OS user
// can authenticate, and commands run through the platform shell.
//
// Usage:
//
//	t, _ := local.New()
//	s, _ := sshclient.Open(ctx, t)
//	_ = s.Authenticate(ctx, local.CurrentUser(), sshclient.Password(""))
//	status, out, _ := s.Capture(ctx, "echo hello")
package local
