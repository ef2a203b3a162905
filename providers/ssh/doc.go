// Package ssh provides an implementation of the sshclient.Transport interface
// for remote servers via the SSH protocol.
//
// It utilizes "golang.org/x/crypto/ssh" for the protocol, providing support for:
//   - Host key verification via known_hosts or a custom callback
//   - Password and public key authentication, including encrypted keys
//   - Authentication with identities held by an SSH agent (SSH_AUTH_SOCK)
//   - Resolving host aliases from ~/.ssh/config
//
// Usage:
//
//	err := ssh.Connect(ctx, "example.com", 22, "deploy", sshclient.Agent(),
//		func(s *sshclient.Session) error {
//			status, out, err := s.Capture(ctx, "uname -a")
//			...
//		})
package ssh
