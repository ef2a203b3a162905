// Package mock provides controllable implementations of sshclient.Transport,
// sshclient.Channel and sshclient.AgentHandle for testing purposes.
//
// It allows defining expectations for every transport primitive, enabling
// deterministic unit tests for code that builds upon the sshclient library.
//
// Usage:
//
//	t := mock.NewTransport()
//	t.On("Handshake", mock.Anything).Return(nil)
//	ch := mock.NewChannel()
//	ch.ExpectCommand("uptime", 0, "up 3 days\n")
//	t.On("OpenChannel", mock.Anything).Return(ch, nil)
//	// pass 't' to sshclient.Open
package mock
