// Package sshclienttest provides a contract test suite for sshclient transports.
package sshclienttest

import (
	"context"
	"fmt"
	"testing"

	"github.com/ruffel/sshclient"
	"github.com/stretchr/testify/require"
)

// Standard categories for grouping tests.
const (
	CategoryCore    = "core"
	CategoryAuth    = "auth"
	CategorySession = "session"
	CategoryErrors  = "errors"
)

// T is the minimal interface required for testify/assert and require.
type T interface {
	Errorf(format string, args ...any)
	FailNow()
	Skipf(format string, args ...any)
	Context() context.Context
	Name() string
}

// Target is a freshly created transport plus credentials it accepts.
// The transport must not have been handshaken yet.
type Target struct {
	Transport sshclient.Transport
	User      string
	Method    sshclient.AuthMethod
}

// NewTarget creates a new Target for every test case.
type NewTarget func(t *testing.T) Target

// TestCase defines a single behavioral contract requirement.
type TestCase struct {
	Category    string
	Name        string
	Description string

	// Unauthenticated cases receive a session that has only completed the handshake.
	Unauthenticated bool

	Run func(t T, s *sshclient.Session, target Target)
}

// ID returns the stable, globally unique contract identifier.
func (tc TestCase) ID() string {
	return fmt.Sprintf("%s/%s", tc.Category, tc.Name)
}

// Verify is the standard Go test entry point for transport authors.
// Contract commands use POSIX shell syntax.
func Verify(t *testing.T, newTarget NewTarget) {
	t.Helper()

	for _, tc := range AllContracts() {
		t.Run(tc.ID(), func(t *testing.T) {
			target := newTarget(t)

			s, err := sshclient.Open(t.Context(), target.Transport)
			require.NoError(t, err)

			t.Cleanup(func() { _ = s.Close() })

			if !tc.Unauthenticated {
				require.NoError(t, s.Authenticate(t.Context(), target.User, target.Method))
			}

			tc.Run(t, s, target)
		})
	}
}
