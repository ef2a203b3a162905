package sshclient

import (
	"context"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// Identity is an opaque handle to one public key held by a key agent.
// Identities are comparable; two handles are equal when they refer to the same
// position of the same listing.
type Identity struct {
	index   int
	format  string
	comment string
	blob    string
}

// NewIdentity creates the handle for the key at position index of an agent listing.
// It is intended for AgentHandle implementations.
func NewIdentity(index int, format, comment string, blob []byte) Identity {
	return Identity{
		index:   index,
		format:  format,
		comment: comment,
		blob:    string(blob),
	}
}

// Index returns the identity's position in the agent's listing.
func (id Identity) Index() int { return id.index }

// Format returns the key algorithm, e.g. "ssh-ed25519".
func (id Identity) Format() string { return id.format }

// Comment returns the comment the agent holds for the key.
func (id Identity) Comment() string { return id.comment }

// Blob returns the wire encoding of the public key.
func (id Identity) Blob() []byte { return []byte(id.blob) }

// Fingerprint returns the SHA256 fingerprint of the public key, or "" if the
// key cannot be parsed.
func (id Identity) Fingerprint() string {
	pub, err := ssh.ParsePublicKey([]byte(id.blob))
	if err != nil {
		return ""
	}

	return ssh.FingerprintSHA256(pub)
}

func (id Identity) String() string {
	if id.comment == "" {
		return fmt.Sprintf("#%d %s", id.index, id.format)
	}

	return fmt.Sprintf("#%d %s %s", id.index, id.format, id.comment)
}

// Cursor is a position in an agent enumeration: either the start, or just after
// a previously returned identity. Cursors are plain values.
type Cursor struct {
	after   Identity
	started bool
}

// Start returns the cursor positioned before the first identity.
func Start() Cursor {
	return Cursor{}
}

// After returns the cursor positioned just after id.
func After(id Identity) Cursor {
	return Cursor{after: id, started: true}
}

// IsStart reports whether c is positioned before the first identity.
func (c Cursor) IsStart() bool {
	return !c.started
}

// Enumerator iterates the identities held by a key agent, one at a time.
type Enumerator struct {
	agent     AgentHandle
	connected bool
	listed    bool
}

// NewEnumerator creates an enumerator over the given agent handle.
func NewEnumerator(agent AgentHandle) *Enumerator {
	return &Enumerator{agent: agent}
}

// Connect establishes the session with the agent.
func (e *Enumerator) Connect(ctx context.Context) error {
	if err := e.agent.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to agent: %w", err)
	}

	e.connected = true

	return nil
}

// ListIdentities asks the agent to enumerate its identities. It must be called
// after Connect and before Next.
func (e *Enumerator) ListIdentities(ctx context.Context) error {
	if !e.connected {
		return fmt.Errorf("%w: list identities before connecting to the agent", ErrProtocolState)
	}

	if err := e.agent.ListIdentities(ctx); err != nil {
		return fmt.Errorf("failed to list agent identities: %w", err)
	}

	e.listed = true

	return nil
}

// Next returns the identity following cursor. ok is false once no identity remains.
func (e *Enumerator) Next(cursor Cursor) (id Identity, ok bool, err error) {
	if !e.listed {
		return Identity{}, false, fmt.Errorf("%w: get identity before listing identities", ErrProtocolState)
	}

	var after *Identity
	if !cursor.IsStart() {
		prev := cursor.after
		after = &prev
	}

	next, err := e.agent.NextIdentity(after)
	if err != nil {
		return Identity{}, false, fmt.Errorf("failed to get agent identity: %w", err)
	}

	if next == nil {
		return Identity{}, false, nil
	}

	if after != nil && next.index <= after.index {
		return Identity{}, false, fmt.Errorf("%w: agent returned identity %d after %d", ErrProtocolState, next.index, after.index)
	}

	return *next, true, nil
}

// Walk visits every identity in agent order, stopping early when fn returns true.
func (e *Enumerator) Walk(fn func(Identity) bool) error {
	cursor := Start()

	for {
		id, ok, err := e.Next(cursor)
		if err != nil {
			return err
		}

		if !ok || fn(id) {
			return nil
		}

		cursor = After(id)
	}
}
