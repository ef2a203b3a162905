package sshclient

import "fmt"

// AuthMethod is one way of authenticating against a remote host.
// The set of implementations is closed: Key, Password and Agent.
type AuthMethod interface {
	fmt.Stringer

	isAuthMethod()
}

// KeyAuth authenticates with a key pair on disk.
type KeyAuth struct {
	Spec KeySpec
}

// PasswordAuth authenticates with a password.
type PasswordAuth struct {
	Password string
}

// AgentAuth authenticates with the identities held by the local key agent.
type AgentAuth struct{}

func (KeyAuth) isAuthMethod()      {}
func (PasswordAuth) isAuthMethod() {}
func (AgentAuth) isAuthMethod()    {}

// Key returns an AuthMethod that authenticates with the given key pair.
func Key(spec KeySpec) AuthMethod {
	return KeyAuth{Spec: spec}
}

// Password returns an AuthMethod that authenticates with password.
func Password(password string) AuthMethod {
	return PasswordAuth{Password: password}
}

// Agent returns an AuthMethod that tries every identity held by the key agent.
func Agent() AuthMethod {
	return AgentAuth{}
}

func (k KeyAuth) String() string {
	return fmt.Sprintf("publickey(%s, %s)", k.Spec.PrivateKeyPath, k.Spec.decryption())
}

func (PasswordAuth) String() string {
	return "password"
}

func (AgentAuth) String() string {
	return "agent"
}

// Decryption describes how the passphrase of a private key is obtained.
// The implementations are Passphrase, AgentOrInteractive and NoDecryption.
type Decryption interface {
	fmt.Stringer

	isDecryption()
}

type fixedDecryption struct{ value string }

type agentOrInteractive struct{}

type noDecryption struct{}

func (fixedDecryption) isDecryption()    {}
func (agentOrInteractive) isDecryption() {}
func (noDecryption) isDecryption()       {}

func (fixedDecryption) String() string    { return "passphrase" }
func (agentOrInteractive) String() string { return "agent-or-interactive" }
func (noDecryption) String() string       { return "none" }

// Passphrase decrypts the key with a fixed passphrase.
func Passphrase(value string) Decryption {
	return fixedDecryption{value: value}
}

// AgentOrInteractive first tries the key agent and, if that fails, asks the
// configured PassphraseProvider (by default an interactive terminal prompt).
func AgentOrInteractive() Decryption {
	return agentOrInteractive{}
}

// NoDecryption treats the key as unencrypted; its passphrase is empty.
func NoDecryption() Decryption {
	return noDecryption{}
}

// KeySpec identifies a key pair and how to decrypt it.
type KeySpec struct {
	PrivateKeyPath string
	PublicKeyPath  string // Defaults to PrivateKeyPath + ".pub"
	Decryption     Decryption
}

// KeyOption configures a KeySpec.
type KeyOption func(*KeySpec)

// WithPublicKey overrides the public key path.
func WithPublicKey(path string) KeyOption {
	return func(k *KeySpec) {
		k.PublicKeyPath = path
	}
}

// WithDecryption sets how the private key is decrypted.
func WithDecryption(d Decryption) KeyOption {
	return func(k *KeySpec) {
		k.Decryption = d
	}
}

// NewKeySpec creates a KeySpec for the private key at path. It never fails.
func NewKeySpec(privateKeyPath string, opts ...KeyOption) KeySpec {
	spec := KeySpec{PrivateKeyPath: privateKeyPath}

	for _, o := range opts {
		o(&spec)
	}

	if spec.PublicKeyPath == "" {
		spec.PublicKeyPath = privateKeyPath + ".pub"
	}

	if spec.Decryption == nil {
		spec.Decryption = NoDecryption()
	}

	return spec
}

// Files returns the on-disk key pair.
func (k KeySpec) Files() KeyFiles {
	return KeyFiles{
		PrivateKeyPath: k.PrivateKeyPath,
		PublicKeyPath:  k.PublicKeyPath,
	}
}

func (k KeySpec) decryption() Decryption {
	if k.Decryption == nil {
		return NoDecryption()
	}

	return k.Decryption
}
