package sshclient

// MethodList provides a fluent API for building an ordered list of
// authentication methods.
type MethodList struct {
	methods []AuthMethod
}

// Methods creates an empty MethodList.
func Methods() *MethodList {
	return &MethodList{}
}

// Agent appends agent authentication.
func (b *MethodList) Agent() *MethodList {
	b.methods = append(b.methods, Agent())
	return b
}

// Key appends key authentication with the private key at path.
func (b *MethodList) Key(path string, opts ...KeyOption) *MethodList {
	b.methods = append(b.methods, Key(NewKeySpec(path, opts...)))
	return b
}

// InteractiveKey appends key authentication that tries the agent first and
// then prompts for the key's passphrase.
func (b *MethodList) InteractiveKey(path string) *MethodList {
	return b.Key(path, WithDecryption(AgentOrInteractive()))
}

// Password appends password authentication.
func (b *MethodList) Password(password string) *MethodList {
	b.methods = append(b.methods, Password(password))
	return b
}

// Method appends an arbitrary method.
func (b *MethodList) Method(m AuthMethod) *MethodList {
	b.methods = append(b.methods, m)
	return b
}

// Build returns a copy of the constructed list.
func (b *MethodList) Build() []AuthMethod {
	return append([]AuthMethod(nil), b.methods...)
}
