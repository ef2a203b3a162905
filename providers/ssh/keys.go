package ssh

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ruffel/sshclient"
	"golang.org/x/crypto/ssh"
)

// LoadSigner loads the private key at privatePath. If the key is encrypted,
// passphrase is called once to decrypt it. When the public key file at
// publicPath exists it must match the private key.
func LoadSigner(privatePath, publicPath string, passphrase sshclient.PassphraseFunc) (ssh.Signer, error) {
	keyBytes, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if !errors.As(err, &missing) {
			return nil, fmt.Errorf("parse private key: %w", err)
		}

		signer, err = decryptSigner(privatePath, keyBytes, passphrase)
		if err != nil {
			return nil, err
		}
	}

	if err := matchPublicKey(publicPath, signer.PublicKey()); err != nil {
		return nil, err
	}

	return signer, nil
}

func decryptSigner(path string, keyBytes []byte, passphrase sshclient.PassphraseFunc) (ssh.Signer, error) {
	if passphrase == nil {
		return nil, sshclient.ErrPassphraseRequired
	}

	value, err := passphrase()
	if err != nil {
		return nil, fmt.Errorf("passphrase for %s: %w", path, err)
	}

	if value == "" {
		return nil, sshclient.ErrPassphraseRequired
	}

	signer, err := ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(value))
	if err != nil {
		return nil, fmt.Errorf("parse private key with passphrase: %w", err)
	}

	return signer, nil
}

// matchPublicKey checks the authorized_keys formatted file at path against want.
// A missing file is not an error.
func matchPublicKey(path string, want ssh.PublicKey) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("read public key: %w", err)
	}

	pub, _, _, _, err := ssh.ParseAuthorizedKey(data)
	if err != nil {
		return fmt.Errorf("parse public key %s: %w", path, err)
	}

	if !bytes.Equal(pub.Marshal(), want.Marshal()) {
		return fmt.Errorf("public key %s does not match the private key", path)
	}

	return nil
}
