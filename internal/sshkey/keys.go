package sshkey

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

const (
	generatedKeyName = "spinup_rsa"
	generatedKeyBits = 2048
)

// Keypair is the public key injected into machines plus the path of
// the private key that matches it.
type Keypair struct {
	// PublicKey is one authorized_keys line, without trailing newline.
	PublicKey string
	// PrivateKeyPath is where the matching private key lives. It may
	// not exist when the public key came from the user's home
	// directory and the private half is held elsewhere.
	PrivateKeyPath string
}

// LoadOrGenerate finds the public key to inject into machines.
//
// An explicitly configured path must exist and parse; otherwise the
// user's ~/.ssh/id_rsa.pub and ~/.ssh/id_ed25519.pub are tried in that
// order, and when none exists a fresh RSA keypair is generated under
// stateDir and reused on later runs.
func LoadOrGenerate(configuredPath, stateDir string) (*Keypair, error) {
	if configuredPath != "" {
		kp, err := loadPublicKey(configuredPath)
		if err != nil {
			return nil, fmt.Errorf("configured ssh key %s: %w", configuredPath, err)
		}
		return kp, nil
	}

	home, err := os.UserHomeDir()
	if err == nil {
		for _, name := range []string{"id_rsa.pub", "id_ed25519.pub"} {
			path := filepath.Join(home, ".ssh", name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			kp, err := loadPublicKey(path)
			if err != nil {
				// A malformed key in ~/.ssh is skipped rather than
				// fatal; the next candidate or a generated key serves.
				continue
			}
			return kp, nil
		}
	}

	return generate(stateDir)
}

// loadPublicKey reads and validates one authorized_keys style file.
func loadPublicKey(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	line := strings.TrimSpace(string(data))
	if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line)); err != nil {
		return nil, fmt.Errorf("not a valid SSH public key: %w", err)
	}
	return &Keypair{
		PublicKey:      line,
		PrivateKeyPath: strings.TrimSuffix(path, ".pub"),
	}, nil
}

// generate creates (or reuses) an RSA keypair under stateDir.
func generate(stateDir string) (*Keypair, error) {
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	privatePath := filepath.Join(stateDir, generatedKeyName)
	publicPath := privatePath + ".pub"

	if _, err := os.Stat(privatePath); err == nil {
		if kp, err := loadPublicKey(publicPath); err == nil {
			return kp, nil
		}
		// Private key survived but its public half is missing or
		// damaged; rebuild the public file from the private key.
		return rebuildPublicKey(privatePath, publicPath)
	}

	key, err := rsa.GenerateKey(rand.Reader, generatedKeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	pemBlock := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}
	if err := os.WriteFile(privatePath, pem.EncodeToMemory(pemBlock), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write private key: %w", err)
	}

	return writePublicKey(&key.PublicKey, privatePath, publicPath)
}

// rebuildPublicKey derives the public file from an existing private
// key.
func rebuildPublicKey(privatePath, publicPath string) (*Keypair, error) {
	data, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%s is not a PEM private key", privatePath)
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return writePublicKey(&key.PublicKey, privatePath, publicPath)
}

func writePublicKey(key *rsa.PublicKey, privatePath, publicPath string) (*Keypair, error) {
	pub, err := ssh.NewPublicKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pub)))
	if err := os.WriteFile(publicPath, []byte(line+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write public key: %w", err)
	}
	return &Keypair{PublicKey: line, PrivateKeyPath: privatePath}, nil
}
