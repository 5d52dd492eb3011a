// Package auth signs and verifies operation requests.
//
// A participant is identified by an ed25519 public key. Each write request
// carries a short-lived EdDSA JWT whose subject is the hex public key, whose
// op claim names the operation and whose body_sha3 claim binds the request body.
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dyluth/mural/pkg/address"
)

// GenerateKey creates a new ed25519 key pair.
func GenerateKey() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return priv, nil
}

// Identity returns the participant address of a key.
func Identity(priv ed25519.PrivateKey) address.Address {
	var a address.Address
	copy(a[:], priv.Public().(ed25519.PublicKey))
	return a
}

// PublicKey converts a participant address back into a verification key.
func PublicKey(a address.Address) ed25519.PublicKey {
	return ed25519.PublicKey(a.Bytes())
}

// SaveKey writes the key's 32-byte seed as hex to path with owner-only permissions.
// Refuses to overwrite an existing file.
func SaveKey(path string, priv ed25519.PrivateKey) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("key file %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	data := hex.EncodeToString(priv.Seed()) + "\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// LoadKey reads a key written by SaveKey.
func LoadKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("key file %s is not hex: %w", path, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("key file %s holds %d bytes, expected %d", path, len(seed), ed25519.SeedSize)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}
