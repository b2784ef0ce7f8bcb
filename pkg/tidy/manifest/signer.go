package manifest

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Signer signs and verifies manifest records. It is a small pluggable
// interface so the algorithm can be upgraded without a format migration.
type Signer interface {
	// Sign returns a signature for data.
	Sign(data []byte) (string, error)

	// Verify checks signature against data.
	Verify(data []byte, signature string) error

	// Algorithm names the scheme, e.g. "hmac-sha256".
	Algorithm() string
}

// ErrBadSignature indicates a signature that does not match the record.
var ErrBadSignature = errors.New("manifest signature mismatch")

// hmacSigner is the default Signer: HMAC-SHA256 with a machine-local key.
type hmacSigner struct {
	key []byte
}

// NewHMACSigner creates the default HMAC-SHA256 signer.
func NewHMACSigner(key []byte) Signer {
	return &hmacSigner{key: key}
}

// Sign implements Signer.
func (s *hmacSigner) Sign(data []byte) (string, error) {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify implements Signer.
func (s *hmacSigner) Verify(data []byte, signature string) error {
	want, err := s.Sign(data)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}

// Algorithm implements Signer.
func (s *hmacSigner) Algorithm() string { return "hmac-sha256" }

// signingKeySize is the size of the generated machine-local key.
const signingKeySize = 32

// LoadOrCreateKey reads the signing key at path, generating and persisting
// a new one (mode 0600) on first use.
func LoadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != signingKeySize {
			return nil, fmt.Errorf("signing key %s has wrong size %d", path, len(key))
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading signing key: %w", err)
	}

	key = make([]byte, signingKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating signing key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating key directory: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("writing signing key: %w", err)
	}
	return key, nil
}
