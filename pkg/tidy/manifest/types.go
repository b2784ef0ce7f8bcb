// Package manifest persists the undo log for executed batches. One JSON
// file per manifest, named by its UUID, under an explicitly configured
// directory. Every record carries an integrity hash and a signature that
// are verified before the contents are trusted.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

// FormatVersion is the on-disk manifest format version.
const FormatVersion = 1

// Manifest is the persisted, integrity-checked undo log for one batch.
// Actions are stored in the order they were performed, never reordered;
// rollback always consumes them in reverse.
type Manifest struct {
	ID          string                 `json:"id"`
	Timestamp   time.Time              `json:"timestamp"`
	Description string                 `json:"description"`
	Version     int                    `json:"version"`
	Actions     []types.RollbackAction `json:"actions"`
	Hash        string                 `json:"hash"`
	Signature   string                 `json:"signature"`
}

// computeHash returns the integrity hash over the manifest's actions and
// timestamp.
func (m *Manifest) computeHash() (string, error) {
	payload, err := json.Marshal(struct {
		Actions   []types.RollbackAction `json:"actions"`
		Timestamp time.Time              `json:"timestamp"`
	}{m.Actions, m.Timestamp})
	if err != nil {
		return "", fmt.Errorf("marshaling hash payload: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// signingPayload returns the bytes the signature covers: the full record
// with the signature field blanked.
func (m *Manifest) signingPayload() ([]byte, error) {
	unsigned := *m
	unsigned.Signature = ""
	payload, err := json.Marshal(&unsigned)
	if err != nil {
		return nil, fmt.Errorf("marshaling signing payload: %w", err)
	}
	return payload, nil
}

// seal recomputes the hash and signature. Called before every persist.
func (m *Manifest) seal(signer Signer) error {
	hash, err := m.computeHash()
	if err != nil {
		return err
	}
	m.Hash = hash

	payload, err := m.signingPayload()
	if err != nil {
		return err
	}
	sig, err := signer.Sign(payload)
	if err != nil {
		return fmt.Errorf("signing manifest: %w", err)
	}
	m.Signature = sig
	return nil
}

// Verify checks the manifest's integrity hash and signature. It must pass
// before any rollback trusts the contents.
func (m *Manifest) Verify(signer Signer) error {
	hash, err := m.computeHash()
	if err != nil {
		return err
	}
	if hash != m.Hash {
		return types.NewOpError(types.KindIntegrity, "verify", m.ID,
			fmt.Errorf("integrity hash mismatch"))
	}

	payload, err := m.signingPayload()
	if err != nil {
		return err
	}
	if err := signer.Verify(payload, m.Signature); err != nil {
		return types.NewOpError(types.KindIntegrity, "verify", m.ID, err)
	}
	return nil
}
