package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/Mindburn-Labs/plangate/pkg/contracts"
)

var (
	// ErrChainBroken is returned when an entry does not link to its
	// predecessor or its hash does not match its content.
	ErrChainBroken = errors.New("audit hash chain is broken")
	// ErrConflict is returned by a Store when another writer already
	// appended after the same previous hash.
	ErrConflict = errors.New("audit chain head moved")
	// ErrEmptyTenantID is returned when tenant ID is empty.
	ErrEmptyTenantID = errors.New("audit: tenant_id must not be empty")
)

// ComputeHash returns hex(SHA256(previousHash + eventData + timestamp + actorID)).
func ComputeHash(previousHash, eventData, timestamp, actorID string) string {
	h := sha256.New()
	h.Write([]byte(previousHash))
	h.Write([]byte(eventData))
	h.Write([]byte(timestamp))
	h.Write([]byte(actorID))
	return hex.EncodeToString(h.Sum(nil))
}

// EntryHash recomputes the hash of e from its content.
func EntryHash(e *contracts.AuditChainEntry) string {
	return ComputeHash(e.PreviousHash, e.EventData, e.HashTimestamp(), e.ActorID)
}

// VerifyEntries checks a complete tenant chain in sequence order. Sequences
// start at 1, the first entry links to the genesis hash, each later entry
// links to its predecessor and every hash must match its content.
func VerifyEntries(entries []contracts.AuditChainEntry) error {
	expectedPrev := contracts.GenesisHash
	for i := range entries {
		e := &entries[i]
		if e.Sequence != uint64(i+1) {
			return fmt.Errorf("%w: entry %d has sequence %d", ErrChainBroken, i, e.Sequence)
		}
		if e.PreviousHash != expectedPrev {
			return fmt.Errorf("%w: entry %d has previous_hash %s but expected %s",
				ErrChainBroken, i, e.PreviousHash, expectedPrev)
		}
		if computed := EntryHash(e); computed != e.CurrentHash {
			return fmt.Errorf("%w: entry %d hash mismatch (computed %s, stored %s)",
				ErrChainBroken, i, computed, e.CurrentHash)
		}
		expectedPrev = e.CurrentHash
	}
	return nil
}
