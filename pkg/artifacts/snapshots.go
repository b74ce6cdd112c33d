package artifacts

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mindburn-Labs/plangate/pkg/canonicalize"
)

// ErrDigestMismatch is returned when stored bytes no longer hash to the
// digest they were stored under, or a backend returns a different digest
// than the snapshot's own.
var ErrDigestMismatch = errors.New("artifacts: digest mismatch")

// Snapshots stores canonicalized artifact snapshots and verifies them on
// read.
type Snapshots struct {
	store Store
}

func NewSnapshots(store Store) *Snapshots {
	return &Snapshots{store: store}
}

// Save canonicalizes raw and stores it. The returned snapshot's Digest is
// the storage address.
func (s *Snapshots) Save(ctx context.Context, raw any) (*canonicalize.Snapshot, error) {
	snap, err := canonicalize.Canonicalize(raw)
	if err != nil {
		return nil, err
	}
	digest, err := s.store.Put(ctx, snap.Bytes)
	if err != nil {
		return nil, fmt.Errorf("store snapshot: %w", err)
	}
	if digest != snap.Digest {
		return nil, fmt.Errorf("%w: stored %s, computed %s", ErrDigestMismatch, digest, snap.Digest)
	}
	return snap, nil
}

// Load reads a snapshot's bytes and checks them against digest.
func (s *Snapshots) Load(ctx context.Context, digest string) ([]byte, error) {
	data, err := s.store.Get(ctx, digest)
	if err != nil {
		return nil, err
	}
	if got := canonicalize.Digest(data); got != digest {
		return nil, fmt.Errorf("%w: want %s, got %s", ErrDigestMismatch, digest, got)
	}
	return data, nil
}
