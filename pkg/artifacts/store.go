// Package artifacts keeps content-addressed snapshots of phase artifacts.
// Every blob is addressed by "sha256:<hex>" of its bytes, so a stored
// snapshot can be re-verified against the digest an audit entry names.
package artifacts

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Mindburn-Labs/plangate/pkg/canonicalize"
)

var (
	ErrNotFound      = errors.New("artifacts: not found")
	ErrInvalidDigest = errors.New("artifacts: invalid digest")
)

// Store is content-addressed blob storage.
type Store interface {
	// Put persists data and returns its digest. Storing the same bytes twice
	// is a no-op.
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, digest string) ([]byte, error)
	Exists(ctx context.Context, digest string) (bool, error)
	Delete(ctx context.Context, digest string) error
}

// parseDigest returns the hex part of "sha256:<hex>".
func parseDigest(digest string) (string, error) {
	raw, ok := strings.CutPrefix(digest, "sha256:")
	if !ok || len(raw) != 64 {
		return "", fmt.Errorf("%w: %q", ErrInvalidDigest, digest)
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDigest, digest)
	}
	return raw, nil
}

// objectKey lays blobs out under a two-character fan-out directory.
func objectKey(prefix, raw string) string {
	return prefix + raw[:2] + "/" + raw + ".blob"
}

// FileStore keeps blobs on the local filesystem.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates a store rooted at baseDir.
func NewFileStore(baseDir string) (*FileStore, error) {
	//nolint:gosec // G301: shared artifact directory
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure artifact dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) path(raw string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(objectKey("", raw)))
}

func (s *FileStore) Put(_ context.Context, data []byte) (string, error) {
	digest := canonicalize.Digest(data)
	raw := strings.TrimPrefix(digest, "sha256:")
	path := s.path(raw)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(path); err == nil {
		return digest, nil
	}
	//nolint:gosec // G301: shared artifact directory
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to ensure blob dir: %w", err)
	}

	// Write to a temp file, then rename.
	tmp, err := os.CreateTemp(filepath.Dir(path), raw+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to commit blob: %w", err)
	}
	return digest, nil
}

func (s *FileStore) Get(_ context.Context, digest string) ([]byte, error) {
	raw, err := parseDigest(digest)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(raw)) //nolint:gosec // digest validated as hex
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, digest)
	}
	return data, err
}

func (s *FileStore) Exists(_ context.Context, digest string) (bool, error) {
	raw, err := parseDigest(digest)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err = os.Stat(s.path(raw))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (s *FileStore) Delete(_ context.Context, digest string) error {
	raw, err := parseDigest(digest)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(raw)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}
