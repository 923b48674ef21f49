package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ObjectStore is the blob persistence seam (invoices, manuscript
// uploads). Production points it at object storage; dev uses the disk.
type ObjectStore interface {
	// Put stores data under key and returns the stored location.
	Put(ctx context.Context, key string, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// DiskStore stores objects under a local root directory.
type DiskStore struct {
	Root string
}

func NewDiskStore(root string) *DiskStore {
	return &DiskStore{Root: root}
}

func (s *DiskStore) Put(_ context.Context, key string, data []byte) (string, error) {
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	path := filepath.Join(s.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}
	return path, nil
}

func (s *DiskStore) Get(_ context.Context, key string) ([]byte, error) {
	if strings.Contains(key, "..") {
		return nil, fmt.Errorf("invalid object key %q", key)
	}
	return os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(key)))
}
