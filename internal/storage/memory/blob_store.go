// Package memory stores blob content in-memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/JakeFAU/svt-crawler/internal/crawler"
)

// BlobStore stores artifacts in-memory and returns pseudo URIs.
type BlobStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	puts   map[string]int
	failOn map[string]error
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{
		data:   make(map[string][]byte),
		puts:   make(map[string]int),
		failOn: make(map[string]error),
	}
}

// PutObject persists the content and returns a URI.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.failOn[path]; ok {
		return "", err
	}
	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}

	s.data[path] = append([]byte(nil), byteData...)
	s.puts[path]++
	return fmt.Sprintf("memory://%s", path), nil
}

// GetObject returns a copy of the stored content.
func (s *BlobStore) GetObject(_ context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, crawler.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// DeleteObject removes the content stored at path.
func (s *BlobStore) DeleteObject(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[path]; !ok {
		return fmt.Errorf("%s: %w", path, crawler.ErrNotFound)
	}
	delete(s.data, path)
	return nil
}

// FailOn makes every PutObject for path return err.
func (s *BlobStore) FailOn(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[path] = err
}

// Puts returns how many times path was written.
func (s *BlobStore) Puts(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts[path]
}

// Paths lists stored object paths in sorted order.
func (s *BlobStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.data))
	for p := range s.data {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
