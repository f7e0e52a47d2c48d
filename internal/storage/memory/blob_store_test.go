package memory

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/JakeFAU/svt-crawler/internal/crawler"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "svt-2021/sport/1.json", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://svt-2021/sport/1.json" {
		t.Fatalf("unexpected uri %s", uri)
	}
	payload[0] = 'C'
	stored, err := store.GetObject(context.Background(), "svt-2021/sport/1.json")
	if err != nil {
		t.Fatalf("GetObject() error = %v", err)
	}
	if string(stored) != "content" {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}
	if store.Puts("svt-2021/sport/1.json") != 1 {
		t.Fatalf("expected one put, got %d", store.Puts("svt-2021/sport/1.json"))
	}
}

func TestBlobStoreGetObjectMissing(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	if _, err := store.GetObject(context.Background(), "missing"); !errors.Is(err, crawler.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBlobStoreFailOn(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	boom := errors.New("disk full")
	store.FailOn("a.json", boom)
	if _, err := store.PutObject(context.Background(), "a.json", "", bytes.NewReader([]byte("x"))); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if len(store.Paths()) != 0 {
		t.Fatalf("expected nothing stored, got %v", store.Paths())
	}
}

func TestBlobStoreDeleteObject(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	if _, err := store.PutObject(context.Background(), "a.json", "", bytes.NewReader([]byte("x"))); err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if err := store.DeleteObject(context.Background(), "a.json"); err != nil {
		t.Fatalf("DeleteObject() error = %v", err)
	}
	if len(store.Paths()) != 0 {
		t.Fatalf("expected empty store, got %v", store.Paths())
	}
	if err := store.DeleteObject(context.Background(), "a.json"); !errors.Is(err, crawler.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
