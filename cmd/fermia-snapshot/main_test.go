package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zachmartin/fermia-camera/internal/store"
)

func TestSnapshotWritesFile(t *testing.T) {
	ctx := context.Background()
	feed := store.NewFeed(store.NewMemoryStore())
	jpg := []byte{0xff, 0xd8, 0x00, 0x10, 0xff, 0xd9}
	if err := feed.PutColor(ctx, jpg); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "frame.jpg")
	if err := snapshot(ctx, feed, out); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(jpg) {
		t.Fatalf("file = %x", got)
	}
}

func TestSnapshotEmptyStore(t *testing.T) {
	feed := store.NewFeed(store.NewMemoryStore())
	if err := snapshot(context.Background(), feed, ""); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}
