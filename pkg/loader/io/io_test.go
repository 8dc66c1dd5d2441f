package io

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestIOFileLoaderResolvesRootAndCaches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(path, []byte("first"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	l := NewIOFileLoader(dir)
	got, err := l.GetFile(context.Background(), "doc.pdf")
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if string(got) != "first" {
		t.Fatalf("unexpected content %q", got)
	}

	if err := os.WriteFile(path, []byte("second"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	got, err = l.GetFile(context.Background(), path)
	if err != nil {
		t.Fatalf("GetFile abs: %v", err)
	}
	if string(got) != "first" {
		t.Fatalf("expected cached content, got %q", got)
	}
}

func TestIOFileLoaderMissingFile(t *testing.T) {
	l := NewIOFileLoader(t.TempDir())
	if _, err := l.GetFile(context.Background(), "missing.pdf"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
