package core_test

import (
	"context"
	"errors"
	"testing"

	"orthoinfer/internal/blob/core"
	"orthoinfer/internal/infra/blob/memory"
)

func TestAppendLineCreatesThenAppends(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	if err := core.AppendLine(ctx, store, "reports/r1.txt", "first"); err != nil {
		t.Fatalf("append first: %v", err)
	}
	if err := core.AppendLine(ctx, store, "reports/r1.txt", "second"); err != nil {
		t.Fatalf("append second: %v", err)
	}
	b, err := core.ReadAll(ctx, store, "reports/r1.txt")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "first\nsecond\n" {
		t.Fatalf("unexpected content %q", b)
	}
}

func TestReadAllMissing(t *testing.T) {
	if _, err := core.ReadAll(context.Background(), memory.New(), "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
