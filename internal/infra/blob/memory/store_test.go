package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"orthoinfer/internal/blob/core"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	payload := "P1\tUniProt:Q1\n"
	info, err := s.Put(ctx, "orthopairs/hsap_mmus_mapping.txt", bytes.NewBufferString(payload), core.PutOptions{ContentType: "text/plain", Metadata: map[string]string{"release": "90"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(payload)) || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "orthopairs/hsap_mmus_mapping.txt", bytes.NewBufferString("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := s.Put(ctx, "orthopairs/hsap_mmus_mapping.txt", bytes.NewBufferString("P2\tUniProt:Q2\n"), core.PutOptions{Overwrite: true}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	_, rc, err := s.Get(ctx, "orthopairs/hsap_mmus_mapping.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	if string(b) != "P2\tUniProt:Q2\n" {
		t.Fatalf("unexpected body %q", b)
	}

	head, err := s.Head(ctx, "orthopairs/hsap_mmus_mapping.txt")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	head.Metadata["mutated"] = "yes"
	again, _ := s.Head(ctx, "orthopairs/hsap_mmus_mapping.txt")
	if _, leaked := again.Metadata["mutated"]; leaked {
		t.Fatalf("metadata not cloned")
	}

	if _, err := s.Put(ctx, "reports/current.txt", bytes.NewBufferString("r"), core.PutOptions{}); err != nil {
		t.Fatalf("put report: %v", err)
	}
	list, _ := s.List(ctx, "orthopairs/")
	if len(list) != 1 {
		t.Fatalf("expected 1 listed blob, got %d", len(list))
	}
	all, _ := s.List(ctx, "")
	if len(all) != 2 || all[0].Key != "orthopairs/hsap_mmus_mapping.txt" {
		t.Fatalf("unexpected listing %+v", all)
	}

	if ok, _ := s.Delete(ctx, "reports/current.txt"); !ok {
		t.Fatalf("expected delete to report existing blob")
	}
	if ok, _ := s.Delete(ctx, "reports/current.txt"); ok {
		t.Fatalf("second delete should report absent")
	}
	if _, _, err := s.Get(ctx, "reports/current.txt"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Head(ctx, "reports/current.txt"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from head, got %v", err)
	}
	if _, err := s.Put(ctx, " ", bytes.NewBufferString("x"), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}
}
