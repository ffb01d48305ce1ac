package memory

import (
	"context"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.SetItem(ctx, "b", "2"); err != nil {
		t.Fatalf("SetItem() error = %v", err)
	}
	if err := s.SetItem(ctx, "a", "1"); err != nil {
		t.Fatalf("SetItem() error = %v", err)
	}
	if v, ok, _ := s.GetItem(ctx, "a"); !ok || v != "1" {
		t.Fatalf("GetItem() = %q, %v", v, ok)
	}
	keys, _ := s.Keys(ctx)
	if len(keys) != 2 || keys[0] != "a" {
		t.Fatalf("unexpected keys %v", keys)
	}
	_ = s.RemoveItem(ctx, "a")
	if _, ok, _ := s.GetItem(ctx, "a"); ok {
		t.Fatal("expected key removed")
	}
}

func TestStoreSetItems(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.SetItem(ctx, "tasks", "[]")
	if err := s.SetItems(ctx, map[string]string{"tasks": "[1]", "boards": "{}"}); err != nil {
		t.Fatalf("SetItems() error = %v", err)
	}
	if v, _, _ := s.GetItem(ctx, "tasks"); v != "[1]" {
		t.Fatalf("expected tasks overwritten, got %q", v)
	}
	if v, ok, _ := s.GetItem(ctx, "boards"); !ok || v != "{}" {
		t.Fatalf("expected boards written, got %q %v", v, ok)
	}
}
