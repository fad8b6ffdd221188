package catalog

import (
	"context"
	"errors"
	"testing"
)

func TestMemStoreInsertEnforcesUniqueness(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if err := s.Insert(ctx, testAnime(1, "first")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := s.Insert(ctx, testAnime(1, "second"))
	if !errors.Is(err, ErrAnimeExists) {
		t.Fatalf("want ErrAnimeExists, got %v", err)
	}

	a, ok, err := s.Get(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if a.Title != "first" {
		t.Errorf("first write must win, got %q", a.Title)
	}
}

func TestMemStoreGetMany(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	for id := int64(1); id <= 3; id++ {
		if err := s.Insert(ctx, testAnime(id, "a")); err != nil {
			t.Fatalf("insert %d: %v", id, err)
		}
	}

	got, err := s.GetMany(ctx, []int64{1, 3, 99})
	if err != nil {
		t.Fatalf("getmany: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if _, ok := got[99]; ok {
		t.Error("missing id must not appear in the result")
	}
}
