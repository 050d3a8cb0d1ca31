package session

import (
	"testing"
	"time"
)

func TestStoreSetGetClear(t *testing.T) {
	s := NewStore()
	if _, ok := s.Get("user"); ok {
		t.Fatalf("expected empty store")
	}
	s.Set("user", `{"type":"Employee","email":"a@a"}`)
	v, ok := s.Get("user")
	if !ok || v != `{"type":"Employee","email":"a@a"}` {
		t.Fatalf("unexpected value %q ok=%v", v, ok)
	}
	s.Clear()
	if _, ok := s.Get("user"); ok {
		t.Fatalf("expected cleared store")
	}
}

func TestRegistryExpiresIdleSessions(t *testing.T) {
	now := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	r := NewRegistry(time.Hour)
	r.now = func() time.Time { return now }

	id, store := r.Create()
	store.Set("user", "x")

	now = now.Add(30 * time.Minute)
	got, ok := r.Lookup(id)
	if !ok || got != store {
		t.Fatalf("expected live session")
	}

	now = now.Add(2 * time.Hour)
	if _, ok := r.Lookup(id); ok {
		t.Fatalf("expected expired session")
	}
}

func TestRegistrySweepAndDelete(t *testing.T) {
	now := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	r := NewRegistry(time.Minute)
	r.now = func() time.Time { return now }

	idle, _ := r.Create()
	now = now.Add(2 * time.Minute)
	fresh, _ := r.Create()

	if removed := r.Sweep(); removed != 1 {
		t.Fatalf("Sweep() = %d, want 1", removed)
	}
	if _, ok := r.Lookup(idle); ok {
		t.Fatalf("idle session survived sweep")
	}
	r.Delete(fresh)
	if _, ok := r.Lookup(fresh); ok {
		t.Fatalf("deleted session still present")
	}
}

func TestRegistryAliveDoesNotRefresh(t *testing.T) {
	now := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	r := NewRegistry(time.Hour)
	r.now = func() time.Time { return now }

	id, _ := r.Create()
	now = now.Add(50 * time.Minute)
	if !r.Alive(id) {
		t.Fatalf("expected session alive")
	}
	now = now.Add(20 * time.Minute)
	if r.Alive(id) {
		t.Fatalf("Alive must not extend the idle timer")
	}
}
