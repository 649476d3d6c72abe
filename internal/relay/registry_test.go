package relay

import (
	"testing"
	"time"
)

func TestRegistryRegisterUnregister(t *testing.T) {
	r := NewRegistry()
	s := NewSession(newStubClient(), Config{})

	if !r.Register(s) {
		t.Fatal("Register failed on fresh registry")
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}

	r.Unregister(s)
	if r.Len() != 0 {
		t.Fatalf("Len = %d, want 0", r.Len())
	}

	// a second unregister is harmless
	r.Unregister(s)
	if r.Len() != 0 {
		t.Fatalf("Len = %d after double unregister", r.Len())
	}
}

func TestRegistryDraining(t *testing.T) {
	r := NewRegistry()
	if r.IsDraining() {
		t.Fatal("fresh registry is draining")
	}

	r.StartDraining()
	if !r.IsDraining() {
		t.Fatal("IsDraining = false after StartDraining")
	}
	if r.Register(NewSession(newStubClient(), Config{})) {
		t.Fatal("Register succeeded while draining")
	}
}

func TestRegistryCloseAll(t *testing.T) {
	r := NewRegistry()
	var sessions []*Session
	for i := 0; i < 3; i++ {
		s := NewSession(newStubClient(), Config{Registry: r})
		if !r.Register(s) {
			t.Fatal("Register failed")
		}
		sessions = append(sessions, s)
	}

	r.CloseAll()

	if r.Len() != 0 {
		t.Fatalf("Len = %d after CloseAll, want 0", r.Len())
	}
	for _, s := range sessions {
		if s.State() != StateClosed {
			t.Errorf("session %s state = %v, want closed", s.ID(), s.State())
		}
	}
}

func TestRegistryWait(t *testing.T) {
	r := NewRegistry()
	s := NewSession(newStubClient(), Config{})
	r.Register(s)

	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned with a session still registered")
	case <-time.After(20 * time.Millisecond):
	}

	r.Unregister(s)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after last unregister")
	}
}

func TestRegistryForEach(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 2; i++ {
		r.Register(NewSession(newStubClient(), Config{}))
	}

	seen := 0
	r.ForEach(func(*Session) { seen++ })
	if seen != 2 {
		t.Fatalf("visited %d sessions, want 2", seen)
	}
}
