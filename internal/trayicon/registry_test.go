package trayicon

import (
	"errors"
	"testing"
)

func TestRegistryInsertDuplicate(t *testing.T) {
	r := NewRegistry()
	f := newFakeSurfaces()
	s1, _ := f.CreateHost(1)
	s2, _ := f.CreateHost(1)

	if _, err := r.Insert(1, s1); err != nil {
		t.Fatalf("Insert() = %v", err)
	}
	_, err := r.Insert(1, s2)
	if !errors.Is(err, ErrDuplicateWindow) {
		t.Fatalf("second Insert() = %v, want ErrDuplicateWindow", err)
	}
	e, _ := r.Lookup(1)
	if e.Surface != s1 {
		t.Error("duplicate insert overwrote the entry")
	}
}

func TestRegistryMarkContentAttached(t *testing.T) {
	r := NewRegistry()
	surfaces := newFakeSurfaces()
	actors := newFakeActors()

	if _, err := r.MarkContentAttached(1, actors); !errors.Is(err, ErrUnknownWindow) {
		t.Errorf("attach unknown = %v, want ErrUnknownWindow", err)
	}

	s, _ := surfaces.CreateHost(1)
	if _, err := r.Insert(1, s); err != nil {
		t.Fatal(err)
	}
	if _, err := r.MarkContentAttached(1, actors); err == nil {
		t.Error("attach without content succeeded")
	}
	if e, _ := r.Lookup(1); e.Attached() {
		t.Error("failed attach stored an actor")
	}

	s.(*fakeSurface).hasContent = true
	e, err := r.MarkContentAttached(1, actors)
	if err != nil {
		t.Fatalf("MarkContentAttached() = %v", err)
	}
	if !e.Attached() || e.Actor.ID() != 1 {
		t.Errorf("entry actor = %v", e.Actor)
	}
	if _, err := r.MarkContentAttached(1, actors); !errors.Is(err, ErrAlreadyAttached) {
		t.Errorf("second attach = %v, want ErrAlreadyAttached", err)
	}
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	surfaces := newFakeSurfaces()

	if _, err := r.Remove(1); !errors.Is(err, ErrUnknownWindow) {
		t.Errorf("Remove unknown = %v, want ErrUnknownWindow", err)
	}

	s, _ := surfaces.CreateHost(1)
	fs := s.(*fakeSurface)
	e, _ := r.Insert(1, s)
	e.attachedID = fs.attached.Connect(func(Surface) {})

	actor, err := r.Remove(1)
	if err != nil {
		t.Fatalf("Remove() = %v", err)
	}
	if actor != nil {
		t.Errorf("Remove() actor = %v, want nil", actor)
	}
	if !fs.destroyed {
		t.Error("surface not destroyed")
	}
	if fs.attached.Len() != 0 {
		t.Error("subscription not released")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}

	// The identity may be reused after removal.
	s2, _ := surfaces.CreateHost(1)
	if _, err := r.Insert(1, s2); err != nil {
		t.Errorf("reinsert after remove = %v", err)
	}
}

func TestRegistryRefreshBackgrounds(t *testing.T) {
	r := NewRegistry()
	surfaces := newFakeSurfaces()
	for win := WindowID(1); win <= 3; win++ {
		s, _ := surfaces.CreateHost(win)
		if _, err := r.Insert(win, s); err != nil {
			t.Fatal(err)
		}
	}

	fill := Color{R: 0xff, A: 0xff}.RGB()
	r.RefreshBackgrounds(func(e *Entry) {
		_ = e.Surface.SetBackground(fill)
	})

	for win, s := range surfaces.surfaces {
		if len(s.background) != 1 || s.background[0] != fill {
			t.Errorf("window %s background = %v", win, s.background)
		}
	}
	if got := len(r.Windows()); got != 3 {
		t.Errorf("Windows() = %d entries, want 3", got)
	}
}
