package trayicon

import (
	"errors"
	"fmt"

	"github.com/bnema/xtraybridge/internal/signal"
)

var (
	ErrDuplicateWindow = errors.New("window already registered")
	ErrUnknownWindow   = errors.New("window not registered")
	ErrAlreadyAttached = errors.New("content already attached")
)

// Entry is the embedding state of one foreign window.
type Entry struct {
	Window  WindowID
	Surface Surface
	// Actor is nil until the client attaches content.
	Actor Actor

	realizeID  signal.HandlerID
	attachedID signal.HandlerID
}

// Attached reports whether the entry has a render actor.
func (e *Entry) Attached() bool {
	return e.Actor != nil
}

// Registry maps foreign windows to their entries. It is owned by one
// Manager and not safe for concurrent use.
type Registry struct {
	entries map[WindowID]*Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[WindowID]*Entry)}
}

// Insert stores a new entry for win with the given host surface.
func (r *Registry) Insert(win WindowID, surface Surface) (*Entry, error) {
	if _, ok := r.entries[win]; ok {
		return nil, fmt.Errorf("insert %s: %w", win, ErrDuplicateWindow)
	}
	e := &Entry{Window: win, Surface: surface}
	r.entries[win] = e
	return e, nil
}

// MarkContentAttached builds the actor for win from its surface.
func (r *Registry) MarkContentAttached(win WindowID, factory ActorFactory) (*Entry, error) {
	e, ok := r.entries[win]
	if !ok {
		return nil, fmt.Errorf("attach %s: %w", win, ErrUnknownWindow)
	}
	if e.Actor != nil {
		return nil, fmt.Errorf("attach %s: %w", win, ErrAlreadyAttached)
	}
	actor, err := factory.CreateActor(e.Surface)
	if err != nil {
		return nil, fmt.Errorf("create actor for %s: %w", win, err)
	}
	e.Actor = actor
	return e, nil
}

// Remove drops the entry for win, releasing its subscriptions and
// destroying its surface. It returns the actor if one was ever created.
func (r *Registry) Remove(win WindowID) (Actor, error) {
	e, ok := r.entries[win]
	if !ok {
		return nil, fmt.Errorf("remove %s: %w", win, ErrUnknownWindow)
	}
	delete(r.entries, win)

	if e.realizeID != 0 {
		e.Surface.Realized().Disconnect(e.realizeID)
	}
	if e.attachedID != 0 {
		e.Surface.ContentAttached().Disconnect(e.attachedID)
	}
	e.Surface.Destroy()
	return e.Actor, nil
}

func (r *Registry) Lookup(win WindowID) (*Entry, bool) {
	e, ok := r.entries[win]
	return e, ok
}

func (r *Registry) Len() int {
	return len(r.entries)
}

// Windows returns the registered windows in no particular order.
func (r *Registry) Windows() []WindowID {
	wins := make([]WindowID, 0, len(r.entries))
	for win := range r.entries {
		wins = append(wins, win)
	}
	return wins
}

// RefreshBackgrounds calls fn for every live entry. Changing the background
// color after icons are embedded has to go through here so no surface keeps
// the old fill.
func (r *Registry) RefreshBackgrounds(fn func(*Entry)) {
	for _, e := range r.entries {
		fn(e)
	}
}
