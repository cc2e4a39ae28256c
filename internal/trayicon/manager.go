package trayicon

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bnema/xtraybridge/internal/signal"
)

// Recorder receives lifecycle counts. internal/metrics provides the
// Prometheus implementation.
type Recorder interface {
	Requested()
	Added()
	Removed()
	Dropped(reason string)
	Live(n int)
}

type nopRecorder struct{}

func (nopRecorder) Requested()     {}
func (nopRecorder) Added()         {}
func (nopRecorder) Removed()       {}
func (nopRecorder) Dropped(string) {}
func (nopRecorder) Live(int)       {}

// Drop reasons reported to the Recorder.
const (
	DropSurfaceFailed = "surface"
	DropShowFailed    = "show"
	DropActorFailed   = "actor"
	DropDuplicate     = "duplicate"
)

type Option func(*Manager)

// WithBackground sets the fill used for icons without native alpha.
func WithBackground(c Color) Option {
	return func(m *Manager) { m.background = c }
}

func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) { m.log = log }
}

func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.metrics = r }
}

type themeBinding struct {
	source ThemeSource
	id     signal.HandlerID
}

// Manager drives the embedding lifecycle of tray icons. All methods and all
// collaborator callbacks must run on the same goroutine.
type Manager struct {
	log        *zap.Logger
	background Color
	metrics    Recorder

	listener Listener
	surfaces SurfaceFactory
	actors   ActorFactory
	registry *Registry

	iconAdded   *signal.Signal[Actor]
	iconRemoved *signal.Signal[Actor]

	requestedID signal.HandlerID
	withdrawnID signal.HandlerID
	themes      []themeBinding
	closed      bool
}

// New creates a manager and subscribes it to the listener. The background
// color is fixed for the lifetime of the manager.
func New(listener Listener, surfaces SurfaceFactory, actors ActorFactory, opts ...Option) *Manager {
	m := &Manager{
		log:         zap.NewNop(),
		background:  DefaultBackground,
		metrics:     nopRecorder{},
		listener:    listener,
		surfaces:    surfaces,
		actors:      actors,
		registry:    NewRegistry(),
		iconAdded:   signal.New[Actor]("tray-icon-added"),
		iconRemoved: signal.New[Actor]("tray-icon-removed"),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.requestedID = listener.IconRequested().Connect(m.handleRequested)
	m.withdrawnID = listener.IconWithdrawn().Connect(m.handleWithdrawn)
	return m
}

// Background returns the fill color used for icons without alpha.
func (m *Manager) Background() Color {
	return m.background
}

// OnIconAdded registers fn to receive every icon whose client attached
// content. Ownership of the actor is shared with the manager until the
// matching IconRemoved.
func (m *Manager) OnIconAdded(fn func(Actor)) signal.HandlerID {
	return m.iconAdded.Connect(fn)
}

// OnIconRemoved registers fn to receive every previously added icon right
// before its actor is released.
func (m *Manager) OnIconRemoved(fn func(Actor)) signal.HandlerID {
	return m.iconRemoved.Connect(fn)
}

func (m *Manager) DisconnectIconAdded(id signal.HandlerID) bool {
	return m.iconAdded.Disconnect(id)
}

func (m *Manager) DisconnectIconRemoved(id signal.HandlerID) bool {
	return m.iconRemoved.Disconnect(id)
}

// Len returns the number of icons being embedded or embedded.
func (m *Manager) Len() int {
	return m.registry.Len()
}

// Manage binds the listener to screen and keeps the recolor palette in sync
// with theme. It is meant to be called once per screen.
func (m *Manager) Manage(screen Screen, theme ThemeSource) error {
	if err := m.listener.Manage(screen); err != nil {
		return fmt.Errorf("manage screen %d: %w", screen.Number, err)
	}
	if theme == nil {
		return nil
	}
	if !m.subscribed(theme) {
		id := theme.Changed().Connect(m.pushColors)
		m.themes = append(m.themes, themeBinding{source: theme, id: id})
	}
	m.RefreshColors(theme)
	return nil
}

// subscribed reports whether theme changes already reach pushColors. One
// push covers every managed screen.
func (m *Manager) subscribed(theme ThemeSource) bool {
	for _, b := range m.themes {
		if b.source == theme {
			return true
		}
	}
	return false
}

// RefreshColors pushes the current palette of theme to the listener.
func (m *Manager) RefreshColors(theme ThemeSource) {
	m.pushColors(theme.IconPalette())
}

func (m *Manager) pushColors(p Palette) {
	if err := m.listener.SetColors(p); err != nil {
		m.log.Warn("push tray icon colors", zap.Error(err))
		return
	}
	m.log.Debug("pushed tray icon colors",
		zap.Stringer("foreground", p.Foreground),
		zap.Stringer("warning", p.Warning),
		zap.Stringer("error", p.Error),
		zap.Stringer("success", p.Success),
	)
}

// Close withdraws every remaining icon, emitting IconRemoved where owed,
// and closes the listener.
func (m *Manager) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true

	for _, win := range m.registry.Windows() {
		m.handleWithdrawn(win)
	}
	m.listener.IconRequested().Disconnect(m.requestedID)
	m.listener.IconWithdrawn().Disconnect(m.withdrawnID)
	for _, b := range m.themes {
		b.source.Changed().Disconnect(b.id)
	}
	m.themes = nil
	return m.listener.Close()
}

func (m *Manager) handleRequested(win WindowID) {
	log := m.log.With(zap.Stringer("window", win))
	m.metrics.Requested()

	if _, ok := m.registry.Lookup(win); ok {
		// The listener promised unique IDs until withdrawal.
		log.DPanic("tray icon requested while already registered")
		m.metrics.Dropped(DropDuplicate)
		return
	}

	surface, err := m.surfaces.CreateHost(win)
	if err != nil {
		log.Warn("create host surface", zap.Error(err))
		m.listener.Forget(win)
		m.metrics.Dropped(DropSurfaceFailed)
		return
	}

	entry, err := m.registry.Insert(win, surface)
	if err != nil {
		log.DPanic("register tray icon", zap.Error(err))
		surface.Destroy()
		m.metrics.Dropped(DropDuplicate)
		return
	}

	var realizeID signal.HandlerID
	realizeID = surface.Realized().Connect(func(s Surface) {
		s.Realized().Disconnect(realizeID)
		m.applyBackground(win, s)
	})
	var attachedID signal.HandlerID
	attachedID = surface.ContentAttached().Connect(func(s Surface) {
		s.ContentAttached().Disconnect(attachedID)
		m.handleContentAttached(win)
	})
	entry.realizeID = realizeID
	entry.attachedID = attachedID

	if err := surface.Show(); err != nil {
		log.Warn("show host surface", zap.Error(err))
		// Show may have raced with a withdrawal triggered from inside it.
		if _, ok := m.registry.Lookup(win); ok {
			_, _ = m.registry.Remove(win)
		}
		m.listener.Forget(win)
		m.metrics.Dropped(DropShowFailed)
		m.metrics.Live(m.registry.Len())
		return
	}

	log.Debug("tray icon requested")
	m.metrics.Live(m.registry.Len())
}

// applyBackground fills surfaces whose client has no alpha channel. The
// client window inherits the fill through its parent-relative background.
func (m *Manager) applyBackground(win WindowID, s Surface) {
	if s.HasAlpha() {
		return
	}
	if err := s.SetBackground(m.background.RGB()); err != nil {
		m.log.Warn("set host background", zap.Stringer("window", win), zap.Error(err))
	}
}

func (m *Manager) handleContentAttached(win WindowID) {
	log := m.log.With(zap.Stringer("window", win))

	entry, err := m.registry.MarkContentAttached(win, m.actors)
	switch {
	case errors.Is(err, ErrUnknownWindow), errors.Is(err, ErrAlreadyAttached):
		log.Warn("ignoring content attachment", zap.Error(err))
		return
	case err != nil:
		log.Warn("tray icon dropped", zap.Error(err))
		_, _ = m.registry.Remove(win)
		m.listener.Forget(win)
		m.metrics.Dropped(DropActorFailed)
		m.metrics.Live(m.registry.Len())
		return
	}

	log.Info("tray icon added")
	m.metrics.Added()
	m.iconAdded.Emit(entry.Actor)
}

func (m *Manager) handleWithdrawn(win WindowID) {
	log := m.log.With(zap.Stringer("window", win))

	actor, err := m.registry.Remove(win)
	if err != nil {
		log.Warn("ignoring withdrawal", zap.Error(err))
		return
	}
	m.metrics.Live(m.registry.Len())

	if actor == nil {
		log.Debug("tray icon withdrawn before content attached")
		return
	}
	log.Info("tray icon removed")
	m.metrics.Removed()
	m.iconRemoved.Emit(actor)
	actor.Release()
}
