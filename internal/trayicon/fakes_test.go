package trayicon

import (
	"errors"

	"github.com/bnema/xtraybridge/internal/signal"
)

type fakeListener struct {
	requested *signal.Signal[WindowID]
	withdrawn *signal.Signal[WindowID]
	screens   []Screen
	colors    []Palette
	colorErr  error
	forgotten []WindowID
	closed    bool
}

func newFakeListener() *fakeListener {
	return &fakeListener{
		requested: signal.New[WindowID]("icon-requested"),
		withdrawn: signal.New[WindowID]("icon-withdrawn"),
	}
}

func (l *fakeListener) Manage(s Screen) error {
	l.screens = append(l.screens, s)
	return nil
}

func (l *fakeListener) IconRequested() *signal.Signal[WindowID] { return l.requested }
func (l *fakeListener) IconWithdrawn() *signal.Signal[WindowID] { return l.withdrawn }

func (l *fakeListener) SetColors(p Palette) error {
	if l.colorErr != nil {
		return l.colorErr
	}
	l.colors = append(l.colors, p)
	return nil
}

func (l *fakeListener) Forget(win WindowID) {
	l.forgotten = append(l.forgotten, win)
}

func (l *fakeListener) Close() error {
	l.closed = true
	return nil
}

func (l *fakeListener) request(win WindowID)  { l.requested.Emit(win) }
func (l *fakeListener) withdraw(win WindowID) { l.withdrawn.Emit(win) }

type fakeSurface struct {
	win        WindowID
	realized   *signal.Signal[Surface]
	attached   *signal.Signal[Surface]
	alpha      bool
	background []RGB
	showErr    error
	shown      bool
	hasContent bool
	destroyed  bool
}

func (s *fakeSurface) Realized() *signal.Signal[Surface]        { return s.realized }
func (s *fakeSurface) ContentAttached() *signal.Signal[Surface] { return s.attached }
func (s *fakeSurface) HasAlpha() bool                           { return s.alpha }

func (s *fakeSurface) SetBackground(c RGB) error {
	s.background = append(s.background, c)
	return nil
}

func (s *fakeSurface) Show() error {
	if s.showErr != nil {
		return s.showErr
	}
	if !s.shown {
		s.shown = true
		s.realized.Emit(s)
	}
	return nil
}

func (s *fakeSurface) Destroy() { s.destroyed = true }

// attach simulates the client drawing into the surface.
func (s *fakeSurface) attach() {
	s.hasContent = true
	s.attached.Emit(s)
}

type fakeSurfaces struct {
	alpha    map[WindowID]bool
	fail     map[WindowID]bool
	showErr  error
	surfaces map[WindowID]*fakeSurface
	created  int
}

func newFakeSurfaces() *fakeSurfaces {
	return &fakeSurfaces{
		alpha:    make(map[WindowID]bool),
		fail:     make(map[WindowID]bool),
		surfaces: make(map[WindowID]*fakeSurface),
	}
}

func (f *fakeSurfaces) CreateHost(win WindowID) (Surface, error) {
	if f.fail[win] {
		return nil, errors.New("no resources")
	}
	f.created++
	s := &fakeSurface{
		win:      win,
		realized: signal.New[Surface]("realize"),
		attached: signal.New[Surface]("content-attached"),
		alpha:    f.alpha[win],
		showErr:  f.showErr,
	}
	f.surfaces[win] = s
	return s, nil
}

type fakeActor struct {
	win      WindowID
	serial   int
	released bool
}

func (a *fakeActor) ID() WindowID { return a.win }
func (a *fakeActor) Release()     { a.released = true }

type fakeActors struct {
	fail   map[WindowID]bool
	serial int
}

func newFakeActors() *fakeActors {
	return &fakeActors{fail: make(map[WindowID]bool)}
}

func (f *fakeActors) CreateActor(s Surface) (Actor, error) {
	fs := s.(*fakeSurface)
	if !fs.hasContent {
		return nil, errors.New("surface has no content")
	}
	if f.fail[fs.win] {
		return nil, errors.New("actor creation failed")
	}
	f.serial++
	return &fakeActor{win: fs.win, serial: f.serial}, nil
}

type fakeTheme struct {
	palette Palette
	changed *signal.Signal[Palette]
}

func newFakeTheme(p Palette) *fakeTheme {
	return &fakeTheme{palette: p, changed: signal.New[Palette]("changed")}
}

func (t *fakeTheme) IconPalette() Palette             { return t.palette }
func (t *fakeTheme) Changed() *signal.Signal[Palette] { return t.changed }

func (t *fakeTheme) set(p Palette) {
	t.palette = p
	t.changed.Emit(p)
}

type countingRecorder struct {
	requested, added, removed int
	dropped                   map[string]int
	live                      int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{dropped: make(map[string]int)}
}

func (r *countingRecorder) Requested()            { r.requested++ }
func (r *countingRecorder) Added()                { r.added++ }
func (r *countingRecorder) Removed()              { r.removed++ }
func (r *countingRecorder) Dropped(reason string) { r.dropped[reason]++ }
func (r *countingRecorder) Live(n int)            { r.live = n }
