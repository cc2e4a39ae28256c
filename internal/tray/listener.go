package tray

import (
	"errors"
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"go.uber.org/zap"

	"github.com/bnema/xtraybridge/internal/signal"
	"github.com/bnema/xtraybridge/internal/trayicon"
)

const (
	systemTrayRequestDock   = 0
	systemTrayBeginMessage  = 1
	systemTrayCancelMessage = 2

	orientationHorizontal = 0
)

var errNotManaging = errors.New("not managing any screen")

type screenState struct {
	number     int
	info       *xproto.ScreenInfo
	selection  xproto.Atom
	managerWin xproto.Window
}

// Listener owns the system tray selection of one or more screens and
// reports docking clients.
type Listener struct {
	d   *Display
	log *zap.Logger

	screens   []*screenState
	clients   map[xproto.Window]*screenState
	requested *signal.Signal[trayicon.WindowID]
	withdrawn *signal.Signal[trayicon.WindowID]
	eventsID  signal.HandlerID
}

func NewListener(d *Display, log *zap.Logger) *Listener {
	l := &Listener{
		d:         d,
		log:       log,
		clients:   make(map[xproto.Window]*screenState),
		requested: signal.New[trayicon.WindowID]("icon-requested"),
		withdrawn: signal.New[trayicon.WindowID]("icon-withdrawn"),
	}
	l.eventsID = d.Events().Connect(l.handleEvent)
	return l
}

func (l *Listener) IconRequested() *signal.Signal[trayicon.WindowID] { return l.requested }
func (l *Listener) IconWithdrawn() *signal.Signal[trayicon.WindowID] { return l.withdrawn }

// Manage acquires _NET_SYSTEM_TRAY_S<n> and announces it with a MANAGER
// client message on the root window.
func (l *Listener) Manage(screen trayicon.Screen) error {
	conn := l.d.Conn
	info, err := l.d.Screen(screen.Number)
	if err != nil {
		return err
	}
	selection, err := selectionAtom(conn, screen.Number)
	if err != nil {
		return err
	}

	ownerReply, err := xproto.GetSelectionOwner(conn, selection).Reply()
	if err != nil {
		return fmt.Errorf("get selection owner: %w", err)
	}
	if ownerReply.Owner != xproto.WindowNone {
		return fmt.Errorf("system tray already owned by window 0x%x", ownerReply.Owner)
	}

	managerWin, err := xproto.NewWindowId(conn)
	if err != nil {
		return fmt.Errorf("new window id: %w", err)
	}
	err = xproto.CreateWindowChecked(
		conn,
		0,
		managerWin,
		info.Root,
		-1, -1, 1, 1,
		0,
		xproto.WindowClassInputOnly,
		info.RootVisual,
		xproto.CwOverrideRedirect|xproto.CwEventMask,
		[]uint32{1, xproto.EventMaskStructureNotify | xproto.EventMaskPropertyChange},
	).Check()
	if err != nil {
		return fmt.Errorf("create manager window: %w", err)
	}

	s := &screenState{
		number:     screen.Number,
		info:       info,
		selection:  selection,
		managerWin: managerWin,
	}
	l.setManagerProperties(s)

	if err := xproto.SetSelectionOwnerChecked(conn, managerWin, selection, xproto.TimeCurrentTime).Check(); err != nil {
		xproto.DestroyWindow(conn, managerWin)
		return fmt.Errorf("set selection owner: %w", err)
	}
	if err := broadcastManager(conn, info.Root, l.d.Atoms.Manager, selection, managerWin); err != nil {
		xproto.DestroyWindow(conn, managerWin)
		return err
	}

	l.screens = append(l.screens, s)
	l.log.Info("acquired system tray selection",
		zap.Int("screen", screen.Number),
		zap.Uint32("manager_window", uint32(managerWin)),
	)
	return nil
}

// setManagerProperties advertises orientation and the preferred visual so
// clients can pick an ARGB visual when one exists.
func (l *Listener) setManagerProperties(s *screenState) {
	atoms := l.d.Atoms
	visual := s.info.RootVisual
	if argb, ok := findARGBVisual(s.info); ok {
		visual = argb
	}
	setCardinals(l.d.Conn, s.managerWin, atoms.TrayVisual, xproto.AtomVisualid, uint32(visual))
	setCardinals(l.d.Conn, s.managerWin, atoms.TrayOrientation, xproto.AtomCardinal, orientationHorizontal)
}

// SetColors publishes _NET_SYSTEM_TRAY_COLORS on every managed screen.
func (l *Listener) SetColors(p trayicon.Palette) error {
	if len(l.screens) == 0 {
		return errNotManaging
	}
	values := colorValues(p)
	for _, s := range l.screens {
		setCardinals(l.d.Conn, s.managerWin, l.d.Atoms.TrayColors, xproto.AtomCardinal, values...)
	}
	return nil
}

// Close releases every selection. Embedded clients are not withdrawn here;
// the owner of the registry tears those down.
func (l *Listener) Close() error {
	l.d.Events().Disconnect(l.eventsID)
	var errs []error
	for _, s := range l.screens {
		if err := xproto.DestroyWindowChecked(l.d.Conn, s.managerWin).Check(); err != nil {
			errs = append(errs, fmt.Errorf("destroy manager window of screen %d: %w", s.number, err))
		}
	}
	l.screens = nil
	clear(l.clients)
	return errors.Join(errs...)
}

func (l *Listener) screenByManager(win xproto.Window) *screenState {
	for _, s := range l.screens {
		if s.managerWin == win {
			return s
		}
	}
	return nil
}

func (l *Listener) handleEvent(ev xgb.Event) {
	switch e := ev.(type) {
	case xproto.ClientMessageEvent:
		l.handleClientMessage(e)
	case xproto.DestroyNotifyEvent:
		if _, ok := l.clients[e.Window]; ok {
			l.withdraw(e.Window)
		}
	case xproto.ReparentNotifyEvent:
		l.handleReparent(e)
	case xproto.SelectionClearEvent:
		l.handleSelectionClear(e)
	}
}

func (l *Listener) handleClientMessage(ev xproto.ClientMessageEvent) {
	if ev.Type != l.d.Atoms.TrayOpcode || ev.Format != 32 {
		return
	}
	s := l.screenByManager(ev.Window)
	if s == nil {
		return
	}
	data := ev.Data.Data32
	if len(data) < 3 {
		return
	}
	switch data[1] {
	case systemTrayRequestDock:
		l.requestDock(s, xproto.Window(data[2]))
	case systemTrayBeginMessage, systemTrayCancelMessage:
		// Balloon messages are not bridged.
	}
}

func (l *Listener) requestDock(s *screenState, win xproto.Window) {
	log := l.log.With(zap.Stringer("window", trayicon.WindowID(win)))
	if _, ok := l.clients[win]; ok {
		log.Debug("ignoring repeated dock request")
		return
	}
	if _, err := xproto.GetWindowAttributes(l.d.Conn, win).Reply(); err != nil {
		log.Debug("ignoring dock request for invalid window", zap.Error(err))
		return
	}
	err := xproto.ChangeWindowAttributesChecked(l.d.Conn, win, xproto.CwEventMask,
		[]uint32{xproto.EventMaskStructureNotify | xproto.EventMaskPropertyChange}).Check()
	if err != nil {
		log.Debug("select client events", zap.Error(err))
		return
	}

	l.clients[win] = s
	l.requested.Emit(trayicon.WindowID(win))
}

// handleReparent withdraws a client that left its host for the root
// window, either by undocking itself or because the host went away.
func (l *Listener) handleReparent(ev xproto.ReparentNotifyEvent) {
	if ev.Event != ev.Window {
		return
	}
	s, ok := l.clients[ev.Window]
	if !ok || ev.Parent != s.info.Root {
		return
	}
	l.withdraw(ev.Window)
}

func (l *Listener) handleSelectionClear(ev xproto.SelectionClearEvent) {
	s := l.screenByManager(ev.Owner)
	if s == nil || ev.Selection != s.selection {
		return
	}
	l.log.Warn("lost system tray selection", zap.Int("screen", s.number))
	for win, owner := range l.clients {
		if owner == s {
			l.withdraw(win)
		}
	}
	for i, other := range l.screens {
		if other == s {
			l.screens = append(l.screens[:i], l.screens[i+1:]...)
			break
		}
	}
}

// Forget stops tracking a client without reporting a withdrawal.
func (l *Listener) Forget(win trayicon.WindowID) {
	delete(l.clients, xproto.Window(win))
}

func (l *Listener) withdraw(win xproto.Window) {
	delete(l.clients, win)
	l.withdrawn.Emit(trayicon.WindowID(win))
}

func broadcastManager(conn *xgb.Conn, root xproto.Window, managerAtom xproto.Atom, trayAtom xproto.Atom, managerWin xproto.Window) error {
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: root,
		Type:   managerAtom,
		Data: xproto.ClientMessageDataUnionData32New([]uint32{
			uint32(xproto.TimeCurrentTime),
			uint32(trayAtom),
			uint32(managerWin),
			0,
			0,
		}),
	}
	return xproto.SendEventChecked(conn, false, root, xproto.EventMaskStructureNotify, string(ev.Bytes())).Check()
}

func setCardinals(conn *xgb.Conn, win xproto.Window, prop, typ xproto.Atom, values ...uint32) {
	data := make([]byte, len(values)*4)
	for i, v := range values {
		xgb.Put32(data[i*4:], v)
	}
	xproto.ChangeProperty(conn, xproto.PropModeReplace, win, prop, typ, 32, uint32(len(values)), data)
}

// colorValues lays out a palette the way _NET_SYSTEM_TRAY_COLORS expects:
// foreground, error, warning, success, each as 16-bit red, green, blue.
func colorValues(p trayicon.Palette) []uint32 {
	values := make([]uint32, 0, 12)
	for _, c := range []trayicon.Color{p.Foreground, p.Error, p.Warning, p.Success} {
		r, g, b := c.Color16()
		values = append(values, uint32(r), uint32(g), uint32(b))
	}
	return values
}
