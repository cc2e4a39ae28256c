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
	xembedEmbeddedNotify = 0
	xembedVersion        = 0

	DefaultIconSize = 32
)

var errNotRealized = errors.New("surface not realized")

// SurfaceFactory builds offscreen host windows for tray clients.
type SurfaceFactory struct {
	d    *Display
	log  *zap.Logger
	size uint16
}

// NewSurfaceFactory creates hosts of size×size pixels. Clients are forced
// to that size since some report huge geometries.
func NewSurfaceFactory(d *Display, log *zap.Logger, size uint16) *SurfaceFactory {
	if size == 0 {
		size = DefaultIconSize
	}
	return &SurfaceFactory{d: d, log: log, size: size}
}

// CreateHost inspects the client window and prepares a host using the
// client's visual. Nothing is created on the server until Show.
func (f *SurfaceFactory) CreateHost(win trayicon.WindowID) (trayicon.Surface, error) {
	conn := f.d.Conn
	client := xproto.Window(win)

	attrs, err := xproto.GetWindowAttributes(conn, client).Reply()
	if err != nil {
		return nil, fmt.Errorf("get client attributes: %w", err)
	}
	geom, err := xproto.GetGeometry(conn, xproto.Drawable(client)).Reply()
	if err != nil {
		return nil, fmt.Errorf("get client geometry: %w", err)
	}
	screen, err := f.d.ScreenOfRoot(geom.Root)
	if err != nil {
		return nil, err
	}
	visual, _, ok := lookupVisual(screen, attrs.Visual)
	if !ok {
		return nil, fmt.Errorf("client visual 0x%x not found on screen", attrs.Visual)
	}

	s := &Surface{
		d:        f.d,
		log:      f.log.With(zap.Stringer("window", win)),
		client:   client,
		screen:   screen,
		visual:   visual,
		depth:    geom.Depth,
		alpha:    hasAlpha(visual, geom.Depth),
		size:     f.size,
		realized: signal.New[trayicon.Surface]("realize"),
		attached: signal.New[trayicon.Surface]("content-attached"),
	}
	s.eventsID = f.d.Events().Connect(s.handleEvent)
	return s, nil
}

// Surface is a host window with one embedded tray client.
type Surface struct {
	d   *Display
	log *zap.Logger

	client    xproto.Window
	container xproto.Window
	colormap  xproto.Colormap
	screen    *xproto.ScreenInfo
	visual    xproto.VisualInfo
	depth     byte
	alpha     bool
	size      uint16

	realized *signal.Signal[trayicon.Surface]
	attached *signal.Signal[trayicon.Surface]
	eventsID signal.HandlerID

	created    bool
	filled     bool
	hasContent bool
	mapped     bool
	destroyed  bool
}

func (s *Surface) Realized() *signal.Signal[trayicon.Surface]        { return s.realized }
func (s *Surface) ContentAttached() *signal.Signal[trayicon.Surface] { return s.attached }
func (s *Surface) HasAlpha() bool                                    { return s.alpha }

// Show creates the host window, then grafts the client into it. The host
// stays unmapped and offscreen; the client is mapped inside it.
func (s *Surface) Show() error {
	if s.created {
		return nil
	}
	if s.destroyed {
		return errors.New("surface destroyed")
	}
	conn := s.d.Conn

	container, err := xproto.NewWindowId(conn)
	if err != nil {
		return fmt.Errorf("new container id: %w", err)
	}

	// The host matches the client's visual so the client can be composited
	// by plain X subwindow handling.
	mask := uint32(xproto.CwBorderPixel | xproto.CwOverrideRedirect | xproto.CwEventMask)
	values := []uint32{0, 1, xproto.EventMaskStructureNotify | xproto.EventMaskSubstructureNotify}
	if s.visual.VisualId != s.screen.RootVisual || s.depth != s.screen.RootDepth {
		cmap, err := xproto.NewColormapId(conn)
		if err != nil {
			return fmt.Errorf("new colormap id: %w", err)
		}
		err = xproto.CreateColormapChecked(conn, xproto.ColormapAllocNone, cmap, s.screen.Root, s.visual.VisualId).Check()
		if err != nil {
			return fmt.Errorf("create colormap: %w", err)
		}
		s.colormap = cmap
		mask |= xproto.CwColormap
		values = append(values, uint32(cmap))
	}

	err = xproto.CreateWindowChecked(
		conn,
		s.depth,
		container,
		s.screen.Root,
		-10000, -10000, s.size, s.size,
		0,
		xproto.WindowClassInputOutput,
		s.visual.VisualId,
		mask,
		values,
	).Check()
	if err != nil {
		return fmt.Errorf("create container: %w", err)
	}
	s.container = container
	s.created = true

	s.realized.Emit(s)
	if s.destroyed {
		return errors.New("surface destroyed while realizing")
	}

	if err := xproto.ReparentWindowChecked(conn, s.client, container, 0, 0).Check(); err != nil {
		return fmt.Errorf("reparent icon: %w", err)
	}
	if err := xproto.ConfigureWindowChecked(conn, s.client, xproto.ConfigWindowWidth|xproto.ConfigWindowHeight, []uint32{uint32(s.size), uint32(s.size)}).Check(); err != nil {
		return fmt.Errorf("resize icon: %w", err)
	}
	// The client survives us if we crash.
	if err := xproto.ChangeSaveSetChecked(conn, xproto.SetModeInsert, s.client).Check(); err != nil {
		return fmt.Errorf("change save set: %w", err)
	}
	if s.filled {
		s.inheritBackground()
	}
	xproto.MapWindow(conn, s.client)
	s.sendEmbeddedNotify()
	return nil
}

// SetBackground fills the host with a solid color. Clients inherit it
// through a parent-relative background.
func (s *Surface) SetBackground(c trayicon.RGB) error {
	if !s.created {
		return errNotRealized
	}
	pixel := pixelFor(c, s.visual)
	if err := xproto.ChangeWindowAttributesChecked(s.d.Conn, s.container, xproto.CwBackPixel, []uint32{pixel}).Check(); err != nil {
		return fmt.Errorf("set background pixel: %w", err)
	}
	s.filled = true
	if s.hasContent {
		s.inheritBackground()
	}
	xproto.ClearArea(s.d.Conn, true, s.container, 0, 0, 0, 0)
	return nil
}

func (s *Surface) inheritBackground() {
	xproto.ChangeWindowAttributes(s.d.Conn, s.client, xproto.CwBackPixmap, []uint32{xproto.BackPixmapParentRelative})
	xproto.ClearArea(s.d.Conn, true, s.client, 0, 0, 0, 0)
}

// Destroy hands the client back to the root window and frees the host.
// Requests against a client that is already gone fail harmlessly.
func (s *Surface) Destroy() {
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.d.Events().Disconnect(s.eventsID)
	s.realized.DisconnectAll()
	s.attached.DisconnectAll()
	if !s.created {
		return
	}

	conn := s.d.Conn
	xproto.UnmapWindow(conn, s.client)
	xproto.ReparentWindow(conn, s.client, s.screen.Root, 0, 0)
	xproto.ChangeSaveSet(conn, xproto.SetModeDelete, s.client)
	xproto.DestroyWindow(conn, s.container)
	if s.colormap != 0 {
		xproto.FreeColormap(conn, s.colormap)
	}
	s.log.Debug("host surface destroyed")
}

func (s *Surface) handleEvent(ev xgb.Event) {
	e, ok := ev.(xproto.ReparentNotifyEvent)
	if !ok || !s.created {
		return
	}
	if e.Event != s.container || e.Window != s.client || e.Parent != s.container {
		return
	}
	if s.hasContent {
		return
	}
	s.hasContent = true
	s.attached.Emit(s)
}

// setMapped maps or unmaps the host so the client can be read back.
func (s *Surface) setMapped(mapped bool) {
	if s.mapped == mapped || !s.created || s.destroyed {
		return
	}
	if mapped {
		xproto.MapWindow(s.d.Conn, s.container)
	} else {
		xproto.UnmapWindow(s.d.Conn, s.container)
	}
	s.d.Conn.Sync()
	s.mapped = mapped
}

func (s *Surface) sendEmbeddedNotify() {
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: s.client,
		Type:   s.d.Atoms.XEmbed,
		Data:   embeddedNotifyData(s.container),
	}
	xproto.SendEvent(s.d.Conn, false, s.client, xproto.EventMaskNoEvent, string(ev.Bytes()))
}

func embeddedNotifyData(container xproto.Window) xproto.ClientMessageDataUnion {
	return xproto.ClientMessageDataUnionData32New([]uint32{
		uint32(xproto.TimeCurrentTime),
		xembedEmbeddedNotify,
		0,
		uint32(container),
		xembedVersion,
	})
}
