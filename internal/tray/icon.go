package tray

import (
	"errors"
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	"github.com/bnema/xtraybridge/internal/trayicon"
)

// Mouse buttons forwarded to clients.
const (
	ButtonPrimary   = 1
	ButtonMiddle    = 2
	ButtonSecondary = 3
	ButtonScrollUp  = 4
	ButtonScrollDn  = 5
	ButtonScrollL   = 6
	ButtonScrollR   = 7
)

var errReleased = errors.New("icon released")

// ActorFactory turns hosts with attached content into Icons.
type ActorFactory struct{}

func (ActorFactory) CreateActor(s trayicon.Surface) (trayicon.Actor, error) {
	host, ok := s.(*Surface)
	if !ok {
		return nil, fmt.Errorf("unsupported surface %T", s)
	}
	if !host.hasContent || host.destroyed {
		return nil, errors.New("surface has no attached content")
	}
	return &Icon{host: host, Window: host.client}, nil
}

// Icon is the handle of an embedded client. Its methods must run on the
// display loop.
type Icon struct {
	Window   xproto.Window
	host     *Surface
	released bool
}

// ID returns the identity of the client window.
func (i *Icon) ID() trayicon.WindowID {
	return trayicon.WindowID(i.Window)
}

func (i *Icon) Release() {
	i.released = true
}

func (i *Icon) conn() *xgb.Conn {
	return i.host.d.Conn
}

func (i *Icon) Title() string {
	atoms := i.host.d.Atoms
	if title, err := getProperty(i.conn(), i.Window, atoms.NetWMName, atoms.UTF8String); err == nil && title != "" {
		return title
	}
	if title, err := getProperty(i.conn(), i.Window, atoms.WMName, xproto.AtomString); err == nil && title != "" {
		return title
	}
	return fmt.Sprintf("xembed-%d", i.Window)
}

// Capture reads the client pixels back as ARGB32 in network byte order.
func (i *Icon) Capture() (width uint16, height uint16, data []byte, err error) {
	if i.released {
		return 0, 0, nil, errReleased
	}
	// The host is only mapped while reading.
	i.host.setMapped(true)
	defer i.host.setMapped(false)

	geom, err := xproto.GetGeometry(i.conn(), xproto.Drawable(i.Window)).Reply()
	if err != nil {
		return 0, 0, nil, fmt.Errorf("get geometry: %w", err)
	}
	width, height = geom.Width, geom.Height

	img, err := xproto.GetImage(i.conn(), xproto.ImageFormatZPixmap, xproto.Drawable(i.Window), 0, 0, width, height, 0xffffffff).Reply()
	if err != nil {
		return 0, 0, nil, fmt.Errorf("get image: %w", err)
	}
	data, err = toARGB(img.Data, int(width), int(height), i.host.alpha)
	if err != nil {
		return 0, 0, nil, err
	}
	return width, height, data, nil
}

// Click sends a synthetic press and release of button at the client's
// center. rootX and rootY carry the pointer position reported by the
// panel.
func (i *Icon) Click(button uint8, rootX, rootY int32) error {
	if i.released {
		return errReleased
	}
	// Clients ignore input while unmapped.
	i.host.setMapped(true)
	defer i.host.setMapped(false)

	eventX, eventY := int16(0), int16(0)
	if geom, err := xproto.GetGeometry(i.conn(), xproto.Drawable(i.Window)).Reply(); err == nil {
		eventX = int16(geom.Width / 2)
		eventY = int16(geom.Height / 2)
	}

	press := xproto.ButtonPressEvent{
		Detail:     xproto.Button(button),
		Time:       xproto.TimeCurrentTime,
		Root:       i.host.screen.Root,
		Event:      i.Window,
		RootX:      int16(rootX),
		RootY:      int16(rootY),
		EventX:     eventX,
		EventY:     eventY,
		SameScreen: true,
	}
	release := xproto.ButtonReleaseEvent(press)

	xproto.SendEvent(i.conn(), false, i.Window, xproto.EventMaskButtonPress, string(press.Bytes()))
	xproto.SendEvent(i.conn(), false, i.Window, xproto.EventMaskButtonRelease, string(release.Bytes()))
	// jezek/xgb flushes requests asynchronously; Sync forces them out.
	i.conn().Sync()
	return nil
}

func getProperty(conn *xgb.Conn, win xproto.Window, atom, typ xproto.Atom) (string, error) {
	reply, err := xproto.GetProperty(conn, false, win, atom, typ, 0, (1<<32)-1).Reply()
	if err != nil {
		return "", err
	}
	if reply == nil || len(reply.Value) == 0 {
		return "", nil
	}
	return string(reply.Value), nil
}

// toARGB converts 32 bits per pixel little-endian BGRX/BGRA image data to
// big-endian ARGB. Opaque visuals get a solid alpha channel.
func toARGB(data []byte, width, height int, alpha bool) ([]byte, error) {
	if len(data) != width*height*4 {
		return nil, fmt.Errorf("unexpected image size %d for %dx%d at 32bpp", len(data), width, height)
	}
	out := make([]byte, len(data))
	for p := 0; p < len(data); p += 4 {
		b, g, r, a := data[p], data[p+1], data[p+2], data[p+3]
		if !alpha {
			a = 0xff
		}
		out[p], out[p+1], out[p+2], out[p+3] = a, r, g, b
	}
	return out, nil
}
