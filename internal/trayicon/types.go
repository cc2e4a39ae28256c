// Package trayicon embeds foreign tray icon windows and reports them to the
// rest of the process once the client has attached content.
//
// The package does not talk to a display server. Everything platform
// specific sits behind Listener, SurfaceFactory and ActorFactory, so the
// lifecycle in Manager can run against fakes.
package trayicon

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bnema/xtraybridge/internal/signal"
)

// WindowID is the identity of a foreign client window. It is unique while
// the window lives and only reused after a withdrawal.
type WindowID uint32

func (w WindowID) String() string {
	return fmt.Sprintf("0x%x", uint32(w))
}

// Color is an 8-bit RGBA color.
type Color struct {
	R, G, B, A uint8
}

// DefaultBackground is opaque black.
var DefaultBackground = Color{0x00, 0x00, 0x00, 0xff}

// RGB is a color with channels normalized to [0,1].
type RGB struct {
	R, G, B float64
}

// RGB returns the color channels normalized to [0,1]. Alpha is dropped.
func (c Color) RGB() RGB {
	return RGB{
		R: float64(c.R) / 255.,
		G: float64(c.G) / 255.,
		B: float64(c.B) / 255.,
	}
}

// Color16 returns the channels widened to 16 bits, the precision X11 color
// properties use.
func (c Color) Color16() (r, g, b uint16) {
	return uint16(c.R) * 0x101, uint16(c.G) * 0x101, uint16(c.B) * 0x101
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// ParseColor accepts #rgb, #rrggbb and #rrggbbaa. Missing alpha means opaque.
func ParseColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return Color{}, fmt.Errorf("parse color %q: want #rgb, #rrggbb or #rrggbbaa", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	return Color{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Palette holds the icon colors of the active theme.
type Palette struct {
	Foreground Color `json:"foreground"`
	Warning    Color `json:"warning"`
	Error      Color `json:"error"`
	Success    Color `json:"success"`
}

// Screen names the screen a Listener binds to.
type Screen struct {
	Number int
}

// Listener discovers tray clients on a screen.
type Listener interface {
	// Manage binds the listener to a screen.
	Manage(screen Screen) error
	IconRequested() *signal.Signal[WindowID]
	IconWithdrawn() *signal.Signal[WindowID]
	// SetColors pushes the recolor palette to clients that support it.
	SetColors(p Palette) error
	// Forget drops a window the manager gave up on, so a later request
	// from the same client is reported again.
	Forget(win WindowID)
	Close() error
}

// Surface is a host window a foreign client window is grafted into.
type Surface interface {
	// Realized fires once, when the surface becomes drawable.
	Realized() *signal.Signal[Surface]
	// ContentAttached fires when the client has attached content. It fires
	// at most once per surface in a correct backend.
	ContentAttached() *signal.Signal[Surface]
	// HasAlpha reports whether the client visual carries native alpha.
	HasAlpha() bool
	// SetBackground fills the surface with a solid color.
	SetBackground(c RGB) error
	// Show maps and realizes the surface.
	Show() error
	Destroy()
}

// SurfaceFactory creates host surfaces for foreign windows.
type SurfaceFactory interface {
	CreateHost(win WindowID) (Surface, error)
}

// Actor is the renderable handle handed out with IconAdded. The receiver
// may keep it until IconRemoved; Release is called by the manager after
// that.
type Actor interface {
	ID() WindowID
	Release()
}

// ActorFactory builds actors from surfaces with attached content.
type ActorFactory interface {
	CreateActor(s Surface) (Actor, error)
}

// ThemeSource supplies the icon palette and announces changes.
type ThemeSource interface {
	IconPalette() Palette
	Changed() *signal.Signal[Palette]
}
