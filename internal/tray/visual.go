package tray

import (
	"math"
	"math/bits"

	"github.com/jezek/xgb/xproto"

	"github.com/bnema/xtraybridge/internal/trayicon"
)

// findARGBVisual returns a 32-bit TrueColor visual, the kind compositing
// tray clients draw with.
func findARGBVisual(screen *xproto.ScreenInfo) (xproto.Visualid, bool) {
	for _, depth := range screen.AllowedDepths {
		if depth.Depth != 32 {
			continue
		}
		for _, v := range depth.Visuals {
			if v.Class == xproto.VisualClassTrueColor {
				return v.VisualId, true
			}
		}
	}
	return 0, false
}

// lookupVisual finds a visual and the depth it belongs to.
func lookupVisual(screen *xproto.ScreenInfo, id xproto.Visualid) (xproto.VisualInfo, byte, bool) {
	for _, depth := range screen.AllowedDepths {
		for _, v := range depth.Visuals {
			if v.VisualId == id {
				return v, depth.Depth, true
			}
		}
	}
	return xproto.VisualInfo{}, 0, false
}

// hasAlpha reports whether a visual of the given depth leaves bits outside
// its color masks, which X uses as the alpha channel.
func hasAlpha(v xproto.VisualInfo, depth byte) bool {
	if v.Class != xproto.VisualClassTrueColor && v.Class != xproto.VisualClassDirectColor {
		return false
	}
	colorBits := bits.OnesCount32(v.RedMask | v.GreenMask | v.BlueMask)
	return int(depth) > colorBits
}

// pixelFor converts a normalized color to a pixel value of a TrueColor
// visual.
func pixelFor(c trayicon.RGB, v xproto.VisualInfo) uint32 {
	return scaleChannel(c.R, v.RedMask) | scaleChannel(c.G, v.GreenMask) | scaleChannel(c.B, v.BlueMask)
}

func scaleChannel(value float64, mask uint32) uint32 {
	if mask == 0 {
		return 0
	}
	shift := bits.TrailingZeros32(mask)
	limit := mask >> shift
	value = math.Min(math.Max(value, 0), 1)
	return uint32(math.Round(value*float64(limit))) << shift & mask
}
