package tray

import (
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

type Atoms struct {
	TrayOpcode      xproto.Atom
	TrayColors      xproto.Atom
	TrayVisual      xproto.Atom
	TrayOrientation xproto.Atom
	Manager         xproto.Atom
	XEmbed          xproto.Atom
	XEmbedInfo      xproto.Atom
	WMName          xproto.Atom
	NetWMName       xproto.Atom
	UTF8String      xproto.Atom
}

func internAtom(conn *xgb.Conn, name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("intern atom %s: %w", name, err)
	}
	return reply.Atom, nil
}

// selectionAtom interns _NET_SYSTEM_TRAY_S<n> for a screen.
func selectionAtom(conn *xgb.Conn, screen int) (xproto.Atom, error) {
	return internAtom(conn, fmt.Sprintf("_NET_SYSTEM_TRAY_S%d", screen))
}

func InternAtoms(conn *xgb.Conn) (Atoms, error) {
	var atoms Atoms
	// Send every request before waiting on the first reply.
	names := []struct {
		name string
		dst  *xproto.Atom
	}{
		{"_NET_SYSTEM_TRAY_OPCODE", &atoms.TrayOpcode},
		{"_NET_SYSTEM_TRAY_COLORS", &atoms.TrayColors},
		{"_NET_SYSTEM_TRAY_VISUAL", &atoms.TrayVisual},
		{"_NET_SYSTEM_TRAY_ORIENTATION", &atoms.TrayOrientation},
		{"MANAGER", &atoms.Manager},
		{"_XEMBED", &atoms.XEmbed},
		{"_XEMBED_INFO", &atoms.XEmbedInfo},
		{"WM_NAME", &atoms.WMName},
		{"_NET_WM_NAME", &atoms.NetWMName},
		{"UTF8_STRING", &atoms.UTF8String},
	}
	cookies := make([]xproto.InternAtomCookie, len(names))
	for i, n := range names {
		cookies[i] = xproto.InternAtom(conn, false, uint16(len(n.name)), n.name)
	}
	for i, n := range names {
		reply, err := cookies[i].Reply()
		if err != nil {
			return Atoms{}, fmt.Errorf("intern atom %s: %w", n.name, err)
		}
		*n.dst = reply.Atom
	}
	return atoms, nil
}
