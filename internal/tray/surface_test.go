package tray

import (
	"testing"

	"github.com/jezek/xgb/xproto"
	"go.uber.org/zap"

	"github.com/bnema/xtraybridge/internal/signal"
	"github.com/bnema/xtraybridge/internal/trayicon"
)

const (
	testClient    = xproto.Window(0x400001)
	testContainer = xproto.Window(0x600001)
)

func newTestSurface(d *Display) *Surface {
	s := &Surface{
		d:         d,
		log:       zap.NewNop(),
		client:    testClient,
		container: testContainer,
		screen:    testScreen(),
		created:   true,
		realized:  signal.New[trayicon.Surface]("realize"),
		attached:  signal.New[trayicon.Surface]("content-attached"),
	}
	s.eventsID = d.Events().Connect(s.handleEvent)
	return s
}

func TestSurfaceContentAttached(t *testing.T) {
	d := newTestDisplay()
	s := newTestSurface(d)
	attached := 0
	s.ContentAttached().Connect(func(trayicon.Surface) { attached++ })

	ignored := []xproto.ReparentNotifyEvent{
		// The client's own StructureNotify copy.
		{Event: testClient, Window: testClient, Parent: testContainer},
		// Another client moving into some other host.
		{Event: testContainer, Window: 0x400002, Parent: testContainer},
		// The client leaving the host.
		{Event: testContainer, Window: testClient, Parent: 0x1},
	}
	for _, ev := range ignored {
		d.Events().Emit(ev)
	}
	d.Events().Emit(xproto.DestroyNotifyEvent{Event: testContainer, Window: testClient})
	if attached != 0 || s.hasContent {
		t.Fatalf("content attached on unrelated events (%d)", attached)
	}

	into := xproto.ReparentNotifyEvent{Event: testContainer, Window: testClient, Parent: testContainer}
	d.Events().Emit(into)
	if attached != 1 || !s.hasContent {
		t.Fatalf("attached = %d, want 1", attached)
	}

	d.Events().Emit(into)
	if attached != 1 {
		t.Errorf("attached = %d after a second reparent, want 1", attached)
	}
}

func TestSurfaceIgnoresEventsBeforeShow(t *testing.T) {
	d := newTestDisplay()
	s := newTestSurface(d)
	s.created = false
	attached := 0
	s.ContentAttached().Connect(func(trayicon.Surface) { attached++ })

	d.Events().Emit(xproto.ReparentNotifyEvent{Event: testContainer, Window: testClient, Parent: testContainer})
	if attached != 0 {
		t.Errorf("attached = %d before the host exists", attached)
	}
}

func TestSurfaceDestroyBeforeShow(t *testing.T) {
	d := newTestDisplay()
	s := newTestSurface(d)
	s.created = false
	s.ContentAttached().Connect(func(trayicon.Surface) {})

	s.Destroy()
	s.Destroy()
	if d.Events().Len() != 0 {
		t.Errorf("surface still subscribed to %d event handlers", d.Events().Len())
	}
	if s.ContentAttached().Len() != 0 {
		t.Error("content-attached handlers survived Destroy")
	}
	if err := s.Show(); err == nil {
		t.Error("Show() after Destroy succeeded")
	}
}
