package tray

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"go.uber.org/zap"

	"github.com/bnema/xtraybridge/internal/signal"
)

var errConnClosed = errors.New("x11 connection closed")

// Display owns the X connection and the control loop. X events and closures
// passed to Invoke are dispatched one at a time on the goroutine running
// Run, which is the only goroutine allowed to touch the tray manager.
type Display struct {
	Conn  *xgb.Conn
	Atoms Atoms

	log    *zap.Logger
	events *signal.Signal[xgb.Event]

	mu      sync.Mutex
	pending []func()
	wake    chan struct{}

	closeOnce sync.Once
}

// Open connects to the X server named by $DISPLAY.
func Open(log *zap.Logger) (*Display, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("connect X11: %w", err)
	}

	atoms, err := InternAtoms(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Display{
		Conn:   conn,
		Atoms:  atoms,
		log:    log,
		events: signal.New[xgb.Event]("x11-event"),
		wake:   make(chan struct{}, 1),
	}, nil
}

// Screen returns the setup information of screen n.
func (d *Display) Screen(n int) (*xproto.ScreenInfo, error) {
	setup := xproto.Setup(d.Conn)
	if n < 0 || n >= len(setup.Roots) {
		return nil, fmt.Errorf("screen %d out of range (have %d)", n, len(setup.Roots))
	}
	return &setup.Roots[n], nil
}

// ScreenOfRoot finds the screen whose root window is root.
func (d *Display) ScreenOfRoot(root xproto.Window) (*xproto.ScreenInfo, error) {
	setup := xproto.Setup(d.Conn)
	for i := range setup.Roots {
		if setup.Roots[i].Root == root {
			return &setup.Roots[i], nil
		}
	}
	return nil, fmt.Errorf("no screen with root 0x%x", root)
}

// Events is raised for every X event on the loop goroutine.
func (d *Display) Events() *signal.Signal[xgb.Event] {
	return d.events
}

// Invoke schedules fn on the loop goroutine. It never blocks and may be
// called from any goroutine, including the loop itself.
func (d *Display) Invoke(fn func()) {
	d.mu.Lock()
	d.pending = append(d.pending, fn)
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Display) runPending() {
	d.mu.Lock()
	calls := d.pending
	d.pending = nil
	d.mu.Unlock()
	for _, fn := range calls {
		fn()
	}
}

// Run dispatches events until ctx is cancelled or the connection drops.
func (d *Display) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		d.Close()
	}()

	events := make(chan xgb.Event, 64)
	done := make(chan error, 1)
	go func() {
		for {
			ev, err := d.Conn.WaitForEvent()
			if ev == nil && err == nil {
				done <- errConnClosed
				return
			}
			if err != nil {
				// Unchecked requests against windows that went away end up
				// here; they are expected while clients disconnect.
				d.log.Debug("x11 request failed", zap.Error(err))
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case ev := <-events:
			d.events.Emit(ev)
		case <-d.wake:
			d.runPending()
		case err := <-done:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("wait for event: %w", err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close drops the connection. It may be called more than once.
func (d *Display) Close() {
	d.closeOnce.Do(d.Conn.Close)
}
