package proxy

import (
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bnema/xtraybridge/internal/sni"
	"github.com/bnema/xtraybridge/internal/tray"
)

const (
	DefaultPollInterval = 300 * time.Millisecond
)

// Invoker runs closures on the display loop.
type Invoker interface {
	Invoke(fn func())
}

// Source is an embedded tray icon.
type Source interface {
	Capture() (width uint16, height uint16, data []byte, err error)
	Click(button uint8, rootX, rootY int32) error
}

// Item is the exported side of the bridge.
type Item interface {
	SetHandler(handler sni.ActionHandler)
	UpdateIcon(pixmaps []sni.Pixmap)
	Close()
}

// Proxy mirrors one embedded icon into one SNI item: pixels flow out,
// activations flow back in. Everything touching the icon runs on the
// display loop.
type Proxy struct {
	loop     Invoker
	icon     Source
	item     Item
	log      *zap.Logger
	interval time.Duration

	lastHash uint32
	done     chan struct{}
	once     sync.Once
}

func New(loop Invoker, icon Source, item Item, log *zap.Logger, interval time.Duration) *Proxy {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	p := &Proxy{
		loop:     loop,
		icon:     icon,
		item:     item,
		log:      log,
		interval: interval,
		done:     make(chan struct{}),
	}
	item.SetHandler(p)
	go p.pollIcon()
	return p
}

// Close stops polling and withdraws the item. Closures already queued on
// the loop become no-ops.
func (p *Proxy) Close() {
	p.once.Do(func() {
		close(p.done)
		p.item.Close()
	})
}

func (p *Proxy) closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *Proxy) Activate(x, y int32) {
	p.sendClick(tray.ButtonPrimary, x, y)
}

func (p *Proxy) SecondaryActivate(x, y int32) {
	p.sendClick(tray.ButtonMiddle, x, y)
}

func (p *Proxy) ContextMenu(x, y int32) {
	p.sendClick(tray.ButtonSecondary, x, y)
}

func (p *Proxy) Scroll(delta int32, orientation string) {
	p.sendClick(scrollButton(delta, orientation), 0, 0)
}

func scrollButton(delta int32, orientation string) uint8 {
	if orientation == "horizontal" {
		if delta < 0 {
			return tray.ButtonScrollL
		}
		return tray.ButtonScrollR
	}
	if delta < 0 {
		return tray.ButtonScrollDn
	}
	return tray.ButtonScrollUp
}

func (p *Proxy) sendClick(button uint8, x, y int32) {
	p.loop.Invoke(func() {
		if p.closed() {
			return
		}
		if err := p.icon.Click(button, x, y); err != nil {
			p.log.Debug("forward click", zap.Uint8("button", button), zap.Error(err))
		}
	})
}

func (p *Proxy) pollIcon() {
	p.loop.Invoke(p.refresh)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.loop.Invoke(p.refresh)
		}
	}
}

// refresh captures the icon and publishes it when the pixels changed.
func (p *Proxy) refresh() {
	if p.closed() {
		return
	}
	width, height, data, err := p.icon.Capture()
	if err != nil || len(data) == 0 {
		return
	}
	h := hashBytes(data)
	if h == p.lastHash {
		return
	}
	p.lastHash = h
	p.item.UpdateIcon([]sni.Pixmap{{Width: int32(width), Height: int32(height), Data: data}})
}

func hashBytes(data []byte) uint32 {
	h := fnv.New32a()
	_, _ = h.Write(data)
	return h.Sum32()
}
