package main

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/bnema/xtraybridge/internal/proxy"
	"github.com/bnema/xtraybridge/internal/sni"
	"github.com/bnema/xtraybridge/internal/tray"
	"github.com/bnema/xtraybridge/internal/trayicon"
)

// bridge re-exports every added tray icon as a StatusNotifierItem, each on
// its own session bus connection. Its handlers run on the display loop.
type bridge struct {
	loop     proxy.Invoker
	log      *zap.Logger
	interval time.Duration

	proxies map[trayicon.WindowID]*proxy.Proxy
	counter int
}

func newBridge(loop proxy.Invoker, log *zap.Logger, interval time.Duration) *bridge {
	return &bridge{
		loop:     loop,
		log:      log,
		interval: interval,
		proxies:  make(map[trayicon.WindowID]*proxy.Proxy),
	}
}

func (b *bridge) iconAdded(actor trayicon.Actor) {
	icon, ok := actor.(*tray.Icon)
	if !ok {
		b.log.Warn("unexpected actor type", zap.String("type", fmt.Sprintf("%T", actor)))
		return
	}
	log := b.log.With(zap.Stringer("window", icon.ID()))

	b.counter++
	title := icon.Title()
	service := fmt.Sprintf("org.kde.StatusNotifierItem-%d-%d", os.Getpid(), b.counter)
	props := sni.Properties{
		Category:   "ApplicationStatus",
		ID:         fmt.Sprintf("xtraybridge-%d", icon.Window),
		Title:      title,
		Status:     "Active",
		WindowID:   uint32(icon.Window),
		ItemIsMenu: false,
	}

	item, err := sni.Dial(service, props, nil)
	if err != nil {
		log.Warn("create SNI item", zap.Error(err))
		return
	}
	b.proxies[icon.ID()] = proxy.New(b.loop, icon, item, log, b.interval)
	log.Info("registered SNI item", zap.String("title", title), zap.String("service", service))
}

func (b *bridge) iconRemoved(actor trayicon.Actor) {
	p, ok := b.proxies[actor.ID()]
	if !ok {
		return
	}
	p.Close()
	delete(b.proxies, actor.ID())
	b.log.Info("unregistered SNI item", zap.Stringer("window", actor.ID()))
}
