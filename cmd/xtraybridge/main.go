package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bnema/xtraybridge/internal/config"
	"github.com/bnema/xtraybridge/internal/metrics"
	"github.com/bnema/xtraybridge/internal/sni"
	"github.com/bnema/xtraybridge/internal/theme"
	"github.com/bnema/xtraybridge/internal/tray"
	"github.com/bnema/xtraybridge/internal/trayicon"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "xtraybridge: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", config.DefaultPath(), "path to the JSON config file")
	bg := flag.String("bg", "", "background color for icons without alpha (#rrggbb)")
	themeFile := flag.String("theme", "", "path to the icon palette file")
	metricsAddr := flag.String("metrics", "", "serve Prometheus metrics on this address")
	screen := flag.Int("screen", -1, "manage only this screen")
	debug := flag.Bool("debug", false, "verbose logging, fail loudly on internal errors")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *bg != "" {
		if cfg.Background, err = trayicon.ParseColor(*bg); err != nil {
			return err
		}
	}
	if *themeFile != "" {
		cfg.ThemeFile = *themeFile
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *screen >= 0 {
		cfg.Screens = []int{*screen}
	}
	cfg.Debug = cfg.Debug || *debug

	log, err := newLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	display, err := tray.Open(log.Named("x11"))
	if err != nil {
		return err
	}
	defer display.Close()

	opts := []trayicon.Option{
		trayicon.WithBackground(cfg.Background),
		trayicon.WithLogger(log.Named("tray")),
	}
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, trayicon.WithRecorder(metrics.New(reg)))
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, reg, log); err != nil {
				log.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	listener := tray.NewListener(display, log.Named("listener"))
	surfaces := tray.NewSurfaceFactory(display, log.Named("surface"), cfg.IconSize)
	manager := trayicon.New(listener, surfaces, tray.ActorFactory{}, opts...)

	if cfg.ExportSNI {
		bus, err := dbus.ConnectSessionBus()
		if err != nil {
			return fmt.Errorf("dbus session bus: %w", err)
		}
		if !sni.WatcherAvailable(bus) {
			log.Warn("no StatusNotifierWatcher on the session bus; items will not be shown until one appears")
		}
		bus.Close()
		b := newBridge(display, log.Named("sni"), time.Duration(cfg.PollInterval))
		manager.OnIconAdded(b.iconAdded)
		manager.OnIconRemoved(b.iconRemoved)
	}

	palette, err := theme.NewSource(cfg.ThemeFile, log.Named("theme"))
	if err != nil {
		log.Warn("using default icon palette", zap.Error(err))
		palette, _ = theme.NewSource("", log.Named("theme"))
	}
	for _, n := range cfg.Screens {
		if err := manager.Manage(trayicon.Screen{Number: n}, palette); err != nil {
			return err
		}
	}
	go func() {
		if err := palette.Watch(ctx, display); err != nil {
			log.Warn("theme watcher stopped", zap.Error(err))
		}
	}()

	log.Info("waiting for tray icons",
		zap.Ints("screens", cfg.Screens),
		zap.Stringer("background", manager.Background()),
	)

	// Tear down on the loop so withdrawals still reach the X server.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	go func() {
		<-ctx.Done()
		display.Invoke(func() {
			log.Info("shutting down", zap.Int("icons", manager.Len()))
			if err := manager.Close(); err != nil {
				log.Warn("close tray manager", zap.Error(err))
			}
			stopLoop()
		})
	}()

	if err := display.Run(loopCtx); err != nil && loopCtx.Err() == nil {
		return err
	}
	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
