// Package theme supplies the icon palette pushed to recolorable tray icons.
//
// The palette lives in a small JSON file:
//
//	{"foreground": "#eeeeec", "warning": "#f57900", "error": "#cc0000", "success": "#4e9a06"}
//
// Missing keys keep their defaults. The file is watched and every change is
// announced on the display loop.
package theme

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/bnema/xtraybridge/internal/signal"
	"github.com/bnema/xtraybridge/internal/trayicon"
)

// Invoker runs closures on the display loop.
type Invoker interface {
	Invoke(fn func())
}

// DefaultPalette is used when no theme file exists.
func DefaultPalette() trayicon.Palette {
	return trayicon.Palette{
		Foreground: trayicon.Color{R: 0xee, G: 0xee, B: 0xec, A: 0xff},
		Warning:    trayicon.Color{R: 0xf5, G: 0x79, B: 0x00, A: 0xff},
		Error:      trayicon.Color{R: 0xcc, G: 0x00, B: 0x00, A: 0xff},
		Success:    trayicon.Color{R: 0x4e, G: 0x9a, B: 0x06, A: 0xff},
	}
}

// Load reads a palette file over the defaults. A missing file yields the
// defaults.
func Load(path string) (trayicon.Palette, error) {
	p := DefaultPalette()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return p, nil
		}
		return p, fmt.Errorf("read theme: %w", err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return DefaultPalette(), fmt.Errorf("parse theme %s: %w", path, err)
	}
	return p, nil
}

// Source is a file-backed trayicon.ThemeSource. IconPalette and Changed
// belong to the display loop.
type Source struct {
	path    string
	log     *zap.Logger
	palette trayicon.Palette
	changed *signal.Signal[trayicon.Palette]
}

func NewSource(path string, log *zap.Logger) (*Source, error) {
	p, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Source{
		path:    path,
		log:     log,
		palette: p,
		changed: signal.New[trayicon.Palette]("style-changed"),
	}, nil
}

func (s *Source) IconPalette() trayicon.Palette {
	return s.palette
}

func (s *Source) Changed() *signal.Signal[trayicon.Palette] {
	return s.changed
}

// apply stores p and announces it if it differs from the current palette.
func (s *Source) apply(p trayicon.Palette) {
	if p == s.palette {
		return
	}
	s.palette = p
	s.changed.Emit(p)
}

// Watch follows the theme file until ctx is done. The directory is watched
// rather than the file so editors that replace the file are seen.
func (s *Source) Watch(ctx context.Context, loop Invoker) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create theme watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(s.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			p, err := Load(s.path)
			if err != nil {
				s.log.Warn("reload theme", zap.Error(err))
				continue
			}
			loop.Invoke(func() { s.apply(p) })
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("theme watcher", zap.Error(err))
		}
	}
}
