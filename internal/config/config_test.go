package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/xtraybridge/internal/trayicon"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.json")} {
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%q) = %v", path, err)
		}
		if cfg.Background != trayicon.DefaultBackground {
			t.Errorf("Background = %s, want opaque black", cfg.Background)
		}
		if len(cfg.Screens) != 1 || cfg.Screens[0] != 0 {
			t.Errorf("Screens = %v, want [0]", cfg.Screens)
		}
		if time.Duration(cfg.PollInterval) != 300*time.Millisecond {
			t.Errorf("PollInterval = %v", time.Duration(cfg.PollInterval))
		}
		if !cfg.ExportSNI {
			t.Error("ExportSNI disabled by default")
		}
	}
}

func TestLoadMerges(t *testing.T) {
	path := writeConfig(t, `{
		"screens": [0, 1],
		"background": "#202020",
		"poll_interval": "1s",
		"metrics_addr": "127.0.0.1:9464"
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Background != (trayicon.Color{R: 0x20, G: 0x20, B: 0x20, A: 0xff}) {
		t.Errorf("Background = %s", cfg.Background)
	}
	if len(cfg.Screens) != 2 {
		t.Errorf("Screens = %v", cfg.Screens)
	}
	if time.Duration(cfg.PollInterval) != time.Second {
		t.Errorf("PollInterval = %v", time.Duration(cfg.PollInterval))
	}
	if cfg.MetricsAddr != "127.0.0.1:9464" {
		t.Errorf("MetricsAddr = %q", cfg.MetricsAddr)
	}
	if cfg.IconSize != 32 {
		t.Errorf("IconSize = %d, want default 32", cfg.IconSize)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := map[string]string{
		"bad json":       `{`,
		"bad color":      `{"background": "black"}`,
		"bad duration":   `{"poll_interval": "soon"}`,
		"no screens":     `{"screens": []}`,
		"dup screen":     `{"screens": [0, 0]}`,
		"negative":       `{"screens": [-1]}`,
		"zero icon size": `{"icon_size": 0}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Error("Load() succeeded, want error")
			}
		})
	}
}
