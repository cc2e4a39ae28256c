package trayicon

import (
	"encoding/json"
	"testing"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want Color
	}{
		{"#000", Color{0, 0, 0, 0xff}},
		{"#336699", Color{0x33, 0x66, 0x99, 0xff}},
		{"#33669980", Color{0x33, 0x66, 0x99, 0x80}},
		{" fff ", Color{0xff, 0xff, 0xff, 0xff}},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if err != nil {
			t.Errorf("ParseColor(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "#12", "#12345", "#gggggg", "#-12345"} {
		if _, err := ParseColor(bad); err == nil {
			t.Errorf("ParseColor(%q) succeeded, want error", bad)
		}
	}
}

func TestColorConversions(t *testing.T) {
	c := Color{R: 0xff, G: 0x80, B: 0x00, A: 0xff}

	rgb := c.RGB()
	if rgb.R != 1 || rgb.B != 0 || rgb.G != 128./255. {
		t.Errorf("RGB() = %+v", rgb)
	}

	r, g, b := c.Color16()
	if r != 0xffff || g != 0x8080 || b != 0 {
		t.Errorf("Color16() = %04x %04x %04x", r, g, b)
	}
}

func TestPaletteJSON(t *testing.T) {
	var p Palette
	err := json.Unmarshal([]byte(`{"foreground":"#eeeeec","warning":"#f57900","error":"#cc0000","success":"#4e9a06"}`), &p)
	if err != nil {
		t.Fatalf("Unmarshal() = %v", err)
	}
	if p.Warning != (Color{0xf5, 0x79, 0x00, 0xff}) {
		t.Errorf("Warning = %v", p.Warning)
	}
	if p.Foreground.String() != "#eeeeecff" {
		t.Errorf("Foreground = %s", p.Foreground)
	}
}
