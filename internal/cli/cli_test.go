package cli

import (
	"os"
	"path/filepath"
	"testing"

	"markscan/internal/codec"
)

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path string
		want codec.Format
	}{
		{"sheet.png", codec.FormatPNG},
		{"SHEET.PNG", codec.FormatPNG},
		{"out/dir/overlay.Png", codec.FormatPNG},
		{"sheet.pgm", codec.FormatPGM},
		{"sheet.txt", codec.FormatPGM},
		{"noext", codec.FormatPGM},
	}
	for _, tt := range tests {
		if got := formatForPath(tt.path); got != tt.want {
			t.Errorf("formatForPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	// Run from a directory with no markscan.toml.
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	want := defaultConfig()
	if cfg != want {
		t.Errorf("cfg = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markscan.toml")
	body := "threshold = 0.35\nscale = 2.0\noption_guides = false\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Threshold != 0.35 || cfg.Scale != 2.0 || cfg.OptionGuides {
		t.Errorf("cfg = %+v", cfg)
	}
	// Unset keys keep their defaults.
	if cfg.MaxRotationDeg != 15 {
		t.Errorf("max rotation %.1f, want default 15", cfg.MaxRotationDeg)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("missing explicit config file accepted")
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markscan.toml")
	if err := os.WriteFile(path, []byte("threshold = ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Error("malformed TOML accepted")
	}
}
