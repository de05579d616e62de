package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Organizer != "antonia" {
		t.Fatalf("default organizer %q", cfg.Organizer)
	}
}

func TestGenerateDefaultRoundTrips(t *testing.T) {
	cfg, err := FromYAML([]byte(GenerateDefault("birthday bash")))
	if err != nil {
		t.Fatalf("parse generated config: %v", err)
	}
	if cfg.Party.Name != "birthday bash" {
		t.Fatalf("party name %q", cfg.Party.Name)
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"no party name", "organizer: antonia\n", "party.name"},
		{"no organizer", "party:\n  name: x\n", "organizer"},
		{"webhook without url", "party:\n  name: x\norganizer: a\nwebhooks:\n  - secret: s\n", "webhooks[0].url"},
		{"negative timeout", "party:\n  name: x\norganizer: a\nwebhooks:\n  - url: http://h\n    timeout_seconds: -1\n", "timeout_seconds"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromYAML([]byte(tc.yaml))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("got %v, want error mentioning %q", err, tc.want)
			}
		})
	}
}

func TestNormalizedOrganizer(t *testing.T) {
	cfg := &Config{Organizer: "  Antonia "}
	if got := cfg.NormalizedOrganizer(); got != "antonia" {
		t.Fatalf("got %q", got)
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.Organizer != "antonia" {
		t.Fatalf("fallback organizer %q", cfg.Organizer)
	}

	path := filepath.Join(dir, "mottoparty.yml")
	if err := os.WriteFile(path, []byte("party:\n  name: nye\norganizer: Mara\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err = LoadOptional(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Party.Name != "nye" || cfg.NormalizedOrganizer() != "mara" {
		t.Fatalf("loaded config: %+v", cfg)
	}
}
