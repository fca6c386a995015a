package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, hash, err := LoadConfigWithHash(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Output.MaxOutputLength != 2000 {
		t.Errorf("expected default max_output_length, got %d", cfg.Output.MaxOutputLength)
	}
	if !strings.HasPrefix(hash, "sha256:") {
		t.Errorf("expected sha256 hash, got %q", hash)
	}
}

func TestLoadConfigOverridesOnlySpecifiedFields(t *testing.T) {
	path := writeConfig(t, `
command:
  deviation_threshold: 10m
  known_actors: [user, system]
storage:
  driver: sqlite
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Command.DeviationThreshold != 10*time.Minute {
		t.Errorf("expected 10m threshold, got %s", cfg.Command.DeviationThreshold)
	}
	if len(cfg.Command.KnownActors) != 2 {
		t.Errorf("expected 2 actors, got %v", cfg.Command.KnownActors)
	}
	if cfg.Command.PastTolerance != 30*time.Second {
		t.Errorf("expected default past tolerance to survive, got %s", cfg.Command.PastTolerance)
	}
	if cfg.Rules.LearnedLimit != 200 {
		t.Errorf("expected default learned limit, got %d", cfg.Rules.LearnedLimit)
	}
	if !strings.HasSuffix(cfg.StoragePath(), "askiguard.db") {
		t.Errorf("expected sqlite default path, got %s", cfg.StoragePath())
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeConfig(t, "output: [unclosed")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"driver":    "storage:\n  driver: postgres\n",
		"negative":  "output:\n  max_output_length: -1\n",
		"levels":    "command:\n  risk_levels:\n    medium_min: 40\n    high_min: 30\n",
		"timezone":  "command:\n  timezone: Mars/Olympus\n",
		"alert_url": "alerts:\n  - url: not-a-url\n    events: [block]\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, content)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadConfigHashChangesWithContent(t *testing.T) {
	_, h1, err := LoadConfigWithHash(writeConfig(t, "audit_log: /tmp/a.jsonl\n"))
	if err != nil {
		t.Fatal(err)
	}
	_, h2, err := LoadConfigWithHash(writeConfig(t, "audit_log: /tmp/b.jsonl\n"))
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Error("expected different hashes for different content")
	}
}

func TestLocation(t *testing.T) {
	c := DefaultConfig().Command
	loc, err := c.Location()
	if err != nil || loc != time.Local {
		t.Fatalf("expected time.Local, got %v (%v)", loc, err)
	}
	c.Timezone = "Europe/Moscow"
	loc, err = c.Location()
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	if loc.String() != "Europe/Moscow" {
		t.Errorf("expected Europe/Moscow, got %s", loc)
	}
}
