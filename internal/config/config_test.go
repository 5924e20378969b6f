package config

import (
	"flag"
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backyardflyer.yaml")
	if err := ioutil.WriteFile(path, []byte(text), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(ioutil.Discard)
	return fs
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(newFlagSet(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg != Default() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if cfg.Host != "127.0.0.1" || cfg.Port != 5760 || cfg.LogFile != "NavLog.txt" || cfg.StartDelay != 2*time.Second {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestLoadKeepsMissingKeys(t *testing.T) {
	path := writeConfig(t, "port: 14550\nsettle_delay: 250ms\nmqtt_broker: tcp://localhost:1883\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 14550 || cfg.SettleDelay != 250*time.Millisecond || cfg.MQTTBroker != "tcp://localhost:1883" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Host != "127.0.0.1" || cfg.StallTimeout != 30*time.Second {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected an error for a missing file")
	}
	if _, err := Load(writeConfig(t, "port: [1, 2]\n")); err == nil {
		t.Errorf("expected an error for a malformed file")
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "host: 10.0.0.2\nport: 14550\nstall_timeout: 1m\n")

	cfg, err := Parse(newFlagSet(), []string{"-config", path, "-port", "5762", "-stall_timeout", "0"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Host != "10.0.0.2" {
		t.Errorf("file host lost, got %s", cfg.Host)
	}
	if cfg.Port != 5762 {
		t.Errorf("expected flag port 5762, got %d", cfg.Port)
	}
	if cfg.StallTimeout != 0 {
		t.Errorf("expected stall timeout disabled, got %v", cfg.StallTimeout)
	}
}

func TestParseBadFlag(t *testing.T) {
	if _, err := Parse(newFlagSet(), []string{"-port", "many"}); err == nil {
		t.Errorf("expected a parse error")
	}
}
