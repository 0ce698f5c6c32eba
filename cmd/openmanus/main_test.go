// ABOUTME: Tests for flag parsing, config file layering, and the dotenv loader.
package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.addr != "127.0.0.1:5172" {
		t.Errorf("unexpected default addr %q", cfg.addr)
	}
	if cfg.heartbeatInterval != 5*time.Second || cfg.retryDelay != 2*time.Second || cfg.maxRetries != 3 {
		t.Errorf("unexpected stream defaults %v %v %d", cfg.heartbeatInterval, cfg.retryDelay, cfg.maxRetries)
	}
	if cfg.serve || cfg.demo || cfg.watchTaskID != "" || cfg.newPrompt != "" {
		t.Error("expected no mode flags set by default")
	}
}

func TestParseFlagsModes(t *testing.T) {
	cfg, err := parseFlags([]string{"-watch", "abc", "-server-url", "http://example:9"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.watchTaskID != "abc" || cfg.serverURL != "http://example:9" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if !cfg.flagsSet["watch"] || !cfg.flagsSet["server-url"] {
		t.Error("expected explicit flags recorded in flagsSet")
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	if _, err := loadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"), false); err != nil {
		t.Errorf("implicit missing config should not error: %v", err)
	}
	if _, err := loadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"), true); err == nil {
		t.Error("explicit missing config should error")
	}
}

func TestApplyFileConfigRespectsFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "addr: 0.0.0.0:9999\nlog_level: debug\nheartbeat_interval: 10s\nmax_retries: 7\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	fc, err := loadConfigFile(path, true)
	if err != nil {
		t.Fatalf("loadConfigFile: %v", err)
	}

	cfg := config{addr: "127.0.0.1:5172", logLevel: "info"}
	// addr was set explicitly on the command line; log_level was not.
	if err := applyFileConfig(&cfg, fc, map[string]bool{"addr": true}); err != nil {
		t.Fatalf("applyFileConfig: %v", err)
	}

	if cfg.addr != "127.0.0.1:5172" {
		t.Errorf("explicit flag should win, got addr %q", cfg.addr)
	}
	if cfg.logLevel != "debug" {
		t.Errorf("file value should apply, got log level %q", cfg.logLevel)
	}
	if cfg.heartbeatInterval != 10*time.Second || cfg.maxRetries != 7 {
		t.Errorf("stream settings not applied: %v %d", cfg.heartbeatInterval, cfg.maxRetries)
	}
}

func TestApplyFileConfigRejectsBadDuration(t *testing.T) {
	cfg := config{}
	err := applyFileConfig(&cfg, fileConfig{HeartbeatInterval: "sideways"}, nil)
	if err == nil {
		t.Error("expected an error for an unparseable duration")
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nOPENMANUS_TEST_A=plain\nexport OPENMANUS_TEST_B=\"quoted\"\nOPENMANUS_TEST_C='single'\nbroken line\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing .env: %v", err)
	}

	t.Setenv("OPENMANUS_TEST_A", "already-set")
	os.Unsetenv("OPENMANUS_TEST_B")
	os.Unsetenv("OPENMANUS_TEST_C")
	t.Cleanup(func() {
		os.Unsetenv("OPENMANUS_TEST_B")
		os.Unsetenv("OPENMANUS_TEST_C")
	})

	loadDotEnv(path)

	if got := os.Getenv("OPENMANUS_TEST_A"); got != "already-set" {
		t.Errorf("existing env clobbered: %q", got)
	}
	if got := os.Getenv("OPENMANUS_TEST_B"); got != "quoted" {
		t.Errorf("expected quoted value, got %q", got)
	}
	if got := os.Getenv("OPENMANUS_TEST_C"); got != "single" {
		t.Errorf("expected single-quoted value, got %q", got)
	}
}

func TestParseEnvLine(t *testing.T) {
	tests := []struct {
		raw       string
		key, want string
		ok        bool
	}{
		{"KEY=value", "KEY", "value", true},
		{"  KEY = value ", "KEY", "value", true},
		{"export KEY=value", "KEY", "value", true},
		{`KEY="a=b"`, "KEY", "a=b", true},
		{"KEY='spaced out'", "KEY", "spaced out", true},
		{`KEY="mismatched'`, "KEY", `"mismatched'`, true},
		{"KEY=", "KEY", "", true},
		{"# comment", "", "", false},
		{"", "", "", false},
		{"no equals here", "", "", false},
		{"=orphan", "", "", false},
	}
	for _, tt := range tests {
		key, value, ok := parseEnvLine(tt.raw)
		if ok != tt.ok || key != tt.key || value != tt.want {
			t.Errorf("parseEnvLine(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.raw, key, value, ok, tt.key, tt.want, tt.ok)
		}
	}
}

func TestDefaultDataDirXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	dir, err := defaultDataDir()
	if err != nil {
		t.Fatalf("defaultDataDir: %v", err)
	}
	if dir != filepath.Join("/tmp/xdg-data", "openmanus") {
		t.Errorf("unexpected dir %q", dir)
	}
}
