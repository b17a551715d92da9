package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFindConfig_Explicit(t *testing.T) {
	path := writeConfig(t, "listen:\n  port: 9999\n")

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	if _, err := FindConfig("/nonexistent/config.yaml"); err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestLoad_DefaultsFilled(t *testing.T) {
	cfg, err := Load(writeConfig(t, "listen:\n  port: 9090\n"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Listen.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Listen.Port)
	}
	if cfg.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("model = %q, want default", cfg.OpenAI.Model)
	}
	if cfg.Places.DefaultRadiusKm != 40 {
		t.Errorf("default radius = %d, want 40", cfg.Places.DefaultRadiusKm)
	}
	if cfg.Rental.GasPricePerGallon != 3.5 {
		t.Errorf("gas price = %v, want 3.5", cfg.Rental.GasPricePerGallon)
	}
	if cfg.Rental.Capacity["15-passenger van"] != 15 {
		t.Errorf("capacity table not defaulted: %v", cfg.Rental.Capacity)
	}
}

func TestLoad_ExpandsHomeInDataDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(writeConfig(t, "data_dir: ~/clubplanner\n"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if want := filepath.Join(home, "clubplanner"); cfg.DataDir != want {
		t.Errorf("data_dir = %q, want %q", cfg.DataDir, want)
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("PLANNER_TEST_KEY", "sk-test-123")
	cfg, err := Load(writeConfig(t, "openai:\n  api_key: ${PLANNER_TEST_KEY}\n"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.OpenAI.APIKey != "sk-test-123" {
		t.Errorf("api_key = %q, want sk-test-123", cfg.OpenAI.APIKey)
	}
	if !cfg.OpenAI.Configured() {
		t.Error("Configured() = false with key set")
	}
}

func TestLoad_LimitsZeroDisables(t *testing.T) {
	cfg, err := Load(writeConfig(t, "limits:\n  max_messages_per_event: 0\n  daily_token_cap: 0\n"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Limits.MaxMessagesPerEvent != 0 || cfg.Limits.DailyTokenCap != 0 {
		t.Errorf("limits = %+v, want both zero", cfg.Limits)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"negative cap", "limits:\n  daily_token_cap: -5\n", "daily_token_cap"},
		{"bad level", "log_level: loud\n", "unknown log level"},
		{"bad format", "log_format: xml\n", "log_format"},
		{"bad rating", "places:\n  min_rating: 7\n", "min_rating"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("Load should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"TRACE", LevelTrace},
		{" debug ", slog.LevelDebug},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLogLevel(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger_TraceName(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "trace"
	var buf bytes.Buffer
	logger, err := cfg.NewLogger(&buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Log(t.Context(), LevelTrace, "wire")
	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("log output %q missing level=TRACE", buf.String())
	}
}
