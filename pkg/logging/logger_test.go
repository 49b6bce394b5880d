package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("default level = %s, want info", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("default pretty should be false")
	}
}

func TestSetup_WritesAtConfiguredLevel(t *testing.T) {
	tests := []struct {
		name  string
		level LogLevel
		emit  func(logger zerolog.Logger, msg string)
	}{
		{"debug", LevelDebug, func(l zerolog.Logger, m string) { l.Debug().Msg(m) }},
		{"info", LevelInfo, func(l zerolog.Logger, m string) { l.Info().Msg(m) }},
		{"warn", LevelWarn, func(l zerolog.Logger, m string) { l.Warn().Msg(m) }},
		{"error", LevelError, func(l zerolog.Logger, m string) { l.Error().Msg(m) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})

			msg := "settled " + tt.name + " fetch"
			tt.emit(logger, msg)

			if !strings.Contains(buf.String(), msg) {
				t.Errorf("output %q does not contain %q", buf.String(), msg)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input LogLevel
		want  zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger_TagsComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("result-store")
	logger.Info().Str("key", "noise:gene-noise:tpm:raw:0000000000000000").Msg("Cache hit")

	output := buf.String()
	if !strings.Contains(output, "result-store") {
		t.Errorf("output %q missing component field", output)
	}
	if !strings.Contains(output, "Cache hit") {
		t.Errorf("output %q missing message", output)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})

	logger := NewLogger("coordinator")
	logger.Debug().Msg("discarded stale result")
	logger.Info().Msg("fetch settled")
	logger.Warn().Msg("retrying fetch")
	logger.Error().Msg("fetch failed")

	output := buf.String()
	if strings.Contains(output, "discarded stale result") {
		t.Error("debug message not filtered at warn level")
	}
	if strings.Contains(output, "fetch settled") {
		t.Error("info message not filtered at warn level")
	}
	if !strings.Contains(output, "retrying fetch") {
		t.Error("warn message missing at warn level")
	}
	if !strings.Contains(output, "fetch failed") {
		t.Error("error message missing at warn level")
	}
}
