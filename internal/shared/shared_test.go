package shared

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNormalizeName(t *testing.T) {
	tc := []struct {
		name  string
		input string
		want  string
	}{
		{name: "basic normalization", input: "Road Trip", want: "road trip"},
		{name: "extra whitespace", input: "  Road   Trip  ", want: "road trip"},
		{name: "mixed case", input: "RoAd TrIp", want: "road trip"},
		{name: "tabs and newlines", input: "Road\tTrip\n", want: "road trip"},
		{name: "empty", input: "   ", want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeName(tt.input); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	t.Run("SetLogLevel", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)

		SetLogLevel(logger, "warn")
		logger.Info("hidden")
		logger.Warn("shown")

		out := buf.String()
		if strings.Contains(out, "hidden") {
			t.Errorf("info line should be filtered at warn level, got %q", out)
		}
		if !strings.Contains(out, "shown") {
			t.Errorf("warn line should be written, got %q", out)
		}
	})

	t.Run("SetLogLevel unknown falls back to info", func(t *testing.T) {
		logger := NewLogger(&bytes.Buffer{})
		SetLogLevel(logger, "chatty")
		if logger.GetLevel() != log.InfoLevel {
			t.Errorf("expected info level, got %v", logger.GetLevel())
		}
	})

	t.Run("NewFileLogger", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "tui.log")
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("failed to create file logger: %v", err)
		}
		logger.Info("written to file")
	})

	t.Run("GenerateID", func(t *testing.T) {
		a, b := GenerateID(), GenerateID()
		if a == b {
			t.Error("expected unique ids")
		}
		if len(a) != 36 {
			t.Errorf("expected uuid string, got %q", a)
		}
	})
}
