package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestComponentAddsField(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(Config{Level: "debug", Format: "json"}, &buf)
	t.Cleanup(func() { InitWithWriter(Config{}, &bytes.Buffer{}) })

	logger := Component("modesync")
	logger.Debug().Msg("probe")

	out := buf.String()
	if !strings.Contains(out, `"component":"modesync"`) {
		t.Fatalf("expected component field, got %q", out)
	}
	if !strings.Contains(out, `"message":"probe"`) {
		t.Fatalf("expected message, got %q", out)
	}
}

func TestInitFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(Config{Level: "chatty"}, &buf)
	t.Cleanup(func() { InitWithWriter(Config{}, &bytes.Buffer{}) })

	logger := Component("test")
	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug message should be filtered, got %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("info message missing, got %q", out)
	}
}
