package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "warn", "json")
	t.Cleanup(func() { defaultLogger = nil })

	Info("hidden %d", 1)
	Warn("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %s", out)
	}
	if !strings.Contains(out, "shown 2") {
		t.Errorf("warn line missing: %s", out)
	}
}

func TestUninitializedIsSilent(t *testing.T) {
	defaultLogger = nil
	// Must not panic before Init.
	Debug("x")
	Error("y %v", nil)
}
