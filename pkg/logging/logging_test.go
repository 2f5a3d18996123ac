package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelWarn, &buf)

	Debug("Test", "debug message")
	Info("Test", "info message")
	Warn("Test", "warn message")

	out := buf.String()
	if strings.Contains(out, "debug message") {
		t.Error("Debug output should be suppressed at Warn level")
	}
	if strings.Contains(out, "info message") {
		t.Error("Info output should be suppressed at Warn level")
	}
	if !strings.Contains(out, "warn message") {
		t.Error("Warn output should be emitted at Warn level")
	}
}

func TestSubsystemAttribute(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, &buf)

	Info("SessionManager", "session created")

	if !strings.Contains(buf.String(), "subsystem=SessionManager") {
		t.Errorf("expected subsystem attribute in output, got: %s", buf.String())
	}
}

func TestErrorAttribute(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, &buf)

	Error("Test", errTest, "something failed")

	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("expected error attribute in output, got: %s", buf.String())
	}
}

type testErr string

func (e testErr) Error() string { return string(e) }

var errTest = testErr("boom")

func TestTruncateSessionID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"short", "abc", "abc"},
		{"exact", "12345678", "12345678"},
		{"long", "123456789abcdef", "12345678..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateSessionID(tt.in); got != tt.want {
				t.Errorf("TruncateSessionID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
