package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestLogLevelString(t *testing.T) {
	cases := map[LogLevel]string{
		LevelDebug:   "DEBUG",
		LevelInfo:    "INFO",
		LevelWarn:    "WARN",
		LevelError:   "ERROR",
		LogLevel(99): "UNKNOWN",
		LogLevel(-1): "UNKNOWN",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Errorf("LogLevel(%d).String() = %q, want %q", level, got, want)
		}
	}
}

func TestInfoIncludesSubsystem(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, &buf)

	Info("Registry", "loaded %d servers", 3)

	out := buf.String()
	if !strings.Contains(out, "loaded 3 servers") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "subsystem=Registry") {
		t.Errorf("expected subsystem attribute in output, got %q", out)
	}
}

func TestErrorIncludesErrAttribute(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, &buf)

	Error("Supervisor", errors.New("spawn failed"), "start failed for %s", "srv-1")

	out := buf.String()
	if !strings.Contains(out, "spawn failed") {
		t.Errorf("expected error attribute in output, got %q", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelWarn, &buf)

	Debug("Collector", "sampled")
	Info("Collector", "sampled")

	if buf.Len() != 0 {
		t.Errorf("expected debug/info suppressed at warn level, got %q", buf.String())
	}

	Warn("Collector", "slow sample")
	if !strings.Contains(buf.String(), "slow sample") {
		t.Errorf("expected warn message in output, got %q", buf.String())
	}
}
