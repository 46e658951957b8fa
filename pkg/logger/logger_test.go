package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: WARN, Prefix: "test", Output: &buf, TimeFmt: "2006"})

	l.Debug("should not appear")
	l.Info("should not appear either")
	l.Warn("this should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("expected DEBUG/INFO to be filtered out, got: %s", out)
	}
	if !strings.Contains(out, "this should appear") {
		t.Fatalf("expected WARN line, got: %s", out)
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: DEBUG, Prefix: "node", Output: &buf, TimeFmt: "2006"})
	l.Info("hello %s", "world")

	out := buf.String()
	if !strings.Contains(out, "INFO") || !strings.Contains(out, "[node]") || !strings.Contains(out, "hello world") {
		t.Fatalf("unexpected text log line: %q", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: DEBUG, Prefix: "node", Output: &buf, TimeFmt: "2006", UseJSON: true})
	l.Error("boom %d", 42)

	out := buf.String()
	for _, want := range []string{`"level":"ERROR"`, `"component":"node"`, `boom 42`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected JSON log to contain %q, got: %s", want, out)
		}
	}
}

func TestWithPrefixInheritsLevelAndOutput(t *testing.T) {
	var buf bytes.Buffer
	base := New(&Config{Level: ERROR, Prefix: "base", Output: &buf, TimeFmt: "2006"})
	child := base.WithPrefix("child")

	child.Info("filtered")
	child.Error("shown")

	out := buf.String()
	if strings.Contains(out, "filtered") {
		t.Fatalf("child logger should inherit parent's level")
	}
	if !strings.Contains(out, "[child]") || !strings.Contains(out, "shown") {
		t.Fatalf("expected child-prefixed error line, got: %s", out)
	}
}

func TestDefaultIsSingleton(t *testing.T) {
	if Default() != Default() {
		t.Fatal("Default() should return the same instance across calls")
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: ERROR, Prefix: "t", Output: &buf, TimeFmt: "2006"})
	l.Info("nope")
	l.SetLevel(INFO)
	l.Info("yep")

	out := buf.String()
	if strings.Contains(out, "nope") || !strings.Contains(out, "yep") {
		t.Fatalf("SetLevel did not take effect: %s", out)
	}
}
