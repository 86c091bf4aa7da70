package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "debug", false)

	ctx := NewContext(context.Background(), "request_id", "r1")
	ctx = NewContext(ctx, "player", "p1")
	FromContext(ctx).Info("hello")

	line := buf.String()
	for _, want := range []string{"service=rps-arena", "request_id=r1", "player=p1", "msg=hello"} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line %q missing %q", line, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "WARN", false)
	Info("dropped")
	Warn("kept")
	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "kept") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestFromContextDefault(t *testing.T) {
	if FromContext(context.Background()) != Get() {
		t.Fatal("expected default logger")
	}
}
