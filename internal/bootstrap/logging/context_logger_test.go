package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestWithAttrsLaterKeyWins(t *testing.T) {
	ctx := WithAttrs(context.Background(), slog.String("component", "a"), slog.String("user", "u1"))
	ctx = WithComponent(ctx, "b")

	attrs := Attrs(ctx)
	if len(attrs) != 2 {
		t.Fatalf("attrs len = %d, want 2: %v", len(attrs), attrs)
	}
	if attrs[0].Key != "component" || attrs[0].Value.String() != "b" {
		t.Fatalf("component attr = %v", attrs[0])
	}
}

func TestJSONLoggerCarriesContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "debug", "json"))
	ctx = WithComponent(ctx, "rescache")

	Debug(ctx, "loaded", slog.Int("count", 2))

	out := buf.String()
	if !strings.Contains(out, `"component":"rescache"`) || !strings.Contains(out, `"count":2`) {
		t.Fatalf("log output = %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "warn", "text"))

	Info(ctx, "hidden")
	Warn(ctx, "shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("log output = %s", buf.String())
	}
}
