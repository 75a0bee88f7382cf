package errs

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestWithKindSurvivesWrap(t *testing.T) {
	base := WithKind(io.ErrUnexpectedEOF, KindTransport)
	wrapped := Wrap(Wrapf(base, "get %s", "tickets"), "load tickets")

	if got := KindOf(wrapped); got != KindTransport {
		t.Fatalf("KindOf() = %v, want transport", got)
	}
	if !errors.Is(wrapped, io.ErrUnexpectedEOF) {
		t.Fatalf("errors.Is() lost the root cause")
	}
	if !IsTransport(wrapped) || IsNotFound(wrapped) {
		t.Fatalf("Is* helpers disagree with KindOf")
	}
}

func TestKindOfUntagged(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Fatalf("KindOf(plain) = %v, want unknown", got)
	}
	if got := KindOf(nil); got != KindUnknown {
		t.Fatalf("KindOf(nil) = %v, want unknown", got)
	}
	if WithKind(nil, KindRemote) != nil {
		t.Fatalf("WithKind(nil) should stay nil")
	}
}

func TestErrorChainStrings(t *testing.T) {
	err := Wrap(WithKind(errors.New("boom"), KindRemote), "update ticket")
	chain := ErrorChainStrings(err)
	if len(chain) != 3 {
		t.Fatalf("chain len = %d, want 3: %v", len(chain), chain)
	}
	if chain[0] != "update ticket: boom" || chain[2] != "boom" {
		t.Fatalf("chain = %v", chain)
	}
}

func TestWithStackCapturesOnce(t *testing.T) {
	if WithStack(nil) != nil {
		t.Fatalf("WithStack(nil) should stay nil")
	}

	root := WithStack(io.ErrUnexpectedEOF)
	again := WithStack(WithKind(Wrap(root, "get tickets"), KindTransport))

	var outer *StackError
	if !errors.As(again, &outer) || outer != root {
		t.Fatalf("WithStack() re-wrapped an error that already has a stack")
	}
	if !errors.Is(again, io.ErrUnexpectedEOF) || !IsTransport(again) {
		t.Fatalf("WithStack() broke the chain")
	}

	value := Loggable(again).LogValue()
	var stack string
	for _, attr := range value.Group() {
		if attr.Key == "stack" {
			stack = attr.Value.String()
		}
	}
	if !strings.Contains(stack, "TestWithStackCapturesOnce") {
		t.Fatalf("Loggable() stack = %q, want the capturing frame", stack)
	}
	if value.Kind() != slog.KindGroup {
		t.Fatalf("Loggable() kind = %v, want group", value.Kind())
	}
}
