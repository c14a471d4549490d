package graph

import (
	"context"
	"errors"
	"testing"

	"pgregory.net/rapid"
)

// Every run either stops on a terminal sentinel or reports the recursion
// limit, and the history only grows.
func TestRunTerminatesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		choices := rapid.SliceOf(rapid.SampledFrom([]string{"A", "B", Finish, WaitForInput})).Draw(t, "decisions")
		limit := rapid.IntRange(1, 12).Draw(t, "limit")

		decisions := make([]Decision, len(choices))
		for i, next := range choices {
			decisions[i] = Decision{Next: next}
		}
		router := Script(decisions...)
		router.Repeat = true

		b := New(WithRecursionLimit(limit))
		for _, err := range []error{
			b.AddSupervisor("supervisor", router),
			b.Add("A", echo("A")),
			b.Add("B", echo("B")),
			b.Connect("A", "supervisor"),
			b.Connect("B", "supervisor"),
			b.StartAt("supervisor"),
		} {
			if err != nil {
				t.Fatalf("build: %v", err)
			}
		}
		engine, err := b.Compile()
		if err != nil {
			t.Fatalf("compile: %v", err)
		}

		final, err := engine.Run(context.Background(), "prop", NewState("go"))
		switch {
		case err == nil:
			if !IsTerminal(final.Next) {
				t.Fatalf("run ended on non-terminal %q", final.Next)
			}
		case errors.Is(err, ErrRecursionLimit):
			if len(final.Messages) != limit+1 {
				t.Fatalf("expected %d messages at the limit, got %d", limit+1, len(final.Messages))
			}
		default:
			t.Fatalf("unexpected error: %v", err)
		}
		if len(final.Messages) < 1 {
			t.Fatalf("initial message lost")
		}
	})
}
