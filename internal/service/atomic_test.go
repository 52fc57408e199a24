package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestAtomicRunner_CompensatesInReverse(t *testing.T) {
	var trail []string
	track := func(name string, err error) func(context.Context) error {
		return func(context.Context) error {
			trail = append(trail, name)
			return err
		}
	}

	boom := errors.New("boom")
	u := &unit{name: "test"}
	u.add("a", track("do a", nil), track("undo a", nil))
	u.add("b", track("do b", nil), track("undo b", nil))
	u.add("c", track("do c", boom), track("undo c", nil))
	u.record(track("history", nil))

	err := atomicRunner{log: zerolog.Nop()}.run(context.Background(), u)
	if !errors.Is(err, boom) {
		t.Fatalf("expected step error, got %v", err)
	}
	want := []string{"do a", "do b", "do c", "undo b", "undo a"}
	if len(trail) != len(want) {
		t.Fatalf("unexpected trail %v", trail)
	}
	for i := range want {
		if trail[i] != want[i] {
			t.Fatalf("unexpected trail %v", trail)
		}
	}
}

func TestAtomicRunner_ReportsFailedCompensation(t *testing.T) {
	u := &unit{name: "test"}
	u.add("a", func(context.Context) error { return nil }, func(context.Context) error { return errors.New("undo failed") })
	u.add("b", func(context.Context) error { return errors.New("do failed") }, nil)

	err := atomicRunner{log: zerolog.Nop()}.run(context.Background(), u)
	if !errors.Is(err, ErrReconciliationRequired) {
		t.Fatalf("expected ErrReconciliationRequired, got %v", err)
	}
}

func TestAtomicRunner_CompensationIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	undone := false

	u := &unit{name: "test"}
	u.add("a", func(context.Context) error { return nil }, func(ctx context.Context) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		undone = true
		return nil
	})
	u.add("b", func(context.Context) error {
		cancel()
		return context.Canceled
	}, nil)

	err := atomicRunner{log: zerolog.Nop()}.run(ctx, u)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if !undone {
		t.Fatal("undo should run even after the caller cancelled")
	}
}
