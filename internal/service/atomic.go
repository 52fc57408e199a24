package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

type step struct {
	desc string
	do   func(ctx context.Context) error
	undo func(ctx context.Context) error
}

// unit is a group of writes that must land together. History entries are
// appended once the steps have succeeded.
type unit struct {
	name    string
	steps   []step
	history []func(ctx context.Context) error
}

func (u *unit) add(desc string, do, undo func(ctx context.Context) error) {
	u.steps = append(u.steps, step{desc: desc, do: do, undo: undo})
}

func (u *unit) record(fn func(ctx context.Context) error) {
	u.history = append(u.history, fn)
}

// atomicRunner executes units inside a transaction when a Transactor is
// configured. Without one it runs the steps in order and undoes completed
// steps in reverse when a later step fails.
type atomicRunner struct {
	tx  Transactor
	log zerolog.Logger
}

func (r atomicRunner) run(ctx context.Context, u *unit) error {
	if r.tx != nil {
		return r.tx.WithinTx(ctx, func(ctx context.Context) error {
			for _, s := range u.steps {
				if err := s.do(ctx); err != nil {
					return err
				}
			}
			for _, fn := range u.history {
				if err := fn(ctx); err != nil {
					return fmt.Errorf("%s: write history: %w", u.name, err)
				}
			}
			return nil
		})
	}

	for i, s := range u.steps {
		if err := s.do(ctx); err != nil {
			if failed := r.compensate(ctx, u.steps[:i]); len(failed) > 0 {
				r.log.Error().
					Err(err).
					Str("unit", u.name).
					Str("failed_step", s.desc).
					Strs("unreverted_steps", failed).
					Msg("compensation failed, manual reconciliation required")
				return fmt.Errorf("%w: %s: %s failed (%v), could not revert %s",
					ErrReconciliationRequired, u.name, s.desc, err, strings.Join(failed, "; "))
			}
			return err
		}
	}
	for _, fn := range u.history {
		if err := fn(ctx); err != nil {
			r.log.Warn().Err(err).Str("unit", u.name).Msg("failed to write status history")
		}
	}
	return nil
}

func (r atomicRunner) compensate(ctx context.Context, done []step) []string {
	ctx = context.WithoutCancel(ctx)
	var failed []string
	for i := len(done) - 1; i >= 0; i-- {
		s := done[i]
		if s.undo == nil {
			continue
		}
		if err := s.undo(ctx); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", s.desc, err))
		}
	}
	return failed
}
