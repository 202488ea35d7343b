package events

import (
	"context"
	"errors"

	"github.com/absmach/fedprox/pkg/orchestration"
)

// Multi forwards every event to all emitters and joins their errors.
type Multi []orchestration.EventEmitter

func NewMulti(emitters ...orchestration.EventEmitter) orchestration.EventEmitter {
	m := make(Multi, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			m = append(m, e)
		}
	}

	return m
}

func (m Multi) each(fn func(orchestration.EventEmitter) error) error {
	var errs []error
	for _, e := range m {
		if err := fn(e); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (m Multi) EmitRoundStarted(ctx context.Context, runID string, round int) error {
	return m.each(func(e orchestration.EventEmitter) error {
		return e.EmitRoundStarted(ctx, runID, round)
	})
}

func (m Multi) EmitClientTrained(ctx context.Context, runID string, round int, report orchestration.ClientReport) error {
	return m.each(func(e orchestration.EventEmitter) error {
		return e.EmitClientTrained(ctx, runID, round, report)
	})
}

func (m Multi) EmitRoundCompleted(ctx context.Context, result orchestration.RoundResult) error {
	return m.each(func(e orchestration.EventEmitter) error {
		return e.EmitRoundCompleted(ctx, result)
	})
}

func (m Multi) EmitRoundFailed(ctx context.Context, result orchestration.RoundResult) error {
	return m.each(func(e orchestration.EventEmitter) error {
		return e.EmitRoundFailed(ctx, result)
	})
}

func (m Multi) EmitRunCompleted(ctx context.Context, report orchestration.Report) error {
	return m.each(func(e orchestration.EventEmitter) error {
		return e.EmitRunCompleted(ctx, report)
	})
}
