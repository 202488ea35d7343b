package orchestration

import (
	"context"

	"github.com/absmach/fedprox/pkg/tensor"
)

type RoundStore interface {
	CreateRound(ctx context.Context, round RoundResult) error
	GetRound(ctx context.Context, runID string, round int) (RoundResult, error)
	UpdateRound(ctx context.Context, round RoundResult) error
	// ListRounds returns the rounds of a run ordered by round number.
	ListRounds(ctx context.Context, runID string) ([]RoundResult, error)
}

// ClientExecutor runs fn once for each client index in [0, n) and waits for
// all of them. It returns the first error.
type ClientExecutor interface {
	Run(ctx context.Context, n int, fn func(ctx context.Context, client int) error) error
}

// Dispatcher produces the per-client copies of the global parameters.
type Dispatcher interface {
	Snapshot(ps tensor.ParameterSet) ([]byte, error)
	Receive(data []byte, spec tensor.Spec) (tensor.ParameterSet, error)
}

type EventEmitter interface {
	EmitRoundStarted(ctx context.Context, runID string, round int) error
	EmitClientTrained(ctx context.Context, runID string, round int, report ClientReport) error
	EmitRoundCompleted(ctx context.Context, result RoundResult) error
	EmitRoundFailed(ctx context.Context, result RoundResult) error
	EmitRunCompleted(ctx context.Context, report Report) error
}
