package events

import (
	"context"
	"log/slog"

	"github.com/absmach/fedprox/pkg/orchestration"
)

type LogEventEmitter struct {
	logger *slog.Logger
}

func NewLogEventEmitter(logger *slog.Logger) orchestration.EventEmitter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &LogEventEmitter{logger: logger}
}

func (e *LogEventEmitter) EmitRoundStarted(ctx context.Context, runID string, round int) error {
	e.logger.InfoContext(ctx, "round started", slog.String("run_id", runID), slog.Int("round", round))

	return nil
}

func (e *LogEventEmitter) EmitClientTrained(ctx context.Context, runID string, round int, report orchestration.ClientReport) error {
	e.logger.DebugContext(ctx, "client trained",
		slog.String("run_id", runID),
		slog.Int("round", round),
		slog.Int("client", report.Client),
		slog.String("name", report.Name),
		slog.Int("samples", report.Samples),
		slog.Float64("loss", report.Stats.MeanLoss),
		slog.Float64("proximal", report.Stats.FinalProximal),
		slog.Duration("duration", report.Duration),
	)

	return nil
}

func (e *LogEventEmitter) EmitRoundCompleted(ctx context.Context, result orchestration.RoundResult) error {
	e.logger.InfoContext(ctx, "round completed",
		slog.String("run_id", result.RunID),
		slog.Int("round", result.Round),
		slog.Float64("loss", result.Metrics.Loss),
		slog.Float64("accuracy", result.Metrics.Accuracy),
		slog.Duration("duration", result.EndTime.Sub(result.StartTime)),
	)

	return nil
}

func (e *LogEventEmitter) EmitRoundFailed(ctx context.Context, result orchestration.RoundResult) error {
	e.logger.ErrorContext(ctx, "round failed",
		slog.String("run_id", result.RunID),
		slog.Int("round", result.Round),
		slog.String("error", result.Error),
	)

	return nil
}

func (e *LogEventEmitter) EmitRunCompleted(ctx context.Context, report orchestration.Report) error {
	e.logger.InfoContext(ctx, "run finished",
		slog.String("run_id", report.RunID),
		slog.String("state", report.State.String()),
		slog.Int("rounds", len(report.Rounds)),
		slog.Float64("loss", report.Final.Loss),
		slog.Float64("accuracy", report.Final.Accuracy),
	)

	return nil
}
