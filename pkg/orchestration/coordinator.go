package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/absmach/fedprox/pkg/dataset"
	pkgerrors "github.com/absmach/fedprox/pkg/errors"
	"github.com/absmach/fedprox/pkg/fl"
	"github.com/absmach/fedprox/pkg/metrics"
	"github.com/absmach/fedprox/pkg/model"
	"github.com/absmach/fedprox/pkg/tensor"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/absmach/fedprox/pkg/orchestration"

	initStream   = 0x66656470726f78
	clientStream = 0x636c69656e74
)

// Config holds the run-level settings of a Coordinator.
type Config struct {
	RunID  string
	Rounds int
	Seed   uint64
	// Initial overrides the freshly initialized global parameters.
	Initial *tensor.ParameterSet
}

// Components are the collaborators a Coordinator drives. Events is optional.
type Components struct {
	Model      model.Model
	Trainer    fl.Trainer
	Aggregator fl.Aggregator
	Scorer     fl.Scorer
	Dispatcher Dispatcher
	Executor   ClientExecutor
	Store      RoundStore
	Events     EventEmitter
}

// Coordinator owns the canonical global parameters and drives every round:
// dispatch to clients, local training, aggregation and evaluation.
type Coordinator struct {
	runID   string
	rounds  int
	seed    uint64
	comps   Components
	clients []Client
	test    dataset.Dataset
	global  tensor.ParameterSet
	sm      *StateMachine
	tracer  trace.Tracer
	logger  *slog.Logger
}

func NewCoordinator(cfg Config, comps Components, clients []Client, test dataset.Dataset, logger *slog.Logger) (*Coordinator, error) {
	if err := comps.validate(); err != nil {
		return nil, err
	}
	if len(clients) == 0 {
		return nil, ErrNoClients
	}
	if cfg.Rounds <= 0 {
		return nil, fmt.Errorf("%w: rounds must be positive, got %d", pkgerrors.ErrInvalidConfig, cfg.Rounds)
	}
	if test == nil {
		return nil, fmt.Errorf("%w: test dataset", ErrMissingComponent)
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if comps.Events == nil {
		comps.Events = nopEmitter{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var global tensor.ParameterSet
	if cfg.Initial != nil {
		if err := cfg.Initial.Conforms(comps.Model.Spec()); err != nil {
			return nil, fmt.Errorf("initial parameters: %w", err)
		}
		global = cfg.Initial.Clone()
	} else {
		global = comps.Model.Init(rand.New(rand.NewPCG(cfg.Seed, initStream)))
	}

	return &Coordinator{
		runID:   cfg.RunID,
		rounds:  cfg.Rounds,
		seed:    cfg.Seed,
		comps:   comps,
		clients: clients,
		test:    test,
		global:  global,
		sm:      NewStateMachine(),
		tracer:  otel.Tracer(tracerName),
		logger:  logger.With(slog.String("run_id", cfg.RunID)),
	}, nil
}

func (c Components) validate() error {
	missing := []struct {
		name string
		ok   bool
	}{
		{"model", c.Model != nil},
		{"trainer", c.Trainer != nil},
		{"aggregator", c.Aggregator != nil},
		{"scorer", c.Scorer != nil},
		{"dispatcher", c.Dispatcher != nil},
		{"executor", c.Executor != nil},
		{"store", c.Store != nil},
	}
	for _, m := range missing {
		if !m.ok {
			return fmt.Errorf("%w: %s", ErrMissingComponent, m.name)
		}
	}

	return nil
}

func (c *Coordinator) RunID() string {
	return c.runID
}

func (c *Coordinator) State() RoundState {
	return c.sm.State()
}

// Global returns a copy of the current global parameters.
func (c *Coordinator) Global() tensor.ParameterSet {
	return c.global.Clone()
}

// Run executes every round. A Coordinator runs once; a second call fails
// with ErrInvalidStateTransition. On failure the returned Report holds the
// rounds reached so far.
func (c *Coordinator) Run(ctx context.Context) (Report, error) {
	ctx, span := c.tracer.Start(ctx, "fedprox.run", trace.WithAttributes(
		attribute.String("run_id", c.runID),
		attribute.Int("rounds", c.rounds),
		attribute.Int("clients", len(c.clients)),
	))
	defer span.End()

	report := Report{RunID: c.runID, StartTime: time.Now()}
	finish := func(err error) (Report, error) {
		report.State = c.sm.State()
		report.Params = c.global.Clone()
		report.FinishTime = time.Now()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		c.emit(ctx, "run_completed", c.comps.Events.EmitRunCompleted(ctx, report))

		return report, err
	}

	if c.sm.IsTerminalState(c.sm.State()) {
		return report, fmt.Errorf("%w: run %s already %s", ErrInvalidStateTransition, c.runID, c.sm.State())
	}

	c.logger.InfoContext(ctx, "starting federated run",
		slog.Int("rounds", c.rounds),
		slog.Int("clients", len(c.clients)),
		slog.String("aggregator", c.comps.Aggregator.Name()),
	)

	for r := 1; r <= c.rounds; r++ {
		result, err := c.runRound(ctx, r)
		report.Rounds = append(report.Rounds, result)
		if err != nil {
			return finish(fmt.Errorf("round %d: %w", r, err))
		}
		report.Final = result.Metrics

		if r == c.rounds {
			if err := c.sm.Transition(Completed); err != nil {
				return finish(err)
			}
		}
	}

	return finish(nil)
}

func (c *Coordinator) runRound(ctx context.Context, round int) (RoundResult, error) {
	ctx, span := c.tracer.Start(ctx, "fedprox.round", trace.WithAttributes(attribute.Int("round", round)))
	defer span.End()

	result := RoundResult{
		RunID:     c.runID,
		Round:     round,
		Status:    RoundStatusRunning,
		StartTime: time.Now(),
	}

	if err := c.sm.Transition(RoundInProgress); err != nil {
		return result, err
	}
	if err := c.comps.Store.CreateRound(ctx, result); err != nil {
		return c.failRound(ctx, span, result, fmt.Errorf("failed to create round: %w", err))
	}
	c.emit(ctx, "round_started", c.comps.Events.EmitRoundStarted(ctx, c.runID, round))

	if err := ctx.Err(); err != nil {
		return c.failRound(ctx, span, result, err)
	}

	updates, reports, err := c.trainClients(ctx, round)
	if err != nil {
		return c.failRound(ctx, span, result, err)
	}
	result.Clients = reports
	for _, rep := range reports {
		c.emit(ctx, "client_trained", c.comps.Events.EmitClientTrained(ctx, c.runID, round, rep))
	}

	if err := c.sm.Transition(Aggregating); err != nil {
		return c.failRound(ctx, span, result, err)
	}
	aggregated, err := c.aggregate(ctx, updates)
	if err != nil {
		return c.failRound(ctx, span, result, err)
	}
	c.global = aggregated

	if err := c.sm.Transition(Evaluating); err != nil {
		return c.failRound(ctx, span, result, err)
	}
	m, err := c.comps.Scorer.Evaluate(ctx, c.global, c.test)
	if err != nil {
		return c.failRound(ctx, span, result, fmt.Errorf("evaluation: %w", err))
	}

	result.Metrics = m
	result.Status = RoundStatusCompleted
	result.EndTime = time.Now()
	if err := c.comps.Store.UpdateRound(ctx, result); err != nil {
		return c.failRound(ctx, span, result, fmt.Errorf("failed to update round: %w", err))
	}

	metrics.RoundTotal.WithLabelValues(c.runID, string(RoundStatusCompleted)).Inc()
	metrics.RoundDuration.Observe(result.EndTime.Sub(result.StartTime).Seconds())
	metrics.EvalLoss.WithLabelValues(c.runID).Set(m.Loss)
	metrics.EvalAccuracy.WithLabelValues(c.runID).Set(m.Accuracy)
	span.SetAttributes(attribute.Float64("loss", m.Loss), attribute.Float64("accuracy", m.Accuracy))

	c.emit(ctx, "round_completed", c.comps.Events.EmitRoundCompleted(ctx, result))

	return result, nil
}

// trainClients sends every client the same snapshot of the global parameters
// and collects the updates in client order.
func (c *Coordinator) trainClients(ctx context.Context, round int) ([]fl.Update, []ClientReport, error) {
	spec := c.comps.Model.Spec()
	payload, err := c.comps.Dispatcher.Snapshot(c.global)
	if err != nil {
		return nil, nil, err
	}

	n := len(c.clients)
	updates := make([]fl.Update, n)
	reports := make([]ClientReport, n)

	err = c.comps.Executor.Run(ctx, n, func(ctx context.Context, i int) error {
		client := c.clients[i]
		ctx, span := c.tracer.Start(ctx, "fedprox.client.train", trace.WithAttributes(
			attribute.Int("round", round),
			attribute.Int("client", client.ID),
			attribute.String("client_name", client.Name),
		))
		defer span.End()

		local, err := c.comps.Dispatcher.Receive(payload, spec)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("client %d (%s): %w", client.ID, client.Name, err)
		}

		start := time.Now()
		// The received snapshot is both the starting point and the proximal anchor.
		params, stats, err := c.comps.Trainer.Train(ctx, local, local, client.Shard, c.clientRand(round, i))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("client %d (%s): %w", client.ID, client.Name, err)
		}
		elapsed := time.Since(start)

		updates[i] = fl.Update{
			Client:     client.ID,
			ClientName: client.Name,
			NumSamples: client.Shard.Len(),
			Params:     params,
			Stats:      stats,
		}
		reports[i] = ClientReport{
			Client:   client.ID,
			Name:     client.Name,
			Samples:  client.Shard.Len(),
			Stats:    stats,
			Duration: elapsed,
		}

		metrics.ClientTrainDuration.Observe(elapsed.Seconds())
		metrics.ClientSamples.WithLabelValues(c.runID).Add(float64(stats.Samples))

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return updates, reports, nil
}

func (c *Coordinator) aggregate(ctx context.Context, updates []fl.Update) (tensor.ParameterSet, error) {
	algorithm := c.comps.Aggregator.Name()
	_, span := c.tracer.Start(ctx, "fedprox.aggregate", trace.WithAttributes(
		attribute.String("algorithm", algorithm),
		attribute.Int("updates", len(updates)),
	))
	defer span.End()

	start := time.Now()
	aggregated, err := c.comps.Aggregator.Aggregate(updates)
	if err != nil {
		span.RecordError(err)
		return tensor.ParameterSet{}, fmt.Errorf("aggregation: %w", err)
	}
	if err := aggregated.Conforms(c.comps.Model.Spec()); err != nil {
		return tensor.ParameterSet{}, fmt.Errorf("aggregation: %w", err)
	}

	metrics.AggregationsTotal.WithLabelValues(c.runID, algorithm).Inc()
	metrics.AggregationDuration.WithLabelValues(algorithm).Observe(time.Since(start).Seconds())

	return aggregated, nil
}

func (c *Coordinator) failRound(ctx context.Context, span trace.Span, result RoundResult, cause error) (RoundResult, error) {
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())

	if err := c.sm.Transition(Failed); err != nil {
		c.logger.WarnContext(ctx, "failed to mark run as failed", slog.Any("error", err))
	}

	result.Status = RoundStatusFailed
	result.Error = cause.Error()
	result.EndTime = time.Now()

	// The store must record the failure even when ctx is already cancelled.
	storeCtx := context.WithoutCancel(ctx)
	err := c.comps.Store.UpdateRound(storeCtx, result)
	if errors.Is(err, ErrRoundNotFound) {
		err = c.comps.Store.CreateRound(storeCtx, result)
	}
	if err != nil {
		c.logger.WarnContext(ctx, "failed to record failed round", slog.Any("error", err))
	}

	metrics.RoundTotal.WithLabelValues(c.runID, string(RoundStatusFailed)).Inc()
	c.logger.ErrorContext(ctx, "round failed", slog.Int("round", result.Round), slog.Any("error", cause))
	c.emit(storeCtx, "round_failed", c.comps.Events.EmitRoundFailed(storeCtx, result))

	return result, cause
}

func (c *Coordinator) clientRand(round, client int) *rand.Rand {
	offset := uint64(round)*uint64(len(c.clients)) + uint64(client)

	return rand.New(rand.NewPCG(c.seed+offset, clientStream))
}

// Event emission is best effort.
func (c *Coordinator) emit(ctx context.Context, event string, err error) {
	if err != nil {
		c.logger.WarnContext(ctx, "failed to emit event", slog.String("event", event), slog.Any("error", err))
	}
}

type nopEmitter struct{}

func (nopEmitter) EmitRoundStarted(context.Context, string, int) error { return nil }

func (nopEmitter) EmitClientTrained(context.Context, string, int, ClientReport) error { return nil }

func (nopEmitter) EmitRoundCompleted(context.Context, RoundResult) error { return nil }

func (nopEmitter) EmitRoundFailed(context.Context, RoundResult) error { return nil }

func (nopEmitter) EmitRunCompleted(context.Context, Report) error { return nil }
