// Package simulation assembles a federated run from a fedprox.Config: it loads
// and partitions the data, builds the model and the FedProx components and
// hands them to an orchestration.Coordinator.
package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/0x6flab/namegenerator"
	"github.com/absmach/fedprox"
	"github.com/absmach/fedprox/pkg/crypto"
	"github.com/absmach/fedprox/pkg/dataset"
	pkgerrors "github.com/absmach/fedprox/pkg/errors"
	"github.com/absmach/fedprox/pkg/fl"
	"github.com/absmach/fedprox/pkg/model"
	"github.com/absmach/fedprox/pkg/mqtt"
	"github.com/absmach/fedprox/pkg/orchestration"
	"github.com/absmach/fedprox/pkg/orchestration/events"
	"github.com/absmach/fedprox/pkg/orchestration/executor"
	"github.com/absmach/fedprox/pkg/orchestration/store"
	"github.com/absmach/fedprox/pkg/partition"
	"github.com/absmach/fedprox/pkg/tensor"
	"github.com/absmach/fedprox/pkg/transport"
	"github.com/google/uuid"
)

const partitionStream = 0x7061727469

var namegen = namegenerator.NewGenerator()

type Service interface {
	RunID() string
	Clients() []orchestration.Client
	Run(ctx context.Context) (orchestration.Report, error)
	Rounds(ctx context.Context) ([]orchestration.RoundResult, error)
}

type service struct {
	runID       string
	clients     []orchestration.Client
	coordinator *orchestration.Coordinator
	store       orchestration.RoundStore
	pubsub      mqtt.PubSub
	logger      *slog.Logger
}

// NewService validates cfg and wires a ready-to-run simulation. Extra
// emitters receive every event next to the log emitter and, when
// events.mqtt_url is set, the MQTT emitter.
func NewService(ctx context.Context, cfg fedprox.Config, logger *slog.Logger, emitters ...orchestration.EventEmitter) (Service, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	train, test, err := LoadDatasets(cfg.Dataset, cfg.Run.Seed)
	if err != nil {
		return nil, err
	}

	m, err := model.New(model.Config{
		Kind:     cfg.Model.Kind,
		Features: train.Features(),
		Classes:  train.Classes(),
		Hidden:   cfg.Model.Hidden,
		Dropout:  cfg.Model.Dropout,
		Device:   tensor.Device(cfg.Run.Device),
	})
	if err != nil {
		return nil, err
	}

	shards, err := partition.Partition(train.Len(), cfg.Training.Clients, partitionRand(cfg.Run.Seed))
	if err != nil {
		return nil, err
	}
	clients := make([]orchestration.Client, len(shards))
	for i, sh := range shards {
		clients[i] = orchestration.Client{
			ID:    sh.Client,
			Name:  namegen.Generate(),
			Shard: dataset.NewSubset(train, sh.Indices),
		}
	}

	trainer, err := fl.NewLocalTrainer(m, fl.Hyperparams{
		Epochs:       cfg.Training.LocalEpochs,
		BatchSize:    cfg.Training.BatchSize,
		LearningRate: cfg.Training.LearningRate,
		Mu:           cfg.Training.Mu,
	}, logger)
	if err != nil {
		return nil, err
	}

	aggregator, err := fl.NewAggregator(cfg.Training.Aggregator)
	if err != nil {
		return nil, err
	}

	var key []byte
	if cfg.Run.TransferKey != "" {
		if key, err = crypto.ParseKey(cfg.Run.TransferKey); err != nil {
			return nil, err
		}
	}
	dispatcher, err := transport.NewDispatcher(key)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	svc := &service{
		runID:   runID,
		clients: clients,
		store:   store.NewMemoryRoundStore(),
		logger:  logger,
	}

	emitters = append([]orchestration.EventEmitter{events.NewLogEventEmitter(logger)}, emitters...)
	if cfg.Events.MQTTURL != "" {
		ps, err := newPubSub(cfg.Events, runID, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect event broker: %w", err)
		}
		svc.pubsub = ps
		emitters = append(emitters, events.NewMQTTEventEmitter(ps, orchestration.NewTopicBuilder(cfg.Events.TopicPrefix, runID)))
	}

	svc.coordinator, err = orchestration.NewCoordinator(
		orchestration.Config{RunID: runID, Rounds: cfg.Training.Rounds, Seed: cfg.Run.Seed},
		orchestration.Components{
			Model:      m,
			Trainer:    trainer,
			Aggregator: aggregator,
			Scorer:     fl.NewEvaluator(m, cfg.Dataset.EvalBatchSize),
			Dispatcher: dispatcher,
			Executor:   executor.NewParallel(cfg.Run.Parallelism),
			Store:      svc.store,
			Events:     events.NewMulti(emitters...),
		},
		clients, test, logger,
	)
	if err != nil {
		svc.disconnect(ctx)

		return nil, err
	}

	logger.InfoContext(ctx, "simulation ready",
		slog.String("run_id", runID),
		slog.String("model", m.Name()),
		slog.Int("parameters", m.Spec().NumScalars()),
		slog.Int("train_examples", train.Len()),
		slog.Int("test_examples", test.Len()),
		slog.Any("shard_sizes", partition.Sizes(shards)),
		slog.Bool("sealed_dispatch", dispatcher.Sealed()),
	)

	return svc, nil
}

func (svc *service) RunID() string {
	return svc.runID
}

func (svc *service) Clients() []orchestration.Client {
	return svc.clients
}

func (svc *service) Run(ctx context.Context) (orchestration.Report, error) {
	defer svc.disconnect(context.WithoutCancel(ctx))

	return svc.coordinator.Run(ctx)
}

func (svc *service) Rounds(ctx context.Context) ([]orchestration.RoundResult, error) {
	return svc.store.ListRounds(ctx, svc.runID)
}

func (svc *service) disconnect(ctx context.Context) {
	if svc.pubsub == nil {
		return
	}
	if err := svc.pubsub.Disconnect(ctx); err != nil {
		svc.logger.WarnContext(ctx, "failed to disconnect event broker", slog.Any("error", err))
	}
	svc.pubsub = nil
}

// LoadDatasets returns the train and test sets selected by cfg.
func LoadDatasets(cfg fedprox.DatasetConfig, seed uint64) (train, test *dataset.InMemory, err error) {
	switch cfg.Source {
	case fedprox.DatasetMNIST:
		return dataset.LoadMNIST(cfg.Dir)
	case fedprox.DatasetSynthetic, "":
		return dataset.Synthetic(dataset.SyntheticConfig{
			Features:   cfg.Features,
			Classes:    cfg.Classes,
			TrainSize:  cfg.TrainSize,
			TestSize:   cfg.TestSize,
			Separation: cfg.Separation,
			Seed:       seed,
		})
	default:
		return nil, nil, fmt.Errorf("%w: unknown dataset source %q", pkgerrors.ErrInvalidConfig, cfg.Source)
	}
}

// PlanPartition returns the shards a run with cfg would use, without building
// the model.
func PlanPartition(cfg fedprox.Config) ([]partition.Shard, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	train, _, err := LoadDatasets(cfg.Dataset, cfg.Run.Seed)
	if err != nil {
		return nil, err
	}

	return partition.Partition(train.Len(), cfg.Training.Clients, partitionRand(cfg.Run.Seed))
}

func partitionRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, partitionStream))
}

func newPubSub(cfg fedprox.EventsConfig, runID string, logger *slog.Logger) (mqtt.PubSub, error) {
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "fedprox-" + runID
	}

	return mqtt.NewPubSub(mqtt.Config{
		URL:      cfg.MQTTURL,
		ClientID: clientID,
		Username: cfg.Username,
		Password: cfg.Password,
		QoS:      byte(cfg.QoS),
		Timeout:  timeout,
		CAPath:   cfg.CAPath,
		CertPath: cfg.CertPath,
		KeyPath:  cfg.KeyPath,
	}, logger)
}
