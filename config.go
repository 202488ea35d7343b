package fedprox

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/absmach/fedprox/pkg/crypto"
	pkgerrors "github.com/absmach/fedprox/pkg/errors"
	"github.com/absmach/fedprox/pkg/fl"
	"github.com/absmach/fedprox/pkg/model"
	"github.com/absmach/fedprox/pkg/tensor"
	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml"
)

const (
	DatasetSynthetic = "synthetic"
	DatasetMNIST     = "mnist"

	envPrefix = "FEDPROX_"
)

type Config struct {
	Training TrainingConfig `toml:"training" envPrefix:"TRAINING_"`
	Run      RunConfig      `toml:"run" envPrefix:"RUN_"`
	Model    ModelConfig    `toml:"model" envPrefix:"MODEL_"`
	Dataset  DatasetConfig  `toml:"dataset" envPrefix:"DATASET_"`
	Events   EventsConfig   `toml:"events" envPrefix:"EVENTS_"`
	Log      LogConfig      `toml:"log" envPrefix:"LOG_"`
}

type TrainingConfig struct {
	Clients      int     `toml:"clients" env:"CLIENTS"`
	Rounds       int     `toml:"rounds" env:"ROUNDS"`
	LocalEpochs  int     `toml:"local_epochs" env:"LOCAL_EPOCHS"`
	BatchSize    int     `toml:"batch_size" env:"BATCH_SIZE"`
	LearningRate float64 `toml:"learning_rate" env:"LEARNING_RATE"`
	Mu           float64 `toml:"mu" env:"MU"`
	Aggregator   string  `toml:"aggregator" env:"AGGREGATOR"`
}

type RunConfig struct {
	Seed        uint64 `toml:"seed" env:"SEED"`
	Device      string `toml:"device" env:"DEVICE"`
	Parallelism int    `toml:"parallelism" env:"PARALLELISM"`
	TransferKey string `toml:"transfer_key" env:"TRANSFER_KEY"` // Hex AES-256 key used to seal parameter snapshots
}

type ModelConfig struct {
	Kind    string  `toml:"kind" env:"KIND"`
	Hidden  int     `toml:"hidden" env:"HIDDEN"`
	Dropout float64 `toml:"dropout" env:"DROPOUT"`
}

type DatasetConfig struct {
	Source        string  `toml:"source" env:"SOURCE"`
	Dir           string  `toml:"dir" env:"DIR"`
	Features      int     `toml:"features" env:"FEATURES"`
	Classes       int     `toml:"classes" env:"CLASSES"`
	TrainSize     int     `toml:"train_size" env:"TRAIN_SIZE"`
	TestSize      int     `toml:"test_size" env:"TEST_SIZE"`
	Separation    float64 `toml:"separation" env:"SEPARATION"`
	EvalBatchSize int     `toml:"eval_batch_size" env:"EVAL_BATCH_SIZE"`
}

type EventsConfig struct {
	MQTTURL     string `toml:"mqtt_url" env:"MQTT_URL"`
	ClientID    string `toml:"client_id" env:"CLIENT_ID"`
	Username    string `toml:"username" env:"USERNAME"`
	Password    string `toml:"password" env:"PASSWORD"`
	QoS         int    `toml:"qos" env:"QOS"`
	Timeout     string `toml:"timeout" env:"TIMEOUT"`
	TopicPrefix string `toml:"topic_prefix" env:"TOPIC_PREFIX"`
	CAPath      string `toml:"ca_path" env:"CA_PATH"`
	CertPath    string `toml:"cert_path" env:"CERT_PATH"`
	KeyPath     string `toml:"key_path" env:"KEY_PATH"`
}

type LogConfig struct {
	Level string `toml:"level" env:"LEVEL"`
}

func DefaultConfig() Config {
	return Config{
		Training: TrainingConfig{
			Clients:      10,
			Rounds:       20,
			LocalEpochs:  5,
			BatchSize:    64,
			LearningRate: 0.01,
			Mu:           0.1,
			Aggregator:   fl.AlgorithmMean,
		},
		Run: RunConfig{
			Seed:        1,
			Device:      string(tensor.CPU),
			Parallelism: 1,
		},
		Model: ModelConfig{
			Kind:   model.KindSoftmax,
			Hidden: 64,
		},
		Dataset: DatasetConfig{
			Source:        DatasetSynthetic,
			Features:      20,
			Classes:       10,
			TrainSize:     10000,
			TestSize:      2000,
			Separation:    2.0,
			EvalBatchSize: 1000,
		},
		Events: EventsConfig{
			QoS:         1,
			Timeout:     "5s",
			TopicPrefix: "fl",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads a TOML file on top of DefaultConfig and then applies
// FEDPROX_* environment overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}

		if cfg, err = parseConfig(cfg, data); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("error parsing environment: %w", err)
	}

	return &cfg, nil
}

// parseConfig overlays the keys present in data onto base.
func parseConfig(base Config, data []byte) (Config, error) {
	file, err := toml.LoadBytes(data)
	if err != nil {
		return Config{}, fmt.Errorf("error parsing config file: %w", err)
	}

	defaults, err := toml.Marshal(base)
	if err != nil {
		return Config{}, fmt.Errorf("error encoding defaults: %w", err)
	}
	baseTree, err := toml.LoadBytes(defaults)
	if err != nil {
		return Config{}, fmt.Errorf("error encoding defaults: %w", err)
	}

	tree, err := toml.TreeFromMap(merge(baseTree.ToMap(), file.ToMap()))
	if err != nil {
		return Config{}, fmt.Errorf("error merging config: %w", err)
	}

	var cfg Config
	if err := tree.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return cfg, nil
}

func merge(dst, src map[string]any) map[string]any {
	for k, v := range src {
		sub, ok := v.(map[string]any)
		if cur, isMap := dst[k].(map[string]any); ok && isMap {
			dst[k] = merge(cur, sub)

			continue
		}
		// TOML integers are accepted for float keys: mu = 0 means mu = 0.0.
		if i, isInt := v.(int64); isInt {
			if _, isFloat := dst[k].(float64); isFloat {
				dst[k] = float64(i)

				continue
			}
		}
		dst[k] = v
	}

	return dst
}

// TOML encodes the config in the format LoadConfig reads.
func (c Config) TOML() ([]byte, error) {
	return toml.Marshal(c)
}

func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{pkgerrors.ErrInvalidConfig}, args...)...))
	}

	t := c.Training
	if t.Clients <= 0 {
		errs = append(errs, fmt.Errorf("%w: clients must be positive, got %d", pkgerrors.ErrInvalidClientCount, t.Clients))
	}
	if t.Rounds <= 0 {
		invalid("rounds must be positive, got %d", t.Rounds)
	}
	if t.LocalEpochs <= 0 {
		invalid("local_epochs must be positive, got %d", t.LocalEpochs)
	}
	if t.BatchSize <= 0 {
		invalid("batch_size must be positive, got %d", t.BatchSize)
	}
	if t.LearningRate <= 0 {
		invalid("learning_rate must be positive, got %g", t.LearningRate)
	}
	if t.Mu < 0 {
		invalid("mu must be non-negative, got %g", t.Mu)
	}
	if _, err := fl.NewAggregator(t.Aggregator); err != nil {
		errs = append(errs, err)
	}

	if tensor.Device(c.Run.Device) != tensor.CPU {
		errs = append(errs, fmt.Errorf("%w: unsupported device %q", pkgerrors.ErrDeviceMismatch, c.Run.Device))
	}
	if c.Run.Parallelism < 1 {
		invalid("parallelism must be at least 1, got %d", c.Run.Parallelism)
	}
	if c.Run.TransferKey != "" {
		if _, err := crypto.ParseKey(c.Run.TransferKey); err != nil {
			invalid("transfer_key: %v", err)
		}
	}

	switch c.Model.Kind {
	case model.KindSoftmax:
	case model.KindMLP:
		if c.Model.Hidden <= 0 {
			invalid("mlp hidden must be positive, got %d", c.Model.Hidden)
		}
		if c.Model.Dropout < 0 || c.Model.Dropout >= 1 {
			invalid("dropout must be in [0,1), got %g", c.Model.Dropout)
		}
	default:
		invalid("unknown model kind %q", c.Model.Kind)
	}

	d := c.Dataset
	switch d.Source {
	case DatasetSynthetic:
		if d.Features <= 0 || d.Classes <= 1 {
			invalid("synthetic dataset needs features>0 and classes>1, got %d and %d", d.Features, d.Classes)
		}
		if d.TrainSize <= 0 || d.TestSize <= 0 {
			invalid("synthetic dataset needs positive sizes, got train=%d test=%d", d.TrainSize, d.TestSize)
		}
		if t.Clients > d.TrainSize {
			errs = append(errs, fmt.Errorf("%w: %d clients for %d examples", pkgerrors.ErrInvalidClientCount, t.Clients, d.TrainSize))
		}
	case DatasetMNIST:
		if d.Dir == "" {
			invalid("mnist dataset needs dir")
		}
	default:
		invalid("unknown dataset source %q", d.Source)
	}
	if d.EvalBatchSize <= 0 {
		invalid("eval_batch_size must be positive, got %d", d.EvalBatchSize)
	}

	if c.Events.MQTTURL != "" {
		if c.Events.QoS < 0 || c.Events.QoS > 2 {
			invalid("qos must be 0, 1 or 2, got %d", c.Events.QoS)
		}
		if _, err := c.Events.TimeoutDuration(); err != nil {
			invalid("events timeout: %v", err)
		}
	}

	if _, err := c.LogLevel(); err != nil {
		invalid("log level: %v", err)
	}

	return errors.Join(errs...)
}

func (c Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, err
	}

	return level, nil
}

func (e EventsConfig) TimeoutDuration() (time.Duration, error) {
	if e.Timeout == "" {
		return 0, nil
	}

	return time.ParseDuration(e.Timeout)
}
