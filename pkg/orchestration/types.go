package orchestration

import (
	"time"

	"github.com/absmach/fedprox/pkg/dataset"
	"github.com/absmach/fedprox/pkg/fl"
	"github.com/absmach/fedprox/pkg/tensor"
)

type RoundState uint8

const (
	Initializing RoundState = iota
	RoundInProgress
	Aggregating
	Evaluating
	Completed
	Failed
)

func (s RoundState) String() string {
	switch s {
	case Initializing:
		return "Initializing"
	case RoundInProgress:
		return "RoundInProgress"
	case Aggregating:
		return "Aggregating"
	case Evaluating:
		return "Evaluating"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

type RoundStatus string

const (
	RoundStatusRunning   RoundStatus = "running"
	RoundStatusCompleted RoundStatus = "completed"
	RoundStatusFailed    RoundStatus = "failed"
)

// ClientReport is what a single client contributed to a round.
type ClientReport struct {
	Client   int           `json:"client"`
	Name     string        `json:"name"`
	Samples  int           `json:"samples"`
	Stats    fl.TrainStats `json:"stats"`
	Duration time.Duration `json:"duration"`
}

type RoundResult struct {
	RunID     string         `json:"run_id"`
	Round     int            `json:"round"`
	Status    RoundStatus    `json:"status"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time,omitzero"`
	Metrics   fl.Metrics     `json:"metrics"`
	Clients   []ClientReport `json:"clients,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Report summarises a finished run. Params is the final global set.
type Report struct {
	RunID      string              `json:"run_id"`
	State      RoundState          `json:"-"`
	Rounds     []RoundResult       `json:"rounds"`
	Final      fl.Metrics          `json:"final"`
	Params     tensor.ParameterSet `json:"-"`
	StartTime  time.Time           `json:"start_time"`
	FinishTime time.Time           `json:"finish_time"`
}

// Client is one simulated participant and its private shard.
type Client struct {
	ID    int
	Name  string
	Shard dataset.Dataset
}
