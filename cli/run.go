package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/absmach/fedprox"
	"github.com/absmach/fedprox/pkg/orchestration"
	"github.com/absmach/fedprox/simulation"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// progressEmitter prints one line per finished round.
type progressEmitter struct {
	mu     sync.Mutex
	out    io.Writer
	rounds int
}

func (p *progressEmitter) EmitRoundStarted(context.Context, string, int) error { return nil }

func (p *progressEmitter) EmitClientTrained(context.Context, string, int, orchestration.ClientReport) error {
	return nil
}

func (p *progressEmitter) EmitRoundCompleted(_ context.Context, r orchestration.RoundResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := fmt.Fprintf(p.out, "Round %3d/%d  loss %s  accuracy %s  (%s)\n",
		r.Round, p.rounds,
		color.YellowString("%.4f", r.Metrics.Loss),
		color.GreenString("%6.2f%%", 100*r.Metrics.Accuracy),
		r.EndTime.Sub(r.StartTime).Round(time.Millisecond),
	)

	return err
}

func (p *progressEmitter) EmitRoundFailed(_ context.Context, r orchestration.RoundResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := fmt.Fprintf(p.out, "Round %3d/%d  %s\n", r.Round, p.rounds, color.RedString("failed: %s", r.Error))

	return err
}

func (p *progressEmitter) EmitRunCompleted(context.Context, orchestration.Report) error { return nil }

func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a federated training simulation",
		Long:  `Partitions the training set across clients, runs the configured number of FedProx rounds and prints per-round and final test metrics.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyRunFlags(cmd, cfg)
			logger := newLogger(cfg)
			out := cmd.OutOrStdout()

			// With --json stdout carries the report only.
			asJSON, _ := cmd.Flags().GetBool("json")
			var emitters []orchestration.EventEmitter
			if !asJSON {
				emitters = append(emitters, &progressEmitter{out: out, rounds: cfg.Training.Rounds})
			}

			svc, err := simulation.NewService(cmd.Context(), *cfg, logger, emitters...)
			if err != nil {
				return fmt.Errorf("service initialization error: %w", err)
			}

			if !asJSON {
				fmt.Fprintf(out, "Run %s: %d clients, %d rounds, %d local epochs, mu=%g, aggregator=%s\n",
					color.CyanString(svc.RunID()), cfg.Training.Clients, cfg.Training.Rounds,
					cfg.Training.LocalEpochs, cfg.Training.Mu, cfg.Training.Aggregator)
			}

			report, err := svc.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("run %s failed: %w", svc.RunID(), err)
			}

			if asJSON {
				logJSONCmd(*cmd, report)

				return nil
			}

			fmt.Fprintf(out, "Final test loss %s, accuracy %s over %d examples\n",
				color.YellowString("%.4f", report.Final.Loss),
				color.GreenString("%.2f%%", 100*report.Final.Accuracy),
				report.Final.Samples,
			)

			return nil
		},
	}

	d := fedprox.DefaultConfig()
	f := cmd.Flags()
	f.IntP("clients", "n", d.Training.Clients, "Number of simulated clients")
	f.IntP("rounds", "r", d.Training.Rounds, "Number of communication rounds")
	f.IntP("epochs", "e", d.Training.LocalEpochs, "Local epochs per round")
	f.IntP("batch-size", "b", d.Training.BatchSize, "Local mini-batch size")
	f.Float64P("lr", "l", d.Training.LearningRate, "Local learning rate")
	f.Float64P("mu", "m", d.Training.Mu, "Proximal coefficient; 0 gives FedAvg-style local SGD")
	f.Uint64P("seed", "s", d.Run.Seed, "Seed for data, partition and initialization")
	f.IntP("parallelism", "p", d.Run.Parallelism, "Clients trained concurrently")
	f.String("aggregator", d.Training.Aggregator, "Aggregation rule (mean, fedavg)")
	f.String("model", d.Model.Kind, "Model kind (softmax, mlp)")
	f.Bool("json", false, "Print the final report as JSON")

	return cmd
}

// applyRunFlags applies only the flags set on the command line, so file and
// environment values survive otherwise.
func applyRunFlags(cmd *cobra.Command, cfg *fedprox.Config) {
	f := cmd.Flags()

	if f.Changed("clients") {
		cfg.Training.Clients, _ = f.GetInt("clients")
	}
	if f.Changed("rounds") {
		cfg.Training.Rounds, _ = f.GetInt("rounds")
	}
	if f.Changed("epochs") {
		cfg.Training.LocalEpochs, _ = f.GetInt("epochs")
	}
	if f.Changed("batch-size") {
		cfg.Training.BatchSize, _ = f.GetInt("batch-size")
	}
	if f.Changed("lr") {
		cfg.Training.LearningRate, _ = f.GetFloat64("lr")
	}
	if f.Changed("mu") {
		cfg.Training.Mu, _ = f.GetFloat64("mu")
	}
	if f.Changed("seed") {
		cfg.Run.Seed, _ = f.GetUint64("seed")
	}
	if f.Changed("parallelism") {
		cfg.Run.Parallelism, _ = f.GetInt("parallelism")
	}
	if f.Changed("aggregator") {
		cfg.Training.Aggregator, _ = f.GetString("aggregator")
	}
	if f.Changed("model") {
		cfg.Model.Kind, _ = f.GetString("model")
	}
}
