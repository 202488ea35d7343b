package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/absmach/fedprox"
	"github.com/absmach/fedprox/pkg/fl"
	"github.com/absmach/fedprox/pkg/model"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

const defConfigPath = "fedprox.toml"

var errConfigExists = errors.New("config file already exists, use --force to overwrite")

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect simulator configuration",
	}

	cmd.AddCommand(newConfigInitCmd(), newConfigShowCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a config file, asking for the main training settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defConfigPath
			if len(args) == 1 {
				path = args[0]
			}

			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s: %w", path, errConfigExists)
			}

			cfg := fedprox.DefaultConfig()
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				form, apply := configForm(&cfg)
				if err := form.Run(); err != nil {
					return err
				}
				if err := apply(); err != nil {
					return err
				}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			data, err := cfg.TOML()
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			logOKCmd(*cmd, "wrote "+path)

			return nil
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "Write the defaults without prompting")
	cmd.Flags().BoolP("force", "f", false, "Overwrite an existing file")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after file and environment overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Run.TransferKey != "" {
				cfg.Run.TransferKey = "<redacted>"
			}
			if cfg.Events.Password != "" {
				cfg.Events.Password = "<redacted>"
			}

			logJSONCmd(*cmd, cfg)

			return nil
		},
	}
}

// configForm asks for the main settings. apply copies the answers into cfg
// once the form has been submitted.
func configForm(cfg *fedprox.Config) (form *huh.Form, apply func() error) {
	clients := strconv.Itoa(cfg.Training.Clients)
	rounds := strconv.Itoa(cfg.Training.Rounds)
	epochs := strconv.Itoa(cfg.Training.LocalEpochs)
	lr := strconv.FormatFloat(cfg.Training.LearningRate, 'g', -1, 64)
	mu := strconv.FormatFloat(cfg.Training.Mu, 'g', -1, 64)

	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Clients").Value(&clients).Validate(positiveInt),
			huh.NewInput().Title("Rounds").Value(&rounds).Validate(positiveInt),
			huh.NewInput().Title("Local epochs").Value(&epochs).Validate(positiveInt),
			huh.NewInput().Title("Learning rate").Value(&lr).Validate(positiveFloat),
			huh.NewInput().Title("Proximal mu").Description("0 disables the proximal pull").Value(&mu).Validate(nonNegativeFloat),
		),
		huh.NewGroup(
			huh.NewSelect[string]().Title("Model").
				Options(huh.NewOptions(model.KindSoftmax, model.KindMLP)...).
				Value(&cfg.Model.Kind),
			huh.NewSelect[string]().Title("Aggregator").
				Options(huh.NewOptions(fl.AlgorithmMean, fl.AlgorithmFedAvg)...).
				Value(&cfg.Training.Aggregator),
			huh.NewSelect[string]().Title("Dataset").
				Options(huh.NewOptions(fedprox.DatasetSynthetic, fedprox.DatasetMNIST)...).
				Value(&cfg.Dataset.Source),
			huh.NewInput().Title("MNIST directory").Description("Only used with the mnist dataset").Value(&cfg.Dataset.Dir),
		),
	)

	apply = func() error {
		var err error
		if cfg.Training.Clients, err = strconv.Atoi(clients); err != nil {
			return err
		}
		if cfg.Training.Rounds, err = strconv.Atoi(rounds); err != nil {
			return err
		}
		if cfg.Training.LocalEpochs, err = strconv.Atoi(epochs); err != nil {
			return err
		}
		if cfg.Training.LearningRate, err = strconv.ParseFloat(lr, 64); err != nil {
			return err
		}
		cfg.Training.Mu, err = strconv.ParseFloat(mu, 64)

		return err
	}

	return form, apply
}

func positiveInt(s string) error {
	if v, err := strconv.Atoi(s); err != nil || v <= 0 {
		return errors.New("enter a positive integer")
	}

	return nil
}

func positiveFloat(s string) error {
	if v, err := strconv.ParseFloat(s, 64); err != nil || v <= 0 {
		return errors.New("enter a positive number")
	}

	return nil
}

func nonNegativeFloat(s string) error {
	if v, err := strconv.ParseFloat(s, 64); err != nil || v < 0 {
		return errors.New("enter a non-negative number")
	}

	return nil
}
