package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/absmach/fedprox"
	pkgerrors "github.com/absmach/fedprox/pkg/errors"
	"github.com/fatih/color"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	err := Execute(context.Background(), root)

	return out.String(), err
}

func smallDataset(t *testing.T, train string) {
	t.Helper()

	t.Setenv("FEDPROX_DATASET_FEATURES", "4")
	t.Setenv("FEDPROX_DATASET_CLASSES", "3")
	t.Setenv("FEDPROX_DATASET_TRAIN_SIZE", train)
	t.Setenv("FEDPROX_DATASET_TEST_SIZE", "30")
	t.Setenv("FEDPROX_LOG_LEVEL", "error")
}

func TestRunCmd(t *testing.T) {
	smallDataset(t, "90")

	out, err := execute(t, "run", "--clients", "3", "--rounds", "2", "--epochs", "1", "--batch-size", "10", "--mu", "0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"3 clients, 2 rounds", "Round   1/2", "Round   2/2", "Final test loss"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestRunCmdJSON(t *testing.T) {
	smallDataset(t, "40")

	out, err := execute(t, "run", "-n", "2", "-r", "1", "-e", "1", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var report struct {
		RunID  string            `json:"run_id"`
		Rounds []json.RawMessage `json:"rounds"`
		Final  struct {
			Samples int `json:"samples"`
		} `json:"final"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("expected stdout to be a JSON report: %v\n%s", err, out)
	}
	if report.RunID == "" || len(report.Rounds) != 1 || report.Final.Samples != 30 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestRunCmdInvalidConfig(t *testing.T) {
	smallDataset(t, "40")

	_, err := execute(t, "run", "--clients", "0")
	if !pkgerrors.IsConfiguration(err) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestPartitionCmd(t *testing.T) {
	smallDataset(t, "10")

	out, err := execute(t, "partition", "--clients", "4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"client   0  3 examples", "client   1  3 examples", "client   2  2 examples", "client   3  2 examples", "total      10 examples across 4 clients"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}

	if _, err := execute(t, "partition", "--clients", "11"); !errors.Is(err, pkgerrors.ErrInvalidClientCount) {
		t.Errorf("expected ErrInvalidClientCount, got %v", err)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fedprox.toml")

	out, err := execute(t, "config", "init", path, "--yes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "wrote "+path) {
		t.Errorf("expected confirmation, got %q", out)
	}

	if _, err := execute(t, "config", "init", path, "--yes"); !errors.Is(err, errConfigExists) {
		t.Errorf("expected errConfigExists, got %v", err)
	}

	cfg, err := fedprox.LoadConfig(path)
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if cfg.Training.Clients != 10 || cfg.Training.Mu != 0.1 {
		t.Errorf("expected defaults in written config, got %+v", cfg.Training)
	}

	t.Setenv("FEDPROX_TRAINING_CLIENTS", "7")
	out, err = execute(t, "config", "show", "-c", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"Clients": 7`) {
		t.Errorf("expected env override in effective config, got:\n%s", out)
	}
}

func TestWatchCmdNeedsBroker(t *testing.T) {
	t.Setenv("FEDPROX_EVENTS_MQTT_URL", "")

	if _, err := execute(t, "watch"); err == nil {
		t.Errorf("expected error without a broker URL")
	}
}
