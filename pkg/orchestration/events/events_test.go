package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/absmach/fedprox/pkg/fl"
	"github.com/absmach/fedprox/pkg/mqtt"
	"github.com/absmach/fedprox/pkg/orchestration"
)

type published struct {
	topic string
	msg   map[string]any
}

type mockPubSub struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

var _ mqtt.PubSub = (*mockPubSub)(nil)

func (m *mockPubSub) Publish(_ context.Context, topic string, msg any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	payload, _ := msg.(map[string]any)
	m.msgs = append(m.msgs, published{topic: topic, msg: payload})

	return nil
}

func (m *mockPubSub) Subscribe(context.Context, string, mqtt.Handler) error { return nil }
func (m *mockPubSub) Unsubscribe(context.Context, string) error { return nil }
func (m *mockPubSub) Disconnect(context.Context) error { return nil }

func TestMQTTEventEmitterTopics(t *testing.T) {
	ps := &mockPubSub{}
	e := NewMQTTEventEmitter(ps, orchestration.NewTopicBuilder("", "run-1"))
	ctx := context.Background()

	result := orchestration.RoundResult{
		RunID:   "run-1",
		Round:   2,
		Status:  orchestration.RoundStatusCompleted,
		Metrics: fl.Metrics{Loss: 0.5, Accuracy: 0.9},
	}
	calls := []func() error{
		func() error { return e.EmitRoundStarted(ctx, "run-1", 2) },
		func() error {
			return e.EmitClientTrained(ctx, "run-1", 2, orchestration.ClientReport{Client: 3, Samples: 20})
		},
		func() error { return e.EmitRoundCompleted(ctx, result) },
		func() error { return e.EmitRoundFailed(ctx, result) },
		func() error {
			return e.EmitRunCompleted(ctx, orchestration.Report{RunID: "run-1", State: orchestration.Completed})
		},
	}
	for _, call := range calls {
		if err := call(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	expected := []string{
		"fl/run-1/rounds/2/started",
		"fl/run-1/rounds/2/clients/3",
		"fl/run-1/rounds/2/completed",
		"fl/run-1/rounds/2/failed",
		"fl/run-1/completed",
	}
	if len(ps.msgs) != len(expected) {
		t.Fatalf("expected %d messages, got %d", len(expected), len(ps.msgs))
	}
	for i, topic := range expected {
		if ps.msgs[i].topic != topic {
			t.Errorf("message %d: expected topic %q, got %q", i, topic, ps.msgs[i].topic)
		}
	}
	if got := ps.msgs[2].msg["accuracy"]; got != 0.9 {
		t.Errorf("expected accuracy 0.9 in payload, got %v", got)
	}
	if got := ps.msgs[4].msg["state"]; got != "Completed" {
		t.Errorf("expected state Completed, got %v", got)
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	errPublish := errors.New("broker down")
	good := &mockPubSub{}
	bad := &mockPubSub{err: errPublish}
	topics := orchestration.NewTopicBuilder("sim", "r")

	m := NewMulti(
		NewLogEventEmitter(slog.New(slog.DiscardHandler)),
		NewMQTTEventEmitter(bad, topics),
		nil,
		NewMQTTEventEmitter(good, topics),
	)

	err := m.EmitRoundStarted(context.Background(), "r", 1)
	if !errors.Is(err, errPublish) {
		t.Errorf("expected joined publish error, got %v", err)
	}
	if len(good.msgs) != 1 || good.msgs[0].topic != "sim/r/rounds/1/started" {
		t.Errorf("expected the healthy emitter to still publish, got %+v", good.msgs)
	}
}
