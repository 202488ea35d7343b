package events

import (
	"context"
	"time"

	"github.com/absmach/fedprox/pkg/mqtt"
	"github.com/absmach/fedprox/pkg/orchestration"
)

type MQTTEventEmitter struct {
	pubsub mqtt.PubSub
	topics *orchestration.TopicBuilder
}

func NewMQTTEventEmitter(pubsub mqtt.PubSub, topics *orchestration.TopicBuilder) orchestration.EventEmitter {
	return &MQTTEventEmitter{
		pubsub: pubsub,
		topics: topics,
	}
}

func (e *MQTTEventEmitter) EmitRoundStarted(ctx context.Context, runID string, round int) error {
	payload := map[string]any{
		"run_id":    runID,
		"round":     round,
		"timestamp": time.Now().UTC(),
	}

	return e.pubsub.Publish(ctx, e.topics.RoundStartedTopic(round), payload)
}

func (e *MQTTEventEmitter) EmitClientTrained(ctx context.Context, runID string, round int, report orchestration.ClientReport) error {
	payload := map[string]any{
		"run_id":         runID,
		"round":          round,
		"client":         report.Client,
		"name":           report.Name,
		"samples":        report.Samples,
		"mean_loss":      report.Stats.MeanLoss,
		"final_proximal": report.Stats.FinalProximal,
		"duration_ms":    report.Duration.Milliseconds(),
	}

	return e.pubsub.Publish(ctx, e.topics.ClientTrainedTopic(round, report.Client), payload)
}

func (e *MQTTEventEmitter) EmitRoundCompleted(ctx context.Context, result orchestration.RoundResult) error {
	payload := map[string]any{
		"run_id":   result.RunID,
		"round":    result.Round,
		"status":   result.Status,
		"loss":     result.Metrics.Loss,
		"accuracy": result.Metrics.Accuracy,
		"clients":  len(result.Clients),
	}

	return e.pubsub.Publish(ctx, e.topics.RoundCompletedTopic(result.Round), payload)
}

func (e *MQTTEventEmitter) EmitRoundFailed(ctx context.Context, result orchestration.RoundResult) error {
	payload := map[string]any{
		"run_id": result.RunID,
		"round":  result.Round,
		"status": result.Status,
		"error":  result.Error,
	}

	return e.pubsub.Publish(ctx, e.topics.RoundFailedTopic(result.Round), payload)
}

func (e *MQTTEventEmitter) EmitRunCompleted(ctx context.Context, report orchestration.Report) error {
	payload := map[string]any{
		"run_id":   report.RunID,
		"state":    report.State.String(),
		"rounds":   len(report.Rounds),
		"loss":     report.Final.Loss,
		"accuracy": report.Final.Accuracy,
	}

	return e.pubsub.Publish(ctx, e.topics.RunCompletedTopic(), payload)
}
