package orchestration

import (
	"errors"
	"testing"
)

func TestValidateTransition(t *testing.T) {
	sm := NewStateMachine()

	tests := []struct {
		from, to RoundState
		valid    bool
	}{
		{Initializing, RoundInProgress, true},
		{Initializing, Aggregating, false},
		{Initializing, Completed, false},
		{RoundInProgress, Aggregating, true},
		{RoundInProgress, Evaluating, false},
		{RoundInProgress, Failed, true},
		{Aggregating, Evaluating, true},
		{Aggregating, RoundInProgress, false},
		{Evaluating, RoundInProgress, true},
		{Evaluating, Completed, true},
		{Evaluating, Aggregating, false},
		{Completed, RoundInProgress, false},
		{Failed, RoundInProgress, false},
		{Completed, Failed, false},
	}

	for _, tc := range tests {
		t.Run(tc.from.String()+"->"+tc.to.String(), func(t *testing.T) {
			if got := sm.ValidateTransition(tc.from, tc.to); got != tc.valid {
				t.Errorf("expected %v, got %v", tc.valid, got)
			}
		})
	}
}

func TestTransition(t *testing.T) {
	sm := NewStateMachine()
	if sm.State() != Initializing {
		t.Fatalf("expected Initializing, got %s", sm.State())
	}

	for _, to := range []RoundState{RoundInProgress, Aggregating, Evaluating, RoundInProgress, Aggregating, Evaluating, Completed} {
		if err := sm.Transition(to); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
	}
	if !sm.IsTerminalState(sm.State()) {
		t.Errorf("expected terminal state, got %s", sm.State())
	}

	if err := sm.Transition(RoundInProgress); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("expected ErrInvalidStateTransition, got %v", err)
	}
	if sm.State() != Completed {
		t.Errorf("rejected transition changed state to %s", sm.State())
	}
}

func TestTopicBuilder(t *testing.T) {
	tb := NewTopicBuilder("", "abc")

	tests := map[string]string{
		tb.RoundStartedTopic(1):     "fl/abc/rounds/1/started",
		tb.ClientTrainedTopic(1, 4): "fl/abc/rounds/1/clients/4",
		tb.RoundCompletedTopic(1):   "fl/abc/rounds/1/completed",
		tb.RoundFailedTopic(2):      "fl/abc/rounds/2/failed",
		tb.RunCompletedTopic():      "fl/abc/completed",
		tb.AllTopics():              "fl/abc/#",
		AllRunsTopic("sim"):         "sim/+/#",
	}
	for got, want := range tests {
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}
