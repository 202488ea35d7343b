package orchestration

import (
	"fmt"
	"slices"
)

var validTransitions = map[RoundState][]RoundState{
	Initializing:    {RoundInProgress, Failed},
	RoundInProgress: {Aggregating, Failed},
	Aggregating:     {Evaluating, Failed},
	Evaluating:      {RoundInProgress, Completed, Failed},
	Completed:       {}, // Terminal state
	Failed:          {}, // Terminal state
}

// StateMachine tracks the coordinator's position in the round lifecycle.
type StateMachine struct {
	state RoundState
}

func NewStateMachine() *StateMachine {
	return &StateMachine{state: Initializing}
}

func (sm *StateMachine) State() RoundState {
	return sm.state
}

func (sm *StateMachine) ValidateTransition(from, to RoundState) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	return slices.Contains(allowed, to)
}

func (sm *StateMachine) Transition(to RoundState) error {
	if !sm.ValidateTransition(sm.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, sm.state, to)
	}
	sm.state = to

	return nil
}

func (sm *StateMachine) IsTerminalState(state RoundState) bool {
	return state == Completed || state == Failed
}
