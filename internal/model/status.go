package model

import "fmt"

type RunState string

const (
	RunStateCreated         RunState = "created"
	RunStateFetching        RunState = "fetching"
	RunStateAbleCheckFailed RunState = "able_check_failed"
	RunStateExecuting       RunState = "executing"
	RunStateOutputsMissing  RunState = "outputs_missing"
	RunStatePublishing      RunState = "publishing"
	RunStateDeleting        RunState = "deleting"
	RunStateDone            RunState = "done"
	RunStateFailed          RunState = "failed"
	RunStateCancelled       RunState = "cancelled"
)

var terminalRunStates = map[RunState]bool{
	RunStateAbleCheckFailed: true,
	RunStateOutputsMissing:  true,
	RunStateDone:            true,
	RunStateFailed:          true,
	RunStateCancelled:       true,
}

// created → fetching → (able_check_failed | executing) → (outputs_missing | publishing) → done
// Archiving skips executing (fetching → publishing); deletion goes created → deleting → done.
// failed and cancelled are reachable from any non-terminal state.
var validRunTransitions = map[RunState]map[RunState]bool{
	RunStateCreated: {
		RunStateFetching: true,
		RunStateDeleting: true,
	},
	RunStateFetching: {
		RunStateAbleCheckFailed: true,
		RunStateExecuting:       true,
		RunStatePublishing:      true,
	},
	RunStateExecuting: {
		RunStateOutputsMissing: true,
		RunStatePublishing:     true,
	},
	RunStatePublishing: {
		RunStateDone: true,
	},
	RunStateDeleting: {
		RunStateDone: true,
	},
}

func IsRunTerminal(s RunState) bool {
	return terminalRunStates[s]
}

// ValidateRunTransition reports whether a task may move from one run state
// to another. A terminal state may only restart a run.
func ValidateRunTransition(from, to RunState) error {
	if IsRunTerminal(from) {
		if to == RunStateFetching || to == RunStateDeleting {
			return nil
		}
		return fmt.Errorf("cannot transition from terminal run state %q", from)
	}
	if to == RunStateFailed || to == RunStateCancelled {
		return nil
	}
	allowed, ok := validRunTransitions[from]
	if !ok {
		return fmt.Errorf("unknown run state %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid run transition: %q → %q", from, to)
	}
	return nil
}
