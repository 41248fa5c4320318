package task

import (
	"context"
	"errors"
	"strings"

	"github.com/msageha/conductor/internal/model"
	"github.com/msageha/conductor/internal/resource"
	"github.com/msageha/conductor/internal/timeslot"
)

// Mode selects what a run does.
type Mode string

const (
	// ModeCreation fetches inputs, executes, verifies and publishes outputs.
	ModeCreation Mode = "creation"
	// ModeDeletion removes outputs for a sequence of timeslots.
	ModeDeletion Mode = "deletion"
	// ModeArchiving fetches inputs and publishes them without executing.
	ModeArchiving Mode = "archiving"
)

var modes = map[Mode]func(*Task, context.Context) error{
	ModeCreation:  (*Task).runCreation,
	ModeDeletion:  (*Task).runDeletion,
	ModeArchiving: (*Task).runArchiving,
}

// ParseMode accepts the mode names with or without a "_mode" suffix.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "_mode"))
	if _, ok := modes[m]; !ok {
		return "", model.Errorf(model.KindRunMode, "mode %q is invalid", s)
	}
	return m, nil
}

// Run executes one run in the given mode. A failed run ends in a terminal
// state; the working directory is left for inspection until Cleanup.
func (t *Task) Run(ctx context.Context, mode Mode) error {
	run, ok := modes[mode]
	if !ok {
		return model.Errorf(model.KindRunMode, "mode %q is invalid", mode)
	}
	t.mu.Lock()
	t.mode = mode
	t.mu.Unlock()

	t.logger.Infof("%s: %s run %s for %s", t.name, mode, t.runID, timeslot.String(t.Timeslot()))
	err := run(t, ctx)
	if err == nil {
		return nil
	}
	if !model.IsRunTerminal(t.State()) {
		end := model.RunStateFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			end = model.RunStateCancelled
		}
		t.setDetails("%v", err)
		_ = t.setState(end)
	}
	t.logger.Errorf("%s: run %s ended in %s: %v", t.name, t.runID, t.State(), err)
	return err
}

func (t *Task) runCreation(ctx context.Context) error {
	fetched, err := t.fetchPhase(ctx)
	if err != nil {
		return err
	}

	if err := t.setState(model.RunStateExecuting); err != nil {
		return err
	}
	t.setProgress(50)
	result, err := t.execute(ctx, t, fetched)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.setProgress(70)
	outputs, missing := t.CheckOutputs()
	if len(missing) > 0 {
		t.setDetails("missing outputs: %s", strings.Join(missing, ", "))
		_ = t.setState(model.RunStateOutputsMissing)
		return &model.Error{
			Kind:    model.KindInvalidExecution,
			Msg:     "the task executed but not all expected outputs were found",
			Missing: missing,
		}
	}
	return t.publishPhase(ctx, result, outputs)
}

func (t *Task) runArchiving(ctx context.Context) error {
	fetched, err := t.fetchPhase(ctx)
	if err != nil {
		return err
	}
	return t.publishPhase(ctx, nil, fetched)
}

// fetchPhase fetches inputs and checks the mandatory ones arrived.
func (t *Task) fetchPhase(ctx context.Context) (map[*resource.TaskResource]string, error) {
	if err := t.setState(model.RunStateFetching); err != nil {
		return nil, err
	}
	t.setProgress(0)
	fetched, err := t.FetchInputs(ctx)
	if err != nil {
		return nil, err
	}
	if missing := t.AbleToExecute(fetched); len(missing) > 0 {
		t.setDetails("missing mandatory inputs: %s", strings.Join(missing, ", "))
		_ = t.setState(model.RunStateAbleCheckFailed)
		return nil, &model.Error{
			Kind:    model.KindExecutionCannotStart,
			Msg:     "mandatory inputs are not available",
			Missing: missing,
		}
	}
	return fetched, nil
}

func (t *Task) publishPhase(ctx context.Context, result any, paths map[*resource.TaskResource]string) error {
	if err := t.setState(model.RunStatePublishing); err != nil {
		return err
	}
	t.setProgress(90)
	if err := t.publish(ctx, t, result, paths); err != nil {
		return err
	}
	t.setProgress(100)
	return t.setState(model.RunStateDone)
}

// runDeletion removes the outputs of every timeslot in the configured
// sequence, counted from the task's timeslot, from wherever they are found.
func (t *Task) runDeletion(ctx context.Context) error {
	if err := t.setState(model.RunStateDeleting); err != nil {
		return err
	}
	count := t.deletion.Count
	if count == 0 {
		count = 1
	}
	base := t.Timeslot()
	slots := timeslot.Sequence(base,
		timeslot.FromMap(t.deletion.Start, ""),
		timeslot.FromMap(t.deletion.Frequency, ""),
		count)

	total, deleted := len(slots)*len(t.outputs), 0
	step := 0
	for _, slot := range slots {
		for _, out := range t.outputs {
			if err := ctx.Err(); err != nil {
				return err
			}
			r := out.Resource.Clone()
			if cur := r.Timeslot(); !cur.IsZero() && !base.IsZero() {
				r.SetTimeslot(slot.Add(cur.Sub(base)))
			} else {
				r.SetTimeslot(slot)
			}
			paths, err := r.Delete(ctx)
			if err != nil {
				return err
			}
			deleted += len(paths)
			step++
			t.setProgress(step * 100 / total)
		}
	}
	t.setDetails("deleted %d file(s) over %d timeslot(s)", deleted, len(slots))
	t.setProgress(100)
	return t.setState(model.RunStateDone)
}
