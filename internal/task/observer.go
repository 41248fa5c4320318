package task

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/msageha/conductor/internal/events"
	"github.com/msageha/conductor/internal/resource"
	"github.com/msageha/conductor/internal/timeslot"
	"github.com/msageha/conductor/internal/yaml"
)

// ConsoleObserver prints what changed since the previous notification,
// e.g. "LST run_progress: 040% run_details: fetched 2/2 input(s), 3.1 MB".
func ConsoleObserver(w io.Writer) events.Subscriber {
	var (
		mu       sync.Mutex
		seen     bool
		progress int
		state    string
		details  string
		started  time.Time
	)
	return func(e events.Event) {
		mu.Lock()
		defer mu.Unlock()
		if !seen {
			started = e.Timestamp
		}
		var parts []string
		if !seen || e.Progress != progress {
			parts = append(parts, fmt.Sprintf("run_progress: %03d%%", e.Progress))
		}
		if e.State != state {
			parts = append(parts, "run_state: "+e.State)
		}
		if e.Details != details {
			parts = append(parts, "run_details: "+e.Details)
		}
		seen, progress, state, details = true, e.Progress, e.State, e.Details
		if len(parts) == 0 {
			return
		}
		line := e.Task + " " + strings.Join(parts, " ")
		if e.Type == events.EventStateChanged && !started.IsZero() && e.Timestamp.After(started) {
			line += " (started " + humanize.RelTime(started, e.Timestamp, "ago", "from now") + ")"
		}
		fmt.Fprintln(w, line)
	}
}

// ReportPath is where the run report of t is written.
func ReportPath(t *Task) string {
	return filepath.Join(t.WorkingDir(), yaml.ReportFileName)
}

// ReportObserver rewrites the task's run report on every notification.
func ReportObserver(t *Task) events.Subscriber {
	return func(e events.Event) {
		if err := yaml.WriteReport(ReportPath(t), t.report(e)); err != nil {
			t.logger.Warnf("%s: write run report: %v", t.name, err)
		}
	}
}

func (t *Task) report(e events.Event) yaml.Report {
	r := yaml.Report{
		RunID:     t.runID,
		Task:      t.name,
		URN:       t.URN(),
		Mode:      string(t.Mode()),
		Timeslot:  timeslot.String(t.Timeslot()),
		State:     e.State,
		Progress:  e.Progress,
		Details:   e.Details,
		UpdatedAt: e.Timestamp,
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := func(tr *resource.TaskResource) yaml.ReportResource {
		return yaml.ReportResource{Name: tr.String(), Active: tr.Active(), Optional: tr.Optional(), Path: t.paths[tr]}
	}
	for _, tr := range t.inputs {
		r.Inputs = append(r.Inputs, entry(tr))
	}
	for _, tr := range t.outputs {
		r.Outputs = append(r.Outputs, entry(tr))
	}
	return r
}
