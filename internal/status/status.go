// Package status summarises runs: whether one is in progress, what the
// history holds and which working directories are left on disk.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/msageha/conductor/internal/history"
	"github.com/msageha/conductor/internal/lock"
	"github.com/msageha/conductor/internal/logging"
	"github.com/msageha/conductor/internal/model"
	conductoryaml "github.com/msageha/conductor/internal/yaml"
)

type Summary struct {
	Lock        LockStatus      `json:"lock"`
	Runs        []RunStatus     `json:"runs,omitempty"`
	WorkingDirs []WorkDirStatus `json:"working_dirs,omitempty"`
}

type LockStatus struct {
	Held bool   `json:"held"`
	Pid  string `json:"pid,omitempty"`
}

type RunStatus struct {
	RunID    string `json:"run_id"`
	Task     string `json:"task"`
	Mode     string `json:"mode"`
	Timeslot string `json:"timeslot"`
	State    string `json:"state"`
	Progress int    `json:"progress"`
	Details  string `json:"details,omitempty"`
	Updated  string `json:"updated"`
}

type WorkDirStatus struct {
	Path     string `json:"path"`
	RunID    string `json:"run_id"`
	Task     string `json:"task"`
	State    string `json:"state"`
	Progress int    `json:"progress"`
	Started  string `json:"started,omitempty"`
}

type Options struct {
	LockPath string
	WorkRoot string
	History  *history.Store
	Task     string
	Limit    int
	Logger   *logging.Logger
}

// Collect gathers the summary. Missing sources are skipped.
func Collect(ctx context.Context, opts Options) (Summary, error) {
	var s Summary
	if opts.LockPath != "" {
		s.Lock = checkLock(opts.LockPath)
	}
	if opts.History != nil {
		runs, err := opts.History.List(ctx, history.Filter{Task: opts.Task, Limit: opts.Limit})
		if err != nil {
			return s, err
		}
		for _, r := range runs {
			s.Runs = append(s.Runs, RunStatus{
				RunID:    r.RunID,
				Task:     r.Task,
				Mode:     r.Mode,
				Timeslot: r.Timeslot,
				State:    r.State,
				Progress: r.Progress,
				Details:  r.Details,
				Updated:  humanize.Time(r.UpdatedAt),
			})
		}
	}
	if opts.WorkRoot != "" {
		s.WorkingDirs = scanWorkingDirs(opts.WorkRoot, opts.Task, opts.Logger.With("status"))
	}
	return s, nil
}

// checkLock probes the run lock. A lock file nobody holds is stale and
// is removed by the probe.
func checkLock(path string) LockStatus {
	if _, err := os.Stat(path); err != nil {
		return LockStatus{}
	}
	pid, _ := os.ReadFile(path)
	fl := lock.NewFileLock(path)
	if err := fl.TryLock(); err != nil {
		return LockStatus{Held: true, Pid: strings.TrimSpace(string(pid))}
	}
	_ = fl.Unlock()
	return LockStatus{}
}

// scanWorkingDirs reads <root>/<task>/<run id>/run.yaml reports.
func scanWorkingDirs(root, task string, logger *logging.Logger) []WorkDirStatus {
	reports, err := filepath.Glob(filepath.Join(root, "*", "*", conductoryaml.ReportFileName))
	if err != nil {
		return nil
	}
	var out []WorkDirStatus
	for _, p := range reports {
		r, err := conductoryaml.ReadReport(p)
		if err != nil {
			logger.Warnf("skip %s: %v", p, err)
			continue
		}
		if task != "" && r.Task != task {
			continue
		}
		d := WorkDirStatus{
			Path:     filepath.Dir(p),
			RunID:    r.RunID,
			Task:     r.Task,
			State:    r.State,
			Progress: r.Progress,
		}
		if started, err := model.ParseRunIDTimestamp(r.RunID); err == nil {
			d.Started = humanize.Time(started)
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunID > out[j].RunID })
	return out
}

// Print writes s as text, or as indented JSON.
func Print(w io.Writer, s Summary, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	if s.Lock.Held {
		fmt.Fprintf(w, "Run lock: held by pid %s\n", s.Lock.Pid)
	} else {
		fmt.Fprintln(w, "Run lock: free")
	}

	if len(s.Runs) > 0 {
		fmt.Fprintln(w, "\nRuns:")
		fmt.Fprintf(w, "  %-28s  %-10s  %-9s  %-12s  %-17s  %4s  %s\n",
			"RUN", "TASK", "MODE", "TIMESLOT", "STATE", "PROG", "UPDATED")
		for _, r := range s.Runs {
			fmt.Fprintf(w, "  %-28s  %-10s  %-9s  %-12s  %-17s  %3d%%  %s\n",
				r.RunID, r.Task, r.Mode, r.Timeslot, r.State, r.Progress, r.Updated)
		}
	} else {
		fmt.Fprintln(w, "\nRuns: none")
	}

	if len(s.WorkingDirs) > 0 {
		fmt.Fprintln(w, "\nWorking directories:")
		for _, d := range s.WorkingDirs {
			fmt.Fprintf(w, "  %-28s  %-17s  %3d%%  %-14s  %s\n", d.RunID, d.State, d.Progress, d.Started, d.Path)
		}
	}
	return nil
}
