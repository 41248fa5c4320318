// Package task drives a processing task through its run lifecycle:
// fetch inputs, check they suffice, execute, verify outputs, publish.
package task

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/msageha/conductor/internal/events"
	"github.com/msageha/conductor/internal/logging"
	"github.com/msageha/conductor/internal/model"
	"github.com/msageha/conductor/internal/pattern"
	"github.com/msageha/conductor/internal/resource"
	"github.com/msageha/conductor/internal/timeslot"
)

// DefaultWorkers bounds concurrent input fetches.
const DefaultWorkers = 4

// ExecuteFunc is the task-specific computation. fetched maps every active
// input to its local path, or "" when it could not be fetched.
type ExecuteFunc func(ctx context.Context, t *Task, fetched map[*resource.TaskResource]string) (any, error)

// PublishFunc moves verified outputs to their destinations.
type PublishFunc func(ctx context.Context, t *Task, result any, outputs map[*resource.TaskResource]string) error

type Config struct {
	Name        string
	URN         string
	Description string
	Timeslot    time.Time
	// WorkRoot holds the per-run working directories. Defaults to
	// $TMPDIR/conductor.
	WorkRoot         string
	DecompressInputs bool
	Workers          int
	Deletion         model.DeletionConfig
	Logger           *logging.Logger
}

type Option func(*Task)

func WithExecute(fn ExecuteFunc) Option {
	return func(t *Task) { t.execute = fn }
}

func WithPublish(fn PublishFunc) Option {
	return func(t *Task) { t.publish = fn }
}

// WithBus makes the task publish run notifications on b instead of its own bus.
func WithBus(b *events.Bus) Option {
	return func(t *Task) { t.bus = b }
}

// WithObserver subscribes fn to every run notification.
func WithObserver(fn events.Subscriber) Option {
	return func(t *Task) { t.observers = append(t.observers, fn) }
}

type Task struct {
	name        string
	urn         string
	description string
	runID       string
	workingDir  string
	decompress  bool
	workers     int
	deletion    model.DeletionConfig

	inputs  []*resource.TaskResource
	outputs []*resource.TaskResource

	execute   ExecuteFunc
	publish   PublishFunc
	bus       *events.Bus
	observers []events.Subscriber
	logger    *logging.Logger

	mu       sync.Mutex
	timeslot time.Time
	mode     Mode
	state    model.RunState
	progress int
	details  string
	cleaned  bool
	paths    map[*resource.TaskResource]string

	// notifyMu keeps notifications in order when inputs are fetched concurrently.
	notifyMu sync.Mutex
}

// New creates the task and its working directory.
func New(cfg Config, opts ...Option) (*Task, error) {
	t := &Task{
		name:        cfg.Name,
		urn:         cfg.URN,
		description: cfg.Description,
		runID:       model.GenerateRunID(),
		decompress:  cfg.DecompressInputs,
		workers:     cfg.Workers,
		deletion:    cfg.Deletion,
		timeslot:    cfg.Timeslot,
		state:       model.RunStateCreated,
		paths:       make(map[*resource.TaskResource]string),
		logger:      cfg.Logger.With("task"),
	}
	if t.workers <= 0 {
		t.workers = DefaultWorkers
	}
	for _, o := range opts {
		o(t)
	}
	if t.execute == nil {
		t.execute = noExecute
	}
	if t.publish == nil {
		t.publish = PostOutputs
	}
	if t.bus == nil {
		t.bus = events.NewBus()
	}
	t.bus.OnPanic(func(v any) { t.logger.Errorf("observer panicked: %v", v) })
	for _, fn := range t.observers {
		t.bus.Subscribe(fn)
	}

	root := cfg.WorkRoot
	if root == "" {
		root = DefaultWorkRoot()
	}
	t.workingDir = filepath.Join(root, t.SafeName(), t.runID)
	for _, dir := range []string{t.InputsDir(), t.OutputsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create working directory: %w", err)
		}
	}
	t.logger.Debugf("%s: working directory %s", t.name, t.workingDir)
	return t, nil
}

// DefaultWorkRoot is used when no work root is configured.
func DefaultWorkRoot() string {
	return filepath.Join(os.TempDir(), "conductor")
}

func noExecute(context.Context, *Task, map[*resource.TaskResource]string) (any, error) {
	return true, nil
}

func (t *Task) Name() string        { return t.name }
func (t *Task) Description() string { return t.description }
func (t *Task) RunID() string       { return t.runID }
func (t *Task) WorkingDir() string  { return t.workingDir }
func (t *Task) InputsDir() string   { return filepath.Join(t.workingDir, "inputs") }
func (t *Task) OutputsDir() string  { return filepath.Join(t.workingDir, "outputs") }
func (t *Task) Bus() *events.Bus    { return t.bus }
func (t *Task) SafeName() string    { return strings.ReplaceAll(t.name, " ", "_") }

func (t *Task) URN() string { return pattern.Render(t.urn, t) }

func (t *Task) Timeslot() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timeslot
}

// Parameter lets the task's URN template be rendered; tasks have no parameters.
func (t *Task) Parameter(string) (string, bool) { return "", false }

func (t *Task) Inputs() []*resource.TaskResource  { return slices.Clone(t.inputs) }
func (t *Task) Outputs() []*resource.TaskResource { return slices.Clone(t.outputs) }

func (t *Task) AddInput(tr ...*resource.TaskResource)  { t.inputs = append(t.inputs, tr...) }
func (t *Task) AddOutput(tr ...*resource.TaskResource) { t.outputs = append(t.outputs, tr...) }

func active(trs []*resource.TaskResource) []*resource.TaskResource {
	var out []*resource.TaskResource
	for _, tr := range trs {
		if tr.Active() {
			out = append(out, tr)
		}
	}
	return out
}

func (t *Task) ActiveInputs() []*resource.TaskResource  { return active(t.inputs) }
func (t *Task) ActiveOutputs() []*resource.TaskResource { return active(t.outputs) }

// SetTimeslot moves the task and shifts every input and output by the same delta.
func (t *Task) SetTimeslot(ts time.Time) {
	t.mu.Lock()
	old := t.timeslot
	t.timeslot = ts
	t.mu.Unlock()

	t.logger.Infof("%s: moving to timeslot %s", t.name, timeslot.String(ts))
	for _, tr := range slices.Concat(t.inputs, t.outputs) {
		cur := tr.Resource.Timeslot()
		if cur.IsZero() || old.IsZero() {
			tr.Resource.SetTimeslot(ts)
			continue
		}
		tr.Resource.SetTimeslot(ts.Add(cur.Sub(old)))
	}
}

func (t *Task) State() model.RunState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) Progress() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

func (t *Task) Details() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.details
}

func (t *Task) Mode() Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// setState validates and applies a run state transition.
func (t *Task) setState(to model.RunState) error {
	t.mu.Lock()
	if err := model.ValidateRunTransition(t.state, to); err != nil {
		t.mu.Unlock()
		return err
	}
	t.state = to
	t.mu.Unlock()
	t.notify(events.EventStateChanged)
	return nil
}

func (t *Task) setProgress(p int) {
	t.mu.Lock()
	changed := t.progress != p
	t.progress = p
	t.mu.Unlock()
	if changed {
		t.notify(events.EventProgress)
	}
}

func (t *Task) setDetails(format string, args ...any) {
	d := fmt.Sprintf(format, args...)
	t.mu.Lock()
	changed := t.details != d
	t.details = d
	t.mu.Unlock()
	if changed {
		t.notify(events.EventDetails)
	}
}

// Path returns where tr was fetched to or found, if anywhere.
func (t *Task) Path(tr *resource.TaskResource) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paths[tr]
}

func (t *Task) recordPath(tr *resource.TaskResource, p string) {
	t.mu.Lock()
	t.paths[tr] = p
	t.mu.Unlock()
}

func (t *Task) notify(typ events.EventType) {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()
	t.mu.Lock()
	e := events.Event{
		Type:     typ,
		Task:     t.name,
		RunID:    t.runID,
		State:    string(t.state),
		Progress: t.progress,
		Details:  t.details,
	}
	t.mu.Unlock()
	t.bus.Publish(e)
}

var removeAll = os.RemoveAll

// Cleanup removes the working directory and its parent when that is left
// empty. Calling it again is a no-op.
func (t *Task) Cleanup() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cleaned {
		return nil
	}
	if err := removeAll(t.workingDir); err != nil {
		return fmt.Errorf("remove working directory: %w", err)
	}
	t.cleaned = true
	if err := os.Remove(filepath.Dir(t.workingDir)); err != nil && !errors.Is(err, os.ErrNotExist) {
		t.logger.Debugf("keeping %s: %v", filepath.Dir(t.workingDir), err)
	}
	return nil
}

// With builds a task, runs fn with it and always cleans up afterwards.
func With(ctx context.Context, build func(context.Context) (*Task, error), fn func(context.Context, *Task) error) (err error) {
	t, err := build(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := t.Cleanup(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ctx, t)
}
