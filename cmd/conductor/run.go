package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/msageha/conductor/internal/history"
	"github.com/msageha/conductor/internal/lock"
	"github.com/msageha/conductor/internal/notify"
	"github.com/msageha/conductor/internal/task"
	"github.com/msageha/conductor/internal/timeslot"
)

var runCmd = &cobra.Command{
	Use:   "run <task> <timeslot>",
	Short: "Run a task for a timeslot (YYYYMMDDHHMM)",
	Args:  cobra.ExactArgs(2),
	RunE:  runRun,
}

var (
	runMode   string
	runKeep   bool
	runNotify bool
)

func init() {
	runCmd.Flags().StringVarP(&runMode, "mode", "m", string(task.ModeCreation), "run mode: creation, deletion or archiving")
	runCmd.Flags().BoolVar(&runKeep, "keep", false, "keep the working directory after the run")
	runCmd.Flags().BoolVar(&runNotify, "notify", false, "send a desktop notification when the run ends")
}

func runRun(cmd *cobra.Command, args []string) error {
	mode, err := task.ParseMode(runMode)
	if err != nil {
		return err
	}
	ts, err := timeslot.Parse(args[1])
	if err != nil {
		return err
	}
	prov, err := openSettings(cmd)
	if err != nil {
		return err
	}
	defer prov.Close()
	tc, err := prov.TaskConfig(args[0])
	if err != nil {
		return err
	}

	if err := os.MkdirAll(workRoot(prov), 0o755); err != nil {
		return fmt.Errorf("create work root: %w", err)
	}
	fl := lock.NewFileLock(lockPath(prov))
	if err := fl.TryLock(); err != nil {
		return err
	}
	defer fl.Unlock()

	store, err := openHistory(prov)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := prov.Logger()
	build := func(context.Context) (*task.Task, error) {
		t, err := prov.GetTask(args[0], ts, task.WithObserver(task.ConsoleObserver(cmd.OutOrStdout())))
		if err != nil {
			return nil, err
		}
		t.Bus().Subscribe(task.ReportObserver(t))
		if store != nil {
			t.Bus().Subscribe(store.Observer(history.RunInfo{
				URN:      t.URN(),
				Mode:     string(mode),
				Timeslot: timeslot.String(ts),
			}, logger))
		}
		if runNotify && notify.Supported() {
			t.Bus().Subscribe(notify.Observer(logger))
		}
		return t, nil
	}
	execute := func(ctx context.Context, t *task.Task) error {
		return t.Run(ctx, mode)
	}

	if tc.RemoveWorkingDirectory() && !runKeep {
		return task.With(ctx, build, execute)
	}
	t, err := build(ctx)
	if err != nil {
		return err
	}
	err = execute(ctx, t)
	fmt.Fprintf(cmd.OutOrStdout(), "working directory kept at %s\n", t.WorkingDir())
	return err
}
