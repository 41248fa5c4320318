package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/msageha/conductor/internal/status"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the run lock, recent runs and leftover working directories",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete run history older than a duration",
	Args:  cobra.NoArgs,
	RunE:  runPrune,
}

var (
	statusTask  string
	statusLimit int
	statusJSON  bool
	pruneAge    time.Duration
)

func init() {
	statusCmd.Flags().StringVarP(&statusTask, "task", "t", "", "only show this task")
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 20, "number of runs to show")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print JSON")
	pruneCmd.Flags().DurationVar(&pruneAge, "older-than", 30*24*time.Hour, "age of the runs to delete")
}

func runStatus(cmd *cobra.Command, args []string) error {
	prov, err := openSettings(cmd)
	if err != nil {
		return err
	}
	defer prov.Close()
	store, err := openHistory(prov)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	s, err := status.Collect(cmd.Context(), status.Options{
		LockPath: lockPath(prov),
		WorkRoot: workRoot(prov),
		History:  store,
		Task:     statusTask,
		Limit:    statusLimit,
		Logger:   prov.Logger(),
	})
	if err != nil {
		return err
	}
	return status.Print(cmd.OutOrStdout(), s, statusJSON)
}

func runPrune(cmd *cobra.Command, args []string) error {
	prov, err := openSettings(cmd)
	if err != nil {
		return err
	}
	defer prov.Close()
	store, err := openHistory(prov)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("no history_db configured")
	}
	defer store.Close()

	n, err := store.Prune(cmd.Context(), time.Now().Add(-pruneAge))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pruned %d run(s)\n", n)
	return nil
}
