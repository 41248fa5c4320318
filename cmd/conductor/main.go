package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/msageha/conductor/internal/history"
	"github.com/msageha/conductor/internal/settings"
	"github.com/msageha/conductor/internal/task"
)

const version = "1.0.0"

var settingsPath string

var rootCmd = &cobra.Command{
	Use:           "conductor",
	Short:         "Resolve dated resources and drive processing tasks",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "conductor %s\n", version)
	},
}

func init() {
	def := os.Getenv("CONDUCTOR_SETTINGS")
	if def == "" {
		def = "conductor.yaml"
	}
	rootCmd.PersistentFlags().StringVarP(&settingsPath, "settings", "s", def, "settings file (.yaml, .toml or .json)")

	rootCmd.AddCommand(versionCmd, initCmd, validateCmd, runCmd, findCmd, timeslotsCmd, statusCmd, pruneCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openSettings(cmd *cobra.Command) (*settings.Provider, error) {
	return settings.Open(settingsPath, settings.WithLogOutput(cmd.ErrOrStderr()))
}

func workRoot(prov *settings.Provider) string {
	if root := prov.Settings().Conductor.WorkRoot; root != "" {
		return root
	}
	return task.DefaultWorkRoot()
}

func lockPath(prov *settings.Provider) string {
	return filepath.Join(workRoot(prov), "conductor.lock")
}

// openHistory returns nil when no history database is configured. A
// relative path is taken from the settings file's directory.
func openHistory(prov *settings.Provider) (*history.Store, error) {
	db := prov.Settings().Conductor.HistoryDB
	if db == "" {
		return nil, nil
	}
	if !filepath.IsAbs(db) {
		db = filepath.Join(filepath.Dir(prov.Path()), db)
	}
	return history.Open(db)
}
