package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/msageha/conductor/internal/setup"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a starter settings file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		path, err := setup.Run(dir, initForce)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the settings file",
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

var (
	initForce     bool
	validateWatch bool
)

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing settings file")
	validateCmd.Flags().BoolVarP(&validateWatch, "watch", "w", false, "keep checking the file whenever it changes")
}

func runValidate(cmd *cobra.Command, args []string) error {
	prov, err := openSettings(cmd)
	if err != nil {
		return err
	}
	defer prov.Close()
	out := cmd.OutOrStdout()
	doc := prov.Settings()
	fmt.Fprintf(out, "%s: ok (%d server(s), %d resource(s), %d task(s))\n",
		settingsPath, len(doc.Servers), len(doc.Resources), len(doc.Tasks))
	if !validateWatch {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = prov.Watch(ctx, func(err error) {
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", settingsPath, err)
			return
		}
		fmt.Fprintf(out, "%s: ok\n", settingsPath)
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}
