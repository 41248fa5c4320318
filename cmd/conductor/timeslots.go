package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/msageha/conductor/internal/timeslot"
)

var timeslotsCmd = &cobra.Command{
	Use:   "timeslots <timeslot>",
	Short: "Print a timeslot sequence",
	Example: `  conductor timeslots 202403050000 --start dekades=-1 --frequency dekades=1 --count 3
  conductor timeslots 202401311200 --start months=1`,
	Args: cobra.ExactArgs(1),
	RunE: runTimeslots,
}

var (
	tsStart     map[string]int
	tsFrequency map[string]int
	tsCount     int
)

func init() {
	timeslotsCmd.Flags().StringToIntVar(&tsStart, "start", nil, "offset of the first timeslot (years, months, days, hours, minutes, dekades)")
	timeslotsCmd.Flags().StringToIntVar(&tsFrequency, "frequency", nil, "offset between timeslots")
	timeslotsCmd.Flags().IntVarP(&tsCount, "count", "n", 1, "number of timeslots")
}

func runTimeslots(cmd *cobra.Command, args []string) error {
	base, err := timeslot.Parse(args[0])
	if err != nil {
		return err
	}
	for _, ts := range timeslot.Sequence(base, timeslot.FromMap(tsStart, ""), timeslot.FromMap(tsFrequency, ""), tsCount) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  dekade %d\n", timeslot.String(ts), ts.Format("Mon 2006-01-02 15:04"), timeslot.Dekade(ts))
	}
	return nil
}
