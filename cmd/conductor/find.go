package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/msageha/conductor/internal/resource"
	"github.com/msageha/conductor/internal/timeslot"
)

var findCmd = &cobra.Command{
	Use:   "find <resource> <timeslot>",
	Short: "Locate a resource and list the matching paths",
	Args:  cobra.ExactArgs(2),
	RunE:  runFind,
}

var findParams map[string]string

func init() {
	findCmd.Flags().StringToStringVarP(&findParams, "param", "p", nil, "parameter values, e.g. -p area=Euro")
}

func runFind(cmd *cobra.Command, args []string) error {
	ts, err := timeslot.Parse(args[1])
	if err != nil {
		return err
	}
	prov, err := openSettings(cmd)
	if err != nil {
		return err
	}
	defer prov.Close()

	r, err := prov.GetResource(args[0], ts)
	if err != nil {
		return err
	}
	for k, v := range findParams {
		r.SetParameter(k, v)
	}
	out := cmd.OutOrStdout()

	if len(r.Locations(resource.MethodFind)) > 0 {
		ok, err := r.Locate(cmd.Context())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s: nothing located from %s", r.Name(), args[1])
		}
		fmt.Fprintf(out, "located %s at %s\n", r.Name(), timeslot.String(r.Timeslot()))
		params := r.Parameters()
		for _, k := range slices.Sorted(maps.Keys(params)) {
			fmt.Fprintf(out, "  %s=%s\n", k, params[k])
		}
	}

	m, paths, err := r.Find(cmd.Context())
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("%s: no representation found", r)
	}
	for _, p := range paths {
		fmt.Fprintf(out, "%s %s:%s\n", m.Protocol(), m.Name(), p)
	}
	return nil
}
