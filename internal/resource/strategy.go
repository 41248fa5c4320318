package resource

import (
	"cmp"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/msageha/conductor/internal/model"
	"github.com/msageha/conductor/internal/timeslot"
)

// Strategy decides which timeslots a task resource covers, relative to
// the base resource's timeslot.
type Strategy string

const (
	SingleAbsolute  Strategy = "single_absolute"
	SingleRelative  Strategy = "single_relative"
	MultipleOrdered Strategy = "multiple_ordered"
)

// displacement returns the timeslots for a strategy plus any filtering
// rules it contributes.
type displacement func(ts time.Time, params map[string]int) ([]time.Time, []string)

var displacements = map[Strategy]displacement{
	SingleAbsolute:  singleAbsolute,
	SingleRelative:  singleRelative,
	MultipleOrdered: multipleOrdered,
}

// ParseStrategy is case-insensitive; an empty name means SingleAbsolute.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	if st == "" {
		return SingleAbsolute, nil
	}
	if _, ok := displacements[st]; !ok {
		return "", model.Errorf(model.KindInvalidSettings, "invalid strategy %q", s)
	}
	return st, nil
}

// singleAbsolute displaces by "<unit>" params, then by "relative_<unit>" params.
func singleAbsolute(ts time.Time, params map[string]int) ([]time.Time, []string) {
	base := timeslot.Offset(ts, timeslot.FromMap(params, ""))
	return []time.Time{timeslot.Offset(base, timeslot.FromMap(params, "relative_"))}, nil
}

// singleRelative keeps the timeslot; params with a positive value name
// filtering rules, applied in ascending value order.
func singleRelative(ts time.Time, params map[string]int) ([]time.Time, []string) {
	var rules []string
	for _, k := range slices.Sorted(maps.Keys(params)) {
		if params[k] > 0 {
			rules = append(rules, k)
		}
	}
	slices.SortStableFunc(rules, func(a, b string) int { return cmp.Compare(params[a], params[b]) })
	return []time.Time{ts}, rules
}

func multipleOrdered(ts time.Time, params map[string]int) ([]time.Time, []string) {
	base := timeslot.Offset(ts, timeslot.FromMap(params, ""))
	count := 1
	if n, ok := params["number_of_timeslots"]; ok {
		count = n
	}
	return timeslot.Sequence(base, timeslot.FromMap(params, "start_"), timeslot.FromMap(params, "frequency_"), count), nil
}

// NewTaskResources builds the task resources cfg describes from base. Each
// timeslot of the strategy yields one resource, or one per value when
// multiple parameters are configured. base is not modified.
func NewTaskResources(base *Resource, cfg model.TaskResourceConfig) ([]*TaskResource, error) {
	st, err := ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	slots, extra := displacements[st](base.Timeslot(), cfg.StrategyParams)
	rules := append(slices.Clone(cfg.FilteringRules), extra...)
	canGet := true
	if cfg.CanGetRepresentation != nil {
		canGet = *cfg.CanGetRepresentation
	}

	var out []*TaskResource
	add := func(r *Resource) {
		out = append(out, &TaskResource{
			Resource:             r,
			ExceptWhen:           cfg.ExceptWhen,
			OptionalWhen:         cfg.OptionalWhen,
			CanGetRepresentation: canGet,
			FilteringRules:       rules,
		})
	}
	for _, slot := range slots {
		if len(cfg.MultipleParameters) == 0 {
			r := base.Clone()
			r.SetTimeslot(slot)
			add(r)
			continue
		}
		for _, mp := range cfg.MultipleParameters {
			for _, v := range mp.Values {
				r := base.Clone()
				r.SetTimeslot(slot)
				r.SetParameter(mp.Parameter, v)
				add(r)
			}
		}
	}
	return out, nil
}
