// Package selection ranks candidate matches by timeslot recency and by a
// named parameter value.
package selection

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/msageha/conductor/internal/model"
	"github.com/msageha/conductor/internal/timeslot"
)

type TemporalRule string

const (
	Latest   TemporalRule = "latest"
	Earliest TemporalRule = "earliest"
)

type ParameterRule string

const (
	Highest ParameterRule = "highest"
	Lowest  ParameterRule = "lowest"
)

// ParseTemporalRule defaults to Latest for an empty string.
func ParseTemporalRule(s string) (TemporalRule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "latest", "most_recent":
		return Latest, nil
	case "earliest", "least_recent":
		return Earliest, nil
	}
	return "", model.Errorf(model.KindInvalidSelectionInput, "invalid temporal rule %q", s)
}

// ParseParameterRule defaults to Highest for an empty string.
func ParseParameterRule(s string) (ParameterRule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "highest":
		return Highest, nil
	case "lowest":
		return Lowest, nil
	}
	return "", model.Errorf(model.KindInvalidSelectionInput, "invalid parameter rule %q", s)
}

// Policy says how to pick one candidate among several.
type Policy struct {
	Temporal      TemporalRule
	Lock          []timeslot.Part
	Parameter     string
	ParameterRule ParameterRule
}

// NewPolicy builds a Policy from its textual settings form. A lock of "all"
// expands to every timeslot part.
func NewPolicy(temporal string, lock []string, parameter, parameterRule string) (Policy, error) {
	tr, err := ParseTemporalRule(temporal)
	if err != nil {
		return Policy{}, err
	}
	pr, err := ParseParameterRule(parameterRule)
	if err != nil {
		return Policy{}, err
	}
	p := Policy{Temporal: tr, Parameter: parameter, ParameterRule: pr}
	for _, l := range lock {
		if strings.EqualFold(l, "all") {
			p.Lock = slices.Clone(timeslot.Parts)
			break
		}
		part, err := timeslot.ParsePart(l)
		if err != nil {
			return Policy{}, model.WrapError(model.KindInvalidSelectionInput, err, "invalid lock")
		}
		p.Lock = append(p.Lock, part)
	}
	return p, nil
}

// Validate checks the policy's parameter against the resource's declared parameters.
func (p Policy) Validate(params map[string]string) error {
	if p.Parameter == "" {
		return nil
	}
	if _, ok := params[p.Parameter]; !ok {
		return model.Errorf(model.KindInvalidSelectionInput, "invalid parameter name %q", p.Parameter)
	}
	if p.ParameterRule != Highest && p.ParameterRule != Lowest {
		return model.Errorf(model.KindInvalidSelectionInput, "invalid parameter rule %q", p.ParameterRule)
	}
	return nil
}

// Locked reports whether part is in the policy's lock set.
func (p Policy) Locked(part timeslot.Part) bool {
	return slices.Contains(p.Lock, part)
}

// Candidate is a concrete match with whatever was extracted from its name.
// A zero Timeslot means none could be extracted.
type Candidate struct {
	Path       string
	Parameters map[string]string
	Timeslot   time.Time
}

// Rank drops candidates whose timeslot disagrees with reference on a locked
// part, orders the rest by timeslot and then, when the policy names a
// parameter, stable-sorts by that parameter so it takes precedence.
// Candidates without a timeslot only take part in the parameter ordering.
func Rank(candidates []Candidate, p Policy, reference time.Time) []Candidate {
	var timed, untimed []Candidate
	for _, c := range candidates {
		if c.Timeslot.IsZero() {
			untimed = append(untimed, c)
			continue
		}
		if !reference.IsZero() && !timeslot.Agree(c.Timeslot, reference, p.Lock) {
			continue
		}
		timed = append(timed, c)
	}
	slices.SortStableFunc(timed, func(a, b Candidate) int {
		c := a.Timeslot.Compare(b.Timeslot)
		if p.Temporal == Latest {
			return -c
		}
		return c
	})
	if p.Parameter == "" {
		return timed
	}
	all := append(timed, untimed...)
	slices.SortStableFunc(all, func(a, b Candidate) int {
		c := Compare(a.Parameters[p.Parameter], b.Parameters[p.Parameter])
		if p.ParameterRule == Highest {
			return -c
		}
		return c
	})
	return all
}

// First returns the top ranked candidate. An empty ranking is "not found", not an error.
func First(ranked []Candidate) (Candidate, bool) {
	if len(ranked) == 0 {
		return Candidate{}, false
	}
	return ranked[0], true
}

// Compare orders two values numerically when both parse as numbers and
// lexically otherwise.
func Compare(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		if c := cmp.Compare(fa, fb); c != 0 {
			return c
		}
	}
	return strings.Compare(a, b)
}

// SortNames orders names with Compare, descending when desc is set.
func SortNames(names []string, desc bool) {
	slices.SortStableFunc(names, func(a, b string) int {
		if desc {
			return Compare(b, a)
		}
		return Compare(a, b)
	})
}
