package resource

import (
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/msageha/conductor/internal/logging"
)

const (
	RuleAlphabetical        = "alphabetical"
	RuleReverseAlphabetical = "reverse_alphabetical"
	RuleLatestTimeslot      = "latest_timeslot"
	RuleEarliestTimeslot    = "earliest_timeslot"
)

var embeddedTimeslot = regexp.MustCompile(`\d{12}`)

// Choose narrows candidates with each rule in turn and returns the first
// survivor. Unknown rules are logged and skipped. With no candidates it
// returns "".
func Choose(candidates []string, rules []string, logger *logging.Logger) string {
	remaining := slices.Clone(candidates)
	for _, rule := range rules {
		if len(remaining) <= 1 {
			break
		}
		switch strings.ToLower(rule) {
		case RuleAlphabetical:
			remaining = []string{slices.MinFunc(remaining, byBase)}
		case RuleReverseAlphabetical:
			remaining = []string{slices.MaxFunc(remaining, byBase)}
		case RuleLatestTimeslot:
			remaining = extremeTimeslot(remaining, 1)
		case RuleEarliestTimeslot:
			remaining = extremeTimeslot(remaining, -1)
		default:
			logger.Warnf("ignoring unknown filtering rule %q", rule)
		}
	}
	if len(remaining) == 0 {
		return ""
	}
	return remaining[0]
}

func byBase(a, b string) int {
	return strings.Compare(path.Base(a), path.Base(b))
}

// extremeTimeslot keeps the candidates whose embedded timeslot is the
// latest (sign 1) or earliest (sign -1). Candidates without one survive
// only when none has one.
func extremeTimeslot(candidates []string, sign int) []string {
	var best string
	var keep []string
	for _, c := range candidates {
		ts := embeddedTimeslot.FindString(path.Base(c))
		if ts == "" {
			continue
		}
		switch {
		case best == "" || strings.Compare(ts, best)*sign > 0:
			best = ts
			keep = []string{c}
		case ts == best:
			keep = append(keep, c)
		}
	}
	if keep == nil {
		return candidates
	}
	return keep
}
