package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChoose(t *testing.T) {
	candidates := []string{
		"/data/b/LST_202401020000.h5",
		"/data/a/LST_202401030000.h5",
		"/data/c/LST_202401010000.h5",
		"/data/c/LST_202401030000.h5.md5",
	}
	tests := []struct {
		name  string
		rules []string
		want  string
	}{
		{"no rules keeps order", nil, candidates[0]},
		{"alphabetical by base name", []string{RuleAlphabetical}, candidates[2]},
		{"reverse alphabetical", []string{RuleReverseAlphabetical}, candidates[3]},
		{"latest then alphabetical", []string{RuleLatestTimeslot, RuleAlphabetical}, candidates[1]},
		{"latest then reverse", []string{RuleLatestTimeslot, RuleReverseAlphabetical}, candidates[3]},
		{"earliest", []string{RuleEarliestTimeslot}, candidates[2]},
		{"unknown rule skipped", []string{"newest", RuleEarliestTimeslot}, candidates[2]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Choose(candidates, tt.rules, nil))
		})
	}
	assert.Equal(t, "", Choose(nil, []string{RuleAlphabetical}, nil))
}

func TestChoose_UntimedCandidates(t *testing.T) {
	got := Choose([]string{"b.h5", "a.h5"}, []string{RuleLatestTimeslot}, nil)
	assert.Equal(t, "b.h5", got)
}
