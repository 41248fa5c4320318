package timeslot

import (
	"fmt"
	"strings"
	"time"
)

// Part names one calendar component of a timeslot.
type Part string

const (
	PartYear    Part = "year"
	PartMonth   Part = "month"
	PartDay     Part = "day"
	PartHour    Part = "hour"
	PartMinute  Part = "minute"
	PartSecond  Part = "second"
	PartYearDay Part = "year_day"
	PartDekade  Part = "dekade"
)

// Parts lists every part in coarse-to-fine order. It is what a lock of "all" expands to.
var Parts = []Part{PartYear, PartMonth, PartDay, PartHour, PartMinute, PartSecond, PartYearDay, PartDekade}

// ParsePart accepts a part name in any case.
func ParsePart(s string) (Part, error) {
	p := Part(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Parts {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown timeslot part %q", s)
}

// Value extracts the part's numeric value from ts.
func (p Part) Value(ts time.Time) int {
	switch p {
	case PartYear:
		return ts.Year()
	case PartMonth:
		return int(ts.Month())
	case PartDay:
		return ts.Day()
	case PartHour:
		return ts.Hour()
	case PartMinute:
		return ts.Minute()
	case PartSecond:
		return ts.Second()
	case PartYearDay:
		return ts.YearDay()
	case PartDekade:
		return Dekade(ts)
	}
	return 0
}

// Agree reports whether a and b have the same value for every part listed.
func Agree(a, b time.Time, parts []Part) bool {
	for _, p := range parts {
		if p.Value(a) != p.Value(b) {
			return false
		}
	}
	return true
}
