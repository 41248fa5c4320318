// Package timeslot implements calendar arithmetic over timeslots, including
// month clamping and the 10-day dekade period.
package timeslot

import (
	"fmt"
	"time"
)

// Layout is the compact form embedded in resource names.
const Layout = "200601021504"

// Offsets is a signed displacement expressed in calendar components.
type Offsets struct {
	Years   int
	Months  int
	Days    int
	Hours   int
	Minutes int
	Dekades int
}

// IsZero reports whether every component is zero.
func (o Offsets) IsZero() bool {
	return o == Offsets{}
}

// Add returns the component-wise sum of o and other.
func (o Offsets) Add(other Offsets) Offsets {
	return Offsets{
		Years:   o.Years + other.Years,
		Months:  o.Months + other.Months,
		Days:    o.Days + other.Days,
		Hours:   o.Hours + other.Hours,
		Minutes: o.Minutes + other.Minutes,
		Dekades: o.Dekades + other.Dekades,
	}
}

// Scale multiplies every component by n.
func (o Offsets) Scale(n int) Offsets {
	return Offsets{
		Years:   o.Years * n,
		Months:  o.Months * n,
		Days:    o.Days * n,
		Hours:   o.Hours * n,
		Minutes: o.Minutes * n,
		Dekades: o.Dekades * n,
	}
}

// FromMap reads "<prefix>years", "<prefix>months", ... keys.
func FromMap(m map[string]int, prefix string) Offsets {
	return Offsets{
		Years:   m[prefix+"years"],
		Months:  m[prefix+"months"],
		Days:    m[prefix+"days"],
		Hours:   m[prefix+"hours"],
		Minutes: m[prefix+"minutes"],
		Dekades: m[prefix+"dekades"],
	}
}

func (o Offsets) String() string {
	return fmt.Sprintf("%+dy%+dm%+dd%+dh%+dmin%+ddek", o.Years, o.Months, o.Days, o.Hours, o.Minutes, o.Dekades)
}

// Offset displaces ts. Years and months are applied first with the day
// clamped to the target month; dekades are converted to a day delta measured
// from ts; days, hours and minutes are then added to the clamped date.
// A zero ts is returned unchanged.
func Offset(ts time.Time, o Offsets) time.Time {
	if ts.IsZero() {
		return ts
	}
	year, month, day := ts.Date()
	m := int(month) - 1 + o.Months
	year += o.Years + floorDiv(m, 12)
	newMonth := floorMod(m, 12) + 1
	if n := DaysIn(year, newMonth); day > n {
		day = n
	}
	days := o.Days
	if o.Dekades != 0 {
		days += dekadeDays(ts, o.Dekades)
	}
	candidate := time.Date(year, time.Month(newMonth), day,
		ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), ts.Location())
	return candidate.AddDate(0, 0, days).
		Add(time.Duration(o.Hours)*time.Hour + time.Duration(o.Minutes)*time.Minute)
}

// dekadeDays walks n dekade boundaries from the start of ts's dekade and
// returns the signed number of days between ts's date and the landing boundary.
func dekadeDays(ts time.Time, n int) int {
	year, month, day := ts.Date()
	cur := civil(year, int(month), DekadeStart(day))
	step := 1
	if n < 0 {
		step = -1
		n = -n
	}
	for i := 0; i < n; i++ {
		y, mo, d := cur.Date()
		switch {
		case step > 0 && d == 21:
			cur = civil(y, int(mo)+1, 1)
		case step > 0:
			cur = cur.AddDate(0, 0, 10)
		case d == 1:
			prev := cur.AddDate(0, 0, -1)
			cur = civil(prev.Year(), int(prev.Month()), 21)
		default:
			cur = cur.AddDate(0, 0, -10)
		}
	}
	return int(cur.Sub(civil(year, int(month), day)).Hours() / 24)
}

func civil(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// Sequence returns count timeslots: base offset by start + i*frequency.
func Sequence(base time.Time, start, frequency Offsets, count int) []time.Time {
	if count <= 0 {
		return nil
	}
	out := make([]time.Time, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, Offset(base, start.Add(frequency.Scale(i))))
	}
	return out
}

// DaysIn returns the number of days in the given month.
func DaysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Dekade returns 1, 2 or 3.
func Dekade(ts time.Time) int {
	switch d := ts.Day(); {
	case d <= 10:
		return 1
	case d <= 20:
		return 2
	default:
		return 3
	}
}

// DekadeStart returns the first day of the dekade containing day.
func DekadeStart(day int) int {
	switch {
	case day <= 10:
		return 1
	case day <= 20:
		return 11
	default:
		return 21
	}
}

// YearDay returns the day of the year, starting at 1.
func YearDay(ts time.Time) int {
	return ts.YearDay()
}

// String formats ts as YYYYMMDDHHMM in UTC.
func String(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(Layout)
}

// Parse reads a YYYYMMDDHHMM string as UTC.
func Parse(s string) (time.Time, error) {
	ts, err := time.ParseInLocation(Layout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timeslot %q: %w", s, err)
	}
	return ts, nil
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
