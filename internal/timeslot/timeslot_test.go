package timeslot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestOffset_MonthClamp(t *testing.T) {
	assert.Equal(t, date(2024, 2, 29), Offset(date(2024, 1, 31), Offsets{Months: 1}))
	assert.Equal(t, date(2023, 2, 28), Offset(date(2023, 1, 31), Offsets{Months: 1}))
}

func TestOffset_MonthRollover(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		off  Offsets
		want time.Time
	}{
		{"forward over year", date(2023, 11, 15), Offsets{Months: 3}, date(2024, 2, 15)},
		{"backward over year", date(2024, 1, 15), Offsets{Months: -1}, date(2023, 12, 15)},
		{"backward many", date(2024, 3, 31), Offsets{Months: -13}, date(2023, 2, 28)},
		{"years and months", date(2020, 2, 29), Offsets{Years: 1}, date(2021, 2, 28)},
		{"days after clamp", date(2024, 1, 31), Offsets{Months: 1, Days: 1}, date(2024, 3, 1)},
		{"hours and minutes", date(2024, 1, 1), Offsets{Hours: -1, Minutes: 30}, time.Date(2023, 12, 31, 23, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Offset(tt.in, tt.off))
		})
	}
}

func TestOffset_Dekades(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		n    int
		want time.Time
	}{
		{"third dekade forward", date(2024, 3, 25), 1, date(2024, 4, 1)},
		{"third dekade backward", date(2024, 3, 25), -1, date(2024, 3, 11)},
		{"first dekade backward", date(2024, 3, 5), -1, date(2024, 2, 21)},
		{"first dekade forward", date(2024, 3, 5), 1, date(2024, 3, 11)},
		{"two forward over month", date(2024, 2, 15), 2, date(2024, 3, 1)},
		{"three backward", date(2024, 1, 1), -3, date(2023, 12, 1)},
		{"leap february third dekade", date(2024, 2, 29), 1, date(2024, 3, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Offset(tt.in, Offsets{Dekades: tt.n}))
		})
	}
}

func TestOffset_ZeroDekadesIsIdentity(t *testing.T) {
	ts := time.Date(2024, 5, 17, 12, 45, 0, 0, time.UTC)
	assert.Equal(t, ts, Offset(ts, Offsets{}))
}

func TestOffset_ZeroTimeslot(t *testing.T) {
	assert.True(t, Offset(time.Time{}, Offsets{Days: 3}).IsZero())
}

func TestSequence(t *testing.T) {
	got := Sequence(date(2024, 1, 1), Offsets{Days: -1}, Offsets{Days: 1}, 3)
	assert.Equal(t, []time.Time{date(2023, 12, 31), date(2024, 1, 1), date(2024, 1, 2)}, got)
	assert.Nil(t, Sequence(date(2024, 1, 1), Offsets{}, Offsets{Days: 1}, 0))
}

func TestSequence_Dekadal(t *testing.T) {
	got := Sequence(date(2024, 3, 25), Offsets{}, Offsets{Dekades: -1}, 4)
	assert.Equal(t, []time.Time{date(2024, 3, 25), date(2024, 3, 11), date(2024, 3, 1), date(2024, 2, 21)}, got)
}

func TestDekadeAndDaysIn(t *testing.T) {
	assert.Equal(t, 1, Dekade(date(2024, 1, 10)))
	assert.Equal(t, 2, Dekade(date(2024, 1, 11)))
	assert.Equal(t, 3, Dekade(date(2024, 1, 31)))
	assert.Equal(t, 29, DaysIn(2024, 2))
	assert.Equal(t, 28, DaysIn(2100, 2))
	assert.Equal(t, 31, DaysIn(2024, 12))
}

func TestStringParse(t *testing.T) {
	ts := time.Date(2024, 3, 25, 6, 15, 0, 0, time.UTC)
	s := String(ts)
	assert.Equal(t, "202403250615", s)

	back, err := Parse(s)
	require.NoError(t, err)
	assert.Equal(t, ts, back)

	_, err = Parse("2024")
	assert.Error(t, err)
	assert.Equal(t, "", String(time.Time{}))
}

func TestFromMap(t *testing.T) {
	m := map[string]int{"relative_days": -2, "relative_dekades": 1, "days": 5}
	assert.Equal(t, Offsets{Days: -2, Dekades: 1}, FromMap(m, "relative_"))
	assert.Equal(t, Offsets{Days: 5}, FromMap(m, ""))
}

func TestPart(t *testing.T) {
	ts := time.Date(2024, 3, 25, 6, 15, 9, 0, time.UTC)
	p, err := ParsePart("Year_Day")
	require.NoError(t, err)
	assert.Equal(t, 85, p.Value(ts))
	assert.Equal(t, 3, PartDekade.Value(ts))

	_, err = ParsePart("week")
	assert.Error(t, err)

	other := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	assert.True(t, Agree(ts, other, []Part{PartYear, PartMonth}))
	assert.False(t, Agree(ts, other, []Part{PartDay}))
}
