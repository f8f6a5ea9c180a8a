package calendar

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allWeek = []time.Weekday{
	time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
	time.Thursday, time.Friday, time.Saturday,
}

var monToSat = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday,
}

func TestRenderLeadingBlanks(t *testing.T) {
	// October 2026 starts on a Thursday.
	grid := Render(Input{
		Month:        YearMonth{Year: 2026, Month: time.October},
		Today:        NewDate(2026, time.October, 1),
		BusinessDays: allWeek,
	})

	require.Len(t, grid.Cells, 4+31)
	for i := 0; i < 4; i++ {
		assert.True(t, grid.Cells[i].Blank, "cell %d", i)
	}
	assert.Equal(t, 1, grid.Cells[4].Day)
	assert.Equal(t, 31, grid.Cells[len(grid.Cells)-1].Day)
}

func TestRenderFebruaryLeapYear(t *testing.T) {
	grid := Render(Input{Month: YearMonth{Year: 2028, Month: time.February}, BusinessDays: allWeek})
	last := grid.Cells[len(grid.Cells)-1]
	assert.Equal(t, 29, last.Day)
}

func TestPastDatesAreDisabled(t *testing.T) {
	today := NewDate(2026, time.October, 16)
	grid := Render(Input{
		Month:        MonthOf(today),
		Today:        today,
		BusinessDays: allWeek,
	})

	for _, c := range grid.Cells {
		if c.Blank {
			continue
		}
		if c.Date.Before(today) {
			assert.False(t, c.Selectable, "%s should be disabled", c.Date)
			assert.Equal(t, ReasonPast, c.Reason)
			_, ok := grid.Click(c.Date)
			assert.False(t, ok, "click on %s should be rejected", c.Date)
		} else {
			assert.True(t, c.Selectable, "%s should be selectable", c.Date)
		}
	}

	cell := grid.Cells[int(MonthOf(today).First().Weekday())+today.Day-1]
	assert.True(t, cell.Today)
}

func TestClosedDatesDisabledRegardlessOfBusinessDay(t *testing.T) {
	today := NewDate(2026, time.October, 1)
	closed := NewDateSet(NewDate(2026, time.October, 20), NewDate(2026, time.October, 25))

	for _, days := range [][]time.Weekday{allWeek, monToSat} {
		grid := Render(Input{Month: MonthOf(today), Today: today, Closed: closed, BusinessDays: days})
		for _, c := range grid.Cells {
			if closed.Has(c.Date) {
				assert.False(t, c.Selectable)
				assert.Equal(t, ReasonClosed, c.Reason)
			}
		}
	}
}

func TestNonBusinessDays(t *testing.T) {
	today := NewDate(2026, time.October, 1)
	sunday := NewDate(2026, time.October, 18)

	ok, reason := Selectable(sunday, today, nil, monToSat)
	assert.False(t, ok)
	assert.Equal(t, ReasonNonBusinessDay, reason)

	ok, _ = Selectable(sunday, today, nil, allWeek)
	assert.True(t, ok)
}

func TestTodayIsSelectable(t *testing.T) {
	today := NewDate(2026, time.October, 16)
	ok, _ := Selectable(today, today, nil, allWeek)
	assert.True(t, ok)
}

func TestClick(t *testing.T) {
	today := NewDate(2026, time.October, 16)
	grid := Render(Input{Month: MonthOf(today), Today: today, BusinessDays: allWeek})

	got, ok := grid.Click(NewDate(2026, time.October, 22))
	assert.True(t, ok)
	assert.Equal(t, NewDate(2026, time.October, 22), got)

	_, ok = grid.Click(NewDate(2026, time.November, 2))
	assert.False(t, ok, "out-of-month click is a no-op")
}

func TestRenderIsIdempotent(t *testing.T) {
	today := NewDate(2026, time.October, 16)
	sel := NewDate(2026, time.October, 21)
	in := Input{
		Month:        MonthOf(today),
		Today:        today,
		Closed:       NewDateSet(NewDate(2026, time.October, 23)),
		Selected:     &sel,
		BusinessDays: monToSat,
	}

	first := Render(in)
	second := Render(in)
	assert.Equal(t, first, second)

	selected := 0
	for _, c := range first.Cells {
		if c.Selected {
			selected++
			assert.Equal(t, sel, c.Date)
		}
	}
	assert.Equal(t, 1, selected)
}

func TestWeeks(t *testing.T) {
	// November 2026 starts on a Sunday: no leading blanks, 2 days in the last row.
	grid := Render(Input{Month: YearMonth{Year: 2026, Month: time.November}, BusinessDays: allWeek})
	weeks := grid.Weeks()
	require.Len(t, weeks, 5)
	for _, w := range weeks {
		assert.Len(t, w, 7)
	}
	assert.Equal(t, 1, weeks[0][0].Day)
	assert.Equal(t, 30, weeks[4][1].Day)
	assert.True(t, weeks[4][6].Blank)
}

func TestDateParsingAndJSON(t *testing.T) {
	d, err := ParseDate("2026-10-20T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2026, time.October, 20), d)
	assert.Equal(t, time.Tuesday, d.Weekday())

	_, err = ParseDate("20-10-2026")
	assert.Error(t, err)

	raw, err := json.Marshal(struct {
		D Date `json:"d"`
	}{D: d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2026-10-20"}`, string(raw))

	var back struct {
		D Date `json:"d"`
	}
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, d, back.D)
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2026, time.December, 30)
	assert.Equal(t, NewDate(2027, time.January, 2), d.AddDays(3))
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.After(d.AddDays(-1)))
	assert.Equal(t, NewDate(2026, time.March, 1), NewDate(2026, time.February, 29))
}

func TestYearMonthNavigation(t *testing.T) {
	m, err := ParseYearMonth("2026-12")
	require.NoError(t, err)
	assert.Equal(t, YearMonth{Year: 2027, Month: time.January}, m.Next())
	assert.Equal(t, YearMonth{Year: 2026, Month: time.November}, m.Prev())
	assert.Equal(t, "2026-12", m.String())
}
