// Package calendar renders the month grid used to pick a booking date.
//
// Rendering is a pure function of its Input: the same month, closed dates,
// selection and "today" always produce the same grid.
package calendar

import "time"

// Reasons a day cannot be picked.
const (
	ReasonPast           = "past"
	ReasonClosed         = "closed"
	ReasonNonBusinessDay = "non_business_day"
)

// Cell is one position in the month grid. Blank cells pad the first week.
type Cell struct {
	Date       Date   `json:"date"`
	Day        int    `json:"day"`
	Blank      bool   `json:"blank,omitempty"`
	Selectable bool   `json:"selectable"`
	Selected   bool   `json:"selected,omitempty"`
	Today      bool   `json:"today,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Grid is a rendered month.
type Grid struct {
	Month YearMonth `json:"month"`
	Cells []Cell    `json:"cells"`
}

// Input holds everything Render depends on.
type Input struct {
	Month        YearMonth
	Today        Date
	Closed       DateSet
	Selected     *Date
	BusinessDays []time.Weekday
}

// WeekdayHeaders are Sunday-first, matching time.Weekday numbering.
var WeekdayHeaders = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Selectable reports whether d may be booked and, if not, why.
// Closed dates are rejected even on business days.
func Selectable(d, today Date, closed DateSet, businessDays []time.Weekday) (bool, string) {
	if d.Before(today) {
		return false, ReasonPast
	}
	if closed.Has(d) {
		return false, ReasonClosed
	}
	if !isBusinessDay(d.Weekday(), businessDays) {
		return false, ReasonNonBusinessDay
	}
	return true, ""
}

func isBusinessDay(wd time.Weekday, days []time.Weekday) bool {
	for _, d := range days {
		if d == wd {
			return true
		}
	}
	return false
}

// Render builds the grid for in.Month.
func Render(in Input) Grid {
	first := in.Month.First()
	offset := int(first.Weekday()) // Sunday = 0
	days := in.Month.Days()

	cells := make([]Cell, 0, offset+days)
	for i := 0; i < offset; i++ {
		cells = append(cells, Cell{Blank: true})
	}

	for day := 1; day <= days; day++ {
		d := Date{Year: in.Month.Year, Month: in.Month.Month, Day: day}
		ok, reason := Selectable(d, in.Today, in.Closed, in.BusinessDays)
		cells = append(cells, Cell{
			Date:       d,
			Day:        day,
			Selectable: ok,
			Selected:   in.Selected != nil && *in.Selected == d,
			Today:      d == in.Today,
			Reason:     reason,
		})
	}

	return Grid{Month: in.Month, Cells: cells}
}

// Click returns the clicked date only when its cell is selectable.
// Clicks on blank, disabled or out-of-month days are ignored.
func (g Grid) Click(d Date) (Date, bool) {
	for _, c := range g.Cells {
		if !c.Blank && c.Date == d {
			return c.Date, c.Selectable
		}
	}
	return Date{}, false
}

// Weeks splits the grid into rows of seven, padding the last row with blanks.
func (g Grid) Weeks() [][]Cell {
	var weeks [][]Cell
	for i := 0; i < len(g.Cells); i += 7 {
		end := i + 7
		row := make([]Cell, 0, 7)
		if end > len(g.Cells) {
			row = append(row, g.Cells[i:]...)
			for len(row) < 7 {
				row = append(row, Cell{Blank: true})
			}
		} else {
			row = append(row, g.Cells[i:end]...)
		}
		weeks = append(weeks, row)
	}
	return weeks
}
